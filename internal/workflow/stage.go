package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"server/internal/domain"
)

// Stage names, which double as checkpoint keys.
const (
	StageRetrieve   = "retrieve"
	StageSummarize  = "summarize"
	StageSynthesize = "synthesize"
	StagePersist    = "persist"
)

// runStage executes one named pipeline stage with checkpointing and retry: if
// a checkpoint exists for (run, stage) its result is returned without calling
// fn; otherwise fn runs under the stage's retry policy and the result is
// recorded before the next stage may start. Losing a Put race surfaces
// ErrAlreadyCheckpointed to the orchestrator, which treats it as benign.
func runStage[T any](ctx context.Context, o *Orchestrator, runID, stage string, policy RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	var out T

	data, err := o.checkpoints.Get(ctx, runID, stage)
	if err == nil {
		if err := json.Unmarshal(data, &out); err != nil {
			return out, fmt.Errorf("stage %s: decode checkpoint: %w", stage, err)
		}
		o.logger.Debug().Str("run_id", runID).Str("stage", stage).Msg("workflow: stage replayed from checkpoint")
		return out, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return out, fmt.Errorf("stage %s: read checkpoint: %w", stage, err)
	}

	for attempt := 0; ; attempt++ {
		out, err = fn(ctx)
		if err == nil {
			break
		}
		delay, retry := policy.Delay(attempt)
		if !retry {
			return out, fmt.Errorf("stage %s: %w", stage, err)
		}
		o.logger.Warn().
			Err(err).
			Str("run_id", runID).
			Str("stage", stage).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("workflow: stage failed, retrying")
		if err := sleep(ctx, delay); err != nil {
			return out, err
		}
	}

	payload, err := json.Marshal(out)
	if err != nil {
		return out, fmt.Errorf("stage %s: encode checkpoint: %w", stage, err)
	}
	if err := o.checkpoints.Put(ctx, runID, stage, payload); err != nil {
		return out, fmt.Errorf("stage %s: %w", stage, err)
	}
	return out, nil
}
