package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

// Orchestrator sequences the pipeline for one submission: retrieve the
// captured payload, summarize it, synthesize speech, persist the feed entry.
// Stages run strictly in order; each checkpoints its result before the next
// one starts, so a restarted or concurrently re-invoked run never repeats
// completed work. All collaborators are injected at construction; the
// orchestrator reads no ambient state.
type Orchestrator struct {
	submissions domain.SubmissionRepository
	feed        domain.FeedRepository
	blobs       domain.BlobStore
	checkpoints CheckpointStore
	summarizer  Summarizer
	synthesizer Synthesizer
	logger      zerolog.Logger

	persistRetry RetryPolicy
}

// OrchestratorOptions bundles the orchestrator's collaborators.
type OrchestratorOptions struct {
	Submissions domain.SubmissionRepository
	Feed        domain.FeedRepository
	Blobs       domain.BlobStore
	Checkpoints CheckpointStore
	Summarizer  Summarizer
	Synthesizer Synthesizer
	Logger      zerolog.Logger
	// PersistRetry overrides the persist stage's retry policy. The default is
	// three attempts with exponential backoff from 500ms.
	PersistRetry *RetryPolicy
}

func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	switch {
	case opts.Submissions == nil:
		return nil, errors.New("workflow: submission repository is required")
	case opts.Feed == nil:
		return nil, errors.New("workflow: feed repository is required")
	case opts.Blobs == nil:
		return nil, errors.New("workflow: blob store is required")
	case opts.Checkpoints == nil:
		return nil, errors.New("workflow: checkpoint store is required")
	case opts.Summarizer == nil:
		return nil, errors.New("workflow: summarizer is required")
	case opts.Synthesizer == nil:
		return nil, errors.New("workflow: synthesizer is required")
	}

	persistRetry := ExponentialRetry(3, 500*time.Millisecond)
	if opts.PersistRetry != nil {
		persistRetry = *opts.PersistRetry
	}

	return &Orchestrator{
		submissions:  opts.Submissions,
		feed:         opts.Feed,
		blobs:        opts.Blobs,
		checkpoints:  opts.Checkpoints,
		summarizer:   opts.Summarizer,
		synthesizer:  opts.Synthesizer,
		logger:       opts.Logger,
		persistRetry: persistRetry,
	}, nil
}

// Run executes the pipeline for one submission until a terminal state. A
// stage failure marks the submission failed with the stage name and cause;
// losing a checkpoint race to a concurrent invocation exits quietly without
// touching the submission.
func (o *Orchestrator) Run(ctx context.Context, submissionID string) error {
	sub, err := o.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return fmt.Errorf("load submission: %w", err)
	}
	if sub.Status.Terminal() {
		o.logger.Info().
			Str("submission_id", sub.ID).
			Str("status", string(sub.Status)).
			Msg("workflow: submission already terminal, skipping")
		return nil
	}

	if sub.Status != domain.SubmissionStatusProcessing {
		now := time.Now()
		patch := &domain.SubmissionPatch{ProcessedAt: &now}
		if err := o.submissions.UpdateStatus(ctx, sub.ID, domain.SubmissionStatusProcessing, patch); err != nil {
			return fmt.Errorf("mark processing: %w", err)
		}
	}

	if err := o.execute(ctx, sub); err != nil {
		if errors.Is(err, ErrAlreadyCheckpointed) {
			o.logger.Info().
				Str("submission_id", sub.ID).
				Msg("workflow: concurrent invocation already checkpointed this stage, yielding")
			return nil
		}
		msg := err.Error()
		patch := &domain.SubmissionPatch{ErrorMessage: &msg}
		if updateErr := o.submissions.UpdateStatus(ctx, sub.ID, domain.SubmissionStatusFailed, patch); updateErr != nil {
			o.logger.Error().Err(updateErr).Str("submission_id", sub.ID).Msg("workflow: failed to mark submission failed")
		}
		return err
	}
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, sub *domain.Submission) error {
	runID := sub.ID

	video, err := runStage(ctx, o, runID, StageRetrieve, NoRetry, func(ctx context.Context) (videoInformation, error) {
		return o.retrieveStage(ctx, sub)
	})
	if err != nil {
		return err
	}

	summary, err := runStage(ctx, o, runID, StageSummarize, NoRetry, func(ctx context.Context) (SummaryResult, error) {
		return o.summarizeStage(ctx, sub, video)
	})
	if err != nil {
		return err
	}

	audio, err := runStage(ctx, o, runID, StageSynthesize, NoRetry, func(ctx context.Context) (AudioArtifact, error) {
		return o.synthesizeStage(ctx, sub, summary.Summary)
	})
	if err != nil {
		return err
	}

	entry, err := runStage(ctx, o, runID, StagePersist, o.persistRetry, func(ctx context.Context) (feedRecord, error) {
		return o.persistStage(ctx, sub, summary.Summary, audio)
	})
	if err != nil {
		return err
	}

	now := time.Now()
	patch := &domain.SubmissionPatch{
		SummaryText:  &summary.Summary,
		AudioFileURL: &audio.StorageKey,
		ProcessedAt:  &now,
	}
	if err := o.submissions.UpdateStatus(ctx, sub.ID, domain.SubmissionStatusCompleted, patch); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	o.logger.Info().
		Str("submission_id", sub.ID).
		Str("feed_id", entry.FeedID).
		Str("audio_key", audio.StorageKey).
		Msg("workflow: run completed")
	return nil
}
