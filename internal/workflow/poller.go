package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrWorkerUnavailable means the worker never answered its health probe.
	ErrWorkerUnavailable = errors.New("synthesis worker unavailable")
	// ErrSubmissionRejected means the submit call itself failed. It is never
	// retried automatically: submitting twice could double-charge a paid
	// synthesis call.
	ErrSubmissionRejected = errors.New("synthesis task submission rejected")
	// ErrWorkerFailed carries a failure the worker itself reported.
	ErrWorkerFailed = errors.New("synthesis worker reported failure")
	// ErrPollTimeout means the poll budget elapsed with no terminal status.
	ErrPollTimeout = errors.New("synthesis polling timed out")
)

// Task states reported by the worker's status endpoint.
const (
	TaskStateProcessing = "processing"
	TaskStateCompleted  = "completed"
	TaskStateFailed     = "failed"
)

// Task is one unit of work handed to the external synthesis worker.
type Task struct {
	SubmissionID string
	Text         string
}

// TaskStatus is the worker's answer to a status poll.
type TaskStatus struct {
	State     string
	ResultKey string
	Error     string
}

// TaskClient is the submit/poll protocol surface of the external worker.
type TaskClient interface {
	Health(ctx context.Context) error
	// Submit starts the task and returns an opaque handle for status polls.
	Submit(ctx context.Context, task Task) (string, error)
	Status(ctx context.Context, handle string) (TaskStatus, error)
}

const (
	defaultHealthCheckRetries = 10
	defaultHealthCheckDelay   = 500 * time.Millisecond
	defaultPollInterval       = 5 * time.Second
	defaultMaxPollAttempts    = 60
)

// Poller drives a long-running external task to completion: wait for the
// worker to become healthy, submit exactly once, then poll at a fixed
// interval until a terminal state or the attempt budget is exhausted.
type Poller struct {
	client TaskClient
	logger zerolog.Logger

	healthCheckRetries int
	healthCheckDelay   time.Duration
	pollInterval       time.Duration
	maxPollAttempts    int
}

// PollerConfig overrides the protocol constants; zero values keep defaults
// (10 × 500ms health probes, 60 × 5s polls).
type PollerConfig struct {
	HealthCheckRetries int
	HealthCheckDelay   time.Duration
	PollInterval       time.Duration
	MaxPollAttempts    int
}

func NewPoller(client TaskClient, cfg PollerConfig, logger zerolog.Logger) *Poller {
	p := &Poller{
		client:             client,
		logger:             logger,
		healthCheckRetries: cfg.HealthCheckRetries,
		healthCheckDelay:   cfg.HealthCheckDelay,
		pollInterval:       cfg.PollInterval,
		maxPollAttempts:    cfg.MaxPollAttempts,
	}
	if p.healthCheckRetries <= 0 {
		p.healthCheckRetries = defaultHealthCheckRetries
	}
	if p.healthCheckDelay <= 0 {
		p.healthCheckDelay = defaultHealthCheckDelay
	}
	if p.pollInterval <= 0 {
		p.pollInterval = defaultPollInterval
	}
	if p.maxPollAttempts <= 0 {
		p.maxPollAttempts = defaultMaxPollAttempts
	}
	return p
}

// Run executes the full protocol for one task and returns the terminal status.
func (p *Poller) Run(ctx context.Context, task Task) (TaskStatus, error) {
	if err := p.awaitHealthy(ctx); err != nil {
		return TaskStatus{}, err
	}

	handle, err := p.client.Submit(ctx, task)
	if err != nil {
		return TaskStatus{}, fmt.Errorf("%w: %v", ErrSubmissionRejected, err)
	}
	p.logger.Info().
		Str("submission_id", task.SubmissionID).
		Str("handle", handle).
		Msg("poller: task submitted")

	return p.poll(ctx, handle)
}

func (p *Poller) awaitHealthy(ctx context.Context) error {
	var lastErr error
	for i := 0; i < p.healthCheckRetries; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = p.client.Health(ctx)
		if lastErr == nil {
			return nil
		}
		p.logger.Debug().Err(lastErr).Int("attempt", i+1).Msg("poller: health check failed")
		if err := sleep(ctx, p.healthCheckDelay); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrWorkerUnavailable, lastErr)
}

func (p *Poller) poll(ctx context.Context, handle string) (TaskStatus, error) {
	for attempt := 0; attempt < p.maxPollAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return TaskStatus{}, err
		}
		status, err := p.client.Status(ctx, handle)
		if err != nil {
			// A transient status-check error should not kill the whole poll;
			// it consumes one attempt like a "processing" answer.
			p.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("poller: status check failed")
		} else {
			switch status.State {
			case TaskStateCompleted:
				return status, nil
			case TaskStateFailed:
				return status, fmt.Errorf("%w: %s", ErrWorkerFailed, status.Error)
			}
		}
		if attempt+1 < p.maxPollAttempts {
			if err := sleep(ctx, p.pollInterval); err != nil {
				return TaskStatus{}, err
			}
		}
	}
	return TaskStatus{}, ErrPollTimeout
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
