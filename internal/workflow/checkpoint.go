package workflow

import (
	"context"
	"errors"
	"sync"

	"server/internal/domain"
)

// ErrAlreadyCheckpointed is returned by Put when a result already exists for
// the (run, stage) pair. It signals that a concurrent invocation of the same
// run won the race; the loser should stop without marking the run failed.
var ErrAlreadyCheckpointed = errors.New("stage already checkpointed")

// CheckpointStore durably records "this stage of this run already produced
// result R" so a restarted run never re-executes completed work. Checkpoints
// are write-once per run, which is what makes replay deterministic.
type CheckpointStore interface {
	Has(ctx context.Context, runID, stage string) (bool, error)
	// Get returns the checkpointed result, or domain.ErrNotFound.
	Get(ctx context.Context, runID, stage string) ([]byte, error)
	// Put records a result exactly once; a second write for the same
	// (runID, stage) fails with ErrAlreadyCheckpointed.
	Put(ctx context.Context, runID, stage string, result []byte) error
	// ClearRun removes all checkpoints of a run, allowing an explicit re-run
	// after a terminal failure.
	ClearRun(ctx context.Context, runID string) error
}

// MemoryCheckpointStore keeps checkpoints in process memory. It backs tests
// and single-process deployments; production uses the Postgres store.
type MemoryCheckpointStore struct {
	mu      sync.Mutex
	results map[string]map[string][]byte
}

func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{results: make(map[string]map[string][]byte)}
}

func (s *MemoryCheckpointStore) Has(ctx context.Context, runID, stage string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.results[runID][stage]
	return ok, nil
}

func (s *MemoryCheckpointStore) Get(ctx context.Context, runID, stage string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, ok := s.results[runID][stage]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), result...), nil
}

func (s *MemoryCheckpointStore) Put(ctx context.Context, runID, stage string, result []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.results[runID]
	if !ok {
		run = make(map[string][]byte)
		s.results[runID] = run
	}
	if _, exists := run[stage]; exists {
		return ErrAlreadyCheckpointed
	}
	run[stage] = append([]byte(nil), result...)
	return nil
}

func (s *MemoryCheckpointStore) ClearRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.results, runID)
	return nil
}

var _ CheckpointStore = (*MemoryCheckpointStore)(nil)
