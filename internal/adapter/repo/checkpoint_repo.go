package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
	"server/internal/workflow"
)

// CheckpointRepositoryPG implements workflow.CheckpointStore over the
// workflow_checkpoints table. The primary key on (run_id, stage) plus
// ON CONFLICT DO NOTHING gives the write-once guarantee the orchestrator's
// replay safety rests on: concurrent runs race on the insert and exactly one
// wins.
type CheckpointRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewCheckpointRepository creates a new checkpoint repository backed by PostgreSQL.
func NewCheckpointRepository(pool *pgxpool.Pool) *CheckpointRepositoryPG {
	return &CheckpointRepositoryPG{pool: pool}
}

// Has reports whether a checkpoint exists for the (run, stage) pair.
func (r *CheckpointRepositoryPG) Has(ctx context.Context, runID, stage string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM workflow_checkpoints WHERE run_id = $1 AND stage = $2);`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, runID, stage).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Get returns the checkpointed result bytes, or domain.ErrNotFound.
func (r *CheckpointRepositoryPG) Get(ctx context.Context, runID, stage string) ([]byte, error) {
	query := `SELECT result FROM workflow_checkpoints WHERE run_id = $1 AND stage = $2;`
	var result []byte
	if err := r.pool.QueryRow(ctx, query, runID, stage).Scan(&result); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return result, nil
}

// Put records a stage result exactly once per run.
func (r *CheckpointRepositoryPG) Put(ctx context.Context, runID, stage string, result []byte) error {
	query := `
INSERT INTO workflow_checkpoints (run_id, stage, result)
VALUES ($1, $2, $3)
ON CONFLICT (run_id, stage) DO NOTHING;
`
	tag, err := r.pool.Exec(ctx, query, runID, stage, result)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return workflow.ErrAlreadyCheckpointed
	}
	return nil
}

// ClearRun removes all checkpoints of a run so it can be re-executed from the
// first stage after an explicit re-run request.
func (r *CheckpointRepositoryPG) ClearRun(ctx context.Context, runID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM workflow_checkpoints WHERE run_id = $1;`, runID)
	return err
}

var _ workflow.CheckpointStore = (*CheckpointRepositoryPG)(nil)
