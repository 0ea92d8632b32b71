package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// SubmissionRepositoryPG implements domain.SubmissionRepository.
type SubmissionRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new submission repository backed by PostgreSQL.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepositoryPG {
	return &SubmissionRepositoryPG{pool: pool}
}

const submissionColumns = `
id, source_url, title, thumbnail_url, payload_key, sender_json, status,
COALESCE(summary_text, ''), COALESCE(audio_file_url, ''), COALESCE(error_message, ''),
created_at, updated_at, processed_at`

// Create inserts a new submission record.
func (r *SubmissionRepositoryPG) Create(ctx context.Context, sub *domain.Submission) error {
	query := `
INSERT INTO submissions (id, source_url, title, thumbnail_url, payload_key, sender_json, status)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`
	_, err := r.pool.Exec(ctx, query,
		sub.ID,
		sub.SourceURL,
		sub.Title,
		sub.ThumbnailURL,
		sub.PayloadKey,
		nullableBytes(sub.SenderJSON),
		sub.Status,
	)
	return err
}

// GetByID fetches a submission by its identifier.
func (r *SubmissionRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1;`
	return scanSubmission(r.pool.QueryRow(ctx, query, id))
}

// UpdateStatus updates submission status and optionally the processing result fields.
func (r *SubmissionRepositoryPG) UpdateStatus(ctx context.Context, id string, status domain.SubmissionStatus, patch *domain.SubmissionPatch) error {
	if patch == nil {
		patch = &domain.SubmissionPatch{}
	}
	query := `
UPDATE submissions
SET status = $2,
    updated_at = NOW(),
    summary_text = COALESCE($3, summary_text),
    audio_file_url = COALESCE($4, audio_file_url),
    error_message = COALESCE($5, error_message),
    processed_at = COALESCE($6, processed_at)
WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, query, id, status,
		patch.SummaryText,
		patch.AudioFileURL,
		patch.ErrorMessage,
		patch.ProcessedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByStatus returns the newest submissions with the given status.
func (r *SubmissionRepositoryPG) ListByStatus(ctx context.Context, status domain.SubmissionStatus, limit int) ([]domain.Submission, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + submissionColumns + `
FROM submissions
WHERE status = $1
ORDER BY created_at DESC
LIMIT $2;
`
	rows, err := r.pool.Query(ctx, query, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

// ClaimPending atomically moves the oldest pending submission to processing.
// FOR UPDATE SKIP LOCKED keeps concurrent workers from claiming the same row.
func (r *SubmissionRepositoryPG) ClaimPending(ctx context.Context) (*domain.Submission, error) {
	query := `
WITH next_submission AS (
    SELECT id
    FROM submissions
    WHERE status = 'pending'
    ORDER BY created_at ASC
    FOR UPDATE SKIP LOCKED
    LIMIT 1
),
claimed AS (
    UPDATE submissions
    SET status = 'processing', updated_at = NOW(), processed_at = NOW()
    WHERE id IN (SELECT id FROM next_submission)
    RETURNING ` + submissionColumns + `
)
SELECT * FROM claimed;
`
	return scanSubmission(r.pool.QueryRow(ctx, query))
}

func scanSubmission(row pgx.Row) (*domain.Submission, error) {
	var sub domain.Submission
	if err := row.Scan(
		&sub.ID,
		&sub.SourceURL,
		&sub.Title,
		&sub.ThumbnailURL,
		&sub.PayloadKey,
		&sub.SenderJSON,
		&sub.Status,
		&sub.SummaryText,
		&sub.AudioFileURL,
		&sub.ErrorMessage,
		&sub.CreatedAt,
		&sub.UpdatedAt,
		&sub.ProcessedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

var _ domain.SubmissionRepository = (*SubmissionRepositoryPG)(nil)
