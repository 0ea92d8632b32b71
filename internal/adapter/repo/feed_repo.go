package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// FeedRepositoryPG implements domain.FeedRepository.
type FeedRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewFeedRepository creates a new feed repository backed by PostgreSQL.
func NewFeedRepository(pool *pgxpool.Pool) *FeedRepositoryPG {
	return &FeedRepositoryPG{pool: pool}
}

// Create inserts a feed entry. One entry exists per submission; a conflicting
// insert is a replay of an already-acknowledged write and is dropped, which
// keeps the persist stage idempotent under retry.
func (r *FeedRepositoryPG) Create(ctx context.Context, entry *domain.FeedEntry) error {
	query := `
INSERT INTO feed_contents (id, submission_id, title, url, summary_text, audio_file_url, thumbnail_url)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (submission_id) DO NOTHING;
`
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.SubmissionID,
		entry.Title,
		entry.URL,
		entry.SummaryText,
		entry.AudioFileURL,
		entry.ThumbnailURL,
	)
	return err
}

// ListRecent returns the newest feed entries.
func (r *FeedRepositoryPG) ListRecent(ctx context.Context, limit int) ([]domain.FeedEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
SELECT id, submission_id, title, url, summary_text, COALESCE(audio_file_url, ''), COALESCE(thumbnail_url, ''), created_at
FROM feed_contents
ORDER BY created_at DESC
LIMIT $1;
`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FeedEntry
	for rows.Next() {
		var entry domain.FeedEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.SubmissionID,
			&entry.Title,
			&entry.URL,
			&entry.SummaryText,
			&entry.AudioFileURL,
			&entry.ThumbnailURL,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// GetBySubmissionID fetches the feed entry created for a submission.
func (r *FeedRepositoryPG) GetBySubmissionID(ctx context.Context, submissionID string) (*domain.FeedEntry, error) {
	query := `
SELECT id, submission_id, title, url, summary_text, COALESCE(audio_file_url, ''), COALESCE(thumbnail_url, ''), created_at
FROM feed_contents
WHERE submission_id = $1;
`
	var entry domain.FeedEntry
	if err := r.pool.QueryRow(ctx, query, submissionID).Scan(
		&entry.ID,
		&entry.SubmissionID,
		&entry.Title,
		&entry.URL,
		&entry.SummaryText,
		&entry.AudioFileURL,
		&entry.ThumbnailURL,
		&entry.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

var _ domain.FeedRepository = (*FeedRepositoryPG)(nil)
