package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the service's full DDL. Statements are idempotent so the mains
// can apply it at startup without a separate migration step.
const Schema = `
CREATE TABLE IF NOT EXISTS submissions (
    id             TEXT PRIMARY KEY,
    source_url     TEXT NOT NULL,
    title          TEXT NOT NULL,
    thumbnail_url  TEXT NOT NULL DEFAULT '',
    payload_key    TEXT NOT NULL,
    sender_json    JSONB,
    status         TEXT NOT NULL DEFAULT 'pending'
                   CHECK (status IN ('pending', 'processing', 'completed', 'failed', 'cancelled')),
    summary_text   TEXT,
    audio_file_url TEXT,
    error_message  TEXT,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    processed_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_submissions_status_created
    ON submissions (status, created_at);

CREATE TABLE IF NOT EXISTS feed_contents (
    id             TEXT PRIMARY KEY,
    submission_id  TEXT NOT NULL UNIQUE REFERENCES submissions (id),
    title          TEXT NOT NULL,
    url            TEXT NOT NULL,
    summary_text   TEXT NOT NULL,
    audio_file_url TEXT,
    thumbnail_url  TEXT,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS workflow_checkpoints (
    run_id       TEXT NOT NULL,
    stage        TEXT NOT NULL,
    result       BYTEA NOT NULL,
    completed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (run_id, stage)
);
`

// EnsureSchema applies the schema to the connected database.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
