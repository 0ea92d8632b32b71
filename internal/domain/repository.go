package domain

import "context"

// SubmissionRepository defines persistence for submissions.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *Submission) error
	GetByID(ctx context.Context, id string) (*Submission, error)
	UpdateStatus(ctx context.Context, id string, status SubmissionStatus, patch *SubmissionPatch) error
	ListByStatus(ctx context.Context, status SubmissionStatus, limit int) ([]Submission, error)
	// ClaimPending atomically moves one pending submission to processing and
	// returns it, or ErrNotFound when the queue is empty. Safe to call from
	// concurrent workers.
	ClaimPending(ctx context.Context) (*Submission, error)
}

// FeedRepository handles persistence for feed entries.
type FeedRepository interface {
	Create(ctx context.Context, entry *FeedEntry) error
	ListRecent(ctx context.Context, limit int) ([]FeedEntry, error)
	GetBySubmissionID(ctx context.Context, submissionID string) (*FeedEntry, error)
}

// BlobStore is the key→bytes store holding submission payloads and artifacts.
// Keys are namespaced per submission, e.g. submissions/<id>/<artifact>.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
}
