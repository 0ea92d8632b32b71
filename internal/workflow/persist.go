package workflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"server/internal/domain"
)

// feedRecord is the persist stage's checkpointed output.
type feedRecord struct {
	FeedID string `json:"feedId"`
}

// persistStage writes the feed entry linking the submission to its summary
// and audio artifact. The write is cheap and idempotent (the repository
// upserts on submission id), so it runs under the exponential retry policy.
func (o *Orchestrator) persistStage(ctx context.Context, sub *domain.Submission, summary string, audio AudioArtifact) (feedRecord, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return feedRecord{}, fmt.Errorf("generate feed id: %w", err)
	}
	entry := &domain.FeedEntry{
		ID:           id.String(),
		SubmissionID: sub.ID,
		Title:        sub.Title,
		URL:          sub.SourceURL,
		SummaryText:  summary,
		AudioFileURL: audio.StorageKey,
		ThumbnailURL: sub.ThumbnailURL,
	}
	if err := o.feed.Create(ctx, entry); err != nil {
		return feedRecord{}, fmt.Errorf("%w: create feed entry: %v", domain.ErrPersistenceFailed, err)
	}
	return feedRecord{FeedID: entry.ID}, nil
}
