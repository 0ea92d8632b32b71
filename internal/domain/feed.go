package domain

import "time"

// FeedEntry is one processed item in the listening feed, linked to the
// submission that produced it. Entries only exist for completed runs; the
// persist stage is last, so upstream failures never leave a partial entry.
type FeedEntry struct {
	ID           string
	SubmissionID string
	Title        string
	URL          string
	SummaryText  string
	AudioFileURL string
	ThumbnailURL string
	CreatedAt    time.Time
}
