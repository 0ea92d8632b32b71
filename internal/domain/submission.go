package domain

import "time"

// SubmissionStatus enumerates submission lifecycle states. Transitions are
// monotonic except cancellation, which may pre-empt pending/processing.
// Completed, failed and cancelled are terminal.
type SubmissionStatus string

const (
	SubmissionStatusPending    SubmissionStatus = "pending"
	SubmissionStatusProcessing SubmissionStatus = "processing"
	SubmissionStatusCompleted  SubmissionStatus = "completed"
	SubmissionStatusFailed     SubmissionStatus = "failed"
	SubmissionStatusCancelled  SubmissionStatus = "cancelled"
)

// Terminal reports whether no further status transitions may occur.
func (s SubmissionStatus) Terminal() bool {
	switch s {
	case SubmissionStatusCompleted, SubmissionStatusFailed, SubmissionStatusCancelled:
		return true
	}
	return false
}

// Cancellable reports whether the submission may still be cancelled.
func (s SubmissionStatus) Cancellable() bool {
	return s == SubmissionStatusPending || s == SubmissionStatusProcessing
}

// Submission is one piece of content entering the system: a web page or a
// YouTube video with captions, captured by the browser extension. The raw
// payload lives in blob storage under PayloadKey; the row tracks identity,
// status and processing results.
type Submission struct {
	ID           string
	SourceURL    string
	Title        string
	ThumbnailURL string
	PayloadKey   string
	SenderJSON   []byte
	Status       SubmissionStatus
	SummaryText  string
	AudioFileURL string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ProcessedAt  *time.Time
}

// SubmissionPayload is the captured content stored in the blob store at
// submissions/<id>/submission.json. Only the video block is consumed by the
// pipeline; the rest is kept for audit.
type SubmissionPayload struct {
	SourceURL    string        `json:"sourceUrl"`
	YoutubeVideo *VideoContent `json:"youtubeVideo,omitempty"`
}

// VideoContent carries the caption text the pipeline summarizes.
type VideoContent struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Captions string `json:"captions"`
}

// Sender describes the submitting client, stored as JSON on the row.
type Sender struct {
	AppName    string `json:"appName"`
	AppVersion string `json:"appVersion"`
	UserAgent  string `json:"userAgent"`
	Country    string `json:"country,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// SubmissionPatch carries optional fields applied alongside a status update.
type SubmissionPatch struct {
	SummaryText  *string
	AudioFileURL *string
	ErrorMessage *string
	ProcessedAt  *time.Time
}
