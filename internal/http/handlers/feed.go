package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
)

const (
	defaultFeedLimit = 20
	maxFeedLimit     = 100
)

type feedEntryResponse struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submissionId"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	SummaryText  string    `json:"summaryText"`
	AudioFileURL string    `json:"audioFileUrl"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ListFeed returns the most recently published feed entries.
func (a *App) ListFeed(w http.ResponseWriter, r *http.Request) {
	limit := defaultFeedLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			a.json(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}

	entries, err := a.Feed.ListRecent(r.Context(), limit)
	if err != nil {
		a.error(w, r, err)
		return
	}

	out := make([]feedEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, feedEntryResponse{
			ID:           entry.ID,
			SubmissionID: entry.SubmissionID,
			Title:        entry.Title,
			URL:          entry.URL,
			SummaryText:  entry.SummaryText,
			AudioFileURL: entry.AudioFileURL,
			ThumbnailURL: entry.ThumbnailURL,
			CreatedAt:    entry.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"entries": out})
}

// StreamAudio serves the synthesized audio artifact for a submission.
func (a *App) StreamAudio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, err := a.Submissions.GetByID(r.Context(), id)
	if err != nil {
		a.error(w, r, err)
		return
	}
	if sub.AudioFileURL == "" {
		a.error(w, r, domain.ErrNotFound)
		return
	}

	data, contentType, err := a.Blobs.Get(r.Context(), sub.AudioFileURL)
	if err != nil {
		a.error(w, r, err)
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
