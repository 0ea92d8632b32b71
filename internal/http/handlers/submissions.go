package handlers

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"server/internal/domain"
)

type submitContentRequest struct {
	SourceURL    string               `json:"sourceUrl"`
	Title        string               `json:"title"`
	ThumbnailURL string               `json:"thumbnailUrl"`
	Sender       *domain.Sender       `json:"sender,omitempty"`
	YoutubeVideo *domain.VideoContent `json:"youtubeVideo,omitempty"`
}

type submissionResponse struct {
	ID           string     `json:"id"`
	SourceURL    string     `json:"sourceUrl"`
	Title        string     `json:"title"`
	Status       string     `json:"status"`
	SummaryText  string     `json:"summaryText,omitempty"`
	AudioFileURL string     `json:"audioFileUrl,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	ProcessedAt  *time.Time `json:"processedAt,omitempty"`
}

// SubmitContent accepts a captured page or video, stores the raw payload in
// blob storage and creates a pending submission for the worker to pick up.
func (a *App) SubmitContent(w http.ResponseWriter, r *http.Request) {
	var req submitContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.json(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.SourceURL == "" || req.Title == "" {
		a.json(w, http.StatusBadRequest, map[string]string{"error": "sourceUrl and title are required"})
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		a.error(w, r, err)
		return
	}
	submissionID := id.String()

	payload := domain.SubmissionPayload{
		SourceURL:    req.SourceURL,
		YoutubeVideo: req.YoutubeVideo,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		a.error(w, r, err)
		return
	}
	payloadKey := fmt.Sprintf("submissions/%s/submission.json", submissionID)
	if _, err := a.Blobs.Put(r.Context(), payloadKey, payloadBytes, "application/json"); err != nil {
		a.error(w, r, err)
		return
	}

	sender := req.Sender
	if sender == nil {
		sender = &domain.Sender{}
	}
	if sender.UserAgent == "" {
		sender.UserAgent = r.UserAgent()
	}
	if sender.Timestamp == "" {
		sender.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if a.GeoIP != nil {
		if country, err := a.GeoIP.CountryCode(clientIP(r)); err == nil && country != "" {
			sender.Country = country
		}
	}
	senderJSON, err := json.Marshal(sender)
	if err != nil {
		a.error(w, r, err)
		return
	}

	sub := &domain.Submission{
		ID:           submissionID,
		SourceURL:    req.SourceURL,
		Title:        req.Title,
		ThumbnailURL: req.ThumbnailURL,
		PayloadKey:   payloadKey,
		SenderJSON:   senderJSON,
		Status:       domain.SubmissionStatusPending,
	}
	if err := a.Submissions.Create(r.Context(), sub); err != nil {
		a.error(w, r, err)
		return
	}

	a.Logger.Info().
		Str("submission_id", submissionID).
		Str("source_url", req.SourceURL).
		Msg("api: submission created")

	a.json(w, http.StatusCreated, submissionResponse{
		ID:        submissionID,
		SourceURL: req.SourceURL,
		Title:     req.Title,
		Status:    string(domain.SubmissionStatusPending),
		CreatedAt: time.Now().UTC(),
	})
}

// GetSubmission returns the submission's status and processing results.
func (a *App) GetSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := a.Submissions.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toSubmissionResponse(sub))
}

// RunSubmission re-queues a submission for processing. For a failed run the
// previous run's checkpoints are cleared so every stage executes again; an
// in-flight or already pending submission is left as-is.
func (a *App) RunSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := a.Submissions.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.error(w, r, err)
		return
	}

	switch sub.Status {
	case domain.SubmissionStatusPending, domain.SubmissionStatusProcessing:
		a.json(w, http.StatusOK, toSubmissionResponse(sub))
		return
	case domain.SubmissionStatusFailed:
		if err := a.Checkpoints.ClearRun(r.Context(), sub.ID); err != nil {
			a.error(w, r, err)
			return
		}
		empty := ""
		patch := &domain.SubmissionPatch{ErrorMessage: &empty}
		if err := a.Submissions.UpdateStatus(r.Context(), sub.ID, domain.SubmissionStatusPending, patch); err != nil {
			a.error(w, r, err)
			return
		}
		a.Logger.Info().Str("submission_id", sub.ID).Msg("api: failed submission re-queued")
		sub.Status = domain.SubmissionStatusPending
		sub.ErrorMessage = ""
		a.json(w, http.StatusOK, toSubmissionResponse(sub))
		return
	default:
		a.json(w, http.StatusConflict, map[string]string{
			"error": fmt.Sprintf("submission is %s and cannot be re-run", sub.Status),
		})
	}
}

// CancelSubmission cancels a pending or processing submission.
func (a *App) CancelSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := a.Submissions.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.error(w, r, err)
		return
	}
	if !sub.Status.Cancellable() {
		a.error(w, r, fmt.Errorf("%w: status is %s", domain.ErrNotCancellable, sub.Status))
		return
	}
	if err := a.Submissions.UpdateStatus(r.Context(), sub.ID, domain.SubmissionStatusCancelled, nil); err != nil {
		a.error(w, r, err)
		return
	}
	a.Logger.Info().Str("submission_id", sub.ID).Msg("api: submission cancelled")
	sub.Status = domain.SubmissionStatusCancelled
	a.json(w, http.StatusOK, toSubmissionResponse(sub))
}

func toSubmissionResponse(sub *domain.Submission) submissionResponse {
	return submissionResponse{
		ID:           sub.ID,
		SourceURL:    sub.SourceURL,
		Title:        sub.Title,
		Status:       string(sub.Status),
		SummaryText:  sub.SummaryText,
		AudioFileURL: sub.AudioFileURL,
		ErrorMessage: sub.ErrorMessage,
		CreatedAt:    sub.CreatedAt,
		ProcessedAt:  sub.ProcessedAt,
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
