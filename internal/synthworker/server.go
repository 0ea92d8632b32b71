package synthworker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"server/internal/domain"
)

// SpeechGenerator is the synthesis capability the worker delegates to,
// typically the ElevenLabs client.
type SpeechGenerator interface {
	Convert(ctx context.Context, text string) ([]byte, string, error)
}

// processRequest is the submit body accepted by POST /process/{submissionId}.
type processRequest struct {
	Text string `json:"text"`
}

// statusResponse is the wire shape of GET /status/{submissionId}, shared with
// the poller-side client.
type statusResponse struct {
	SubmissionID string `json:"submissionId"`
	Status       string `json:"status"`
	ResultKey    string `json:"resultKey,omitempty"`
	Error        string `json:"error,omitempty"`
}

type taskState struct {
	status      string
	resultKey   string
	errMessage  string
	startedAt   time.Time
	completedAt *time.Time
}

// Server runs text-to-speech tasks asynchronously: submit returns immediately
// and the caller polls the status endpoint until the task reaches a terminal
// state. Task state is in-memory only; a restarted worker forgets in-flight
// tasks and the caller's poll budget times them out.
type Server struct {
	speech SpeechGenerator
	blobs  domain.BlobStore
	logger zerolog.Logger

	mu    sync.RWMutex
	tasks map[string]*taskState
}

func NewServer(speech SpeechGenerator, blobs domain.BlobStore, logger zerolog.Logger) *Server {
	return &Server{
		speech: speech,
		blobs:  blobs,
		logger: logger,
		tasks:  make(map[string]*taskState),
	}
}

// Handler returns the worker's HTTP surface.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Post("/process/{submissionID}", s.handleProcess)
	r.Get("/status/{submissionID}", s.handleStatus)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	submissionID := chi.URLParam(r, "submissionID")
	if submissionID == "" {
		http.Error(w, "submissionId is required", http.StatusBadRequest)
		return
	}

	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if task, exists := s.tasks[submissionID]; exists && task.status == "processing" {
		s.mu.Unlock()
		s.logger.Info().Str("submission_id", submissionID).Msg("synthworker: already processing")
		s.writeJSON(w, http.StatusAccepted, statusResponse{
			SubmissionID: submissionID,
			Status:       "processing",
		})
		return
	}
	s.tasks[submissionID] = &taskState{status: "processing", startedAt: time.Now()}
	s.mu.Unlock()

	go s.process(submissionID, req.Text)

	s.writeJSON(w, http.StatusAccepted, statusResponse{
		SubmissionID: submissionID,
		Status:       "processing",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	submissionID := chi.URLParam(r, "submissionID")

	s.mu.RLock()
	task, exists := s.tasks[submissionID]
	s.mu.RUnlock()
	if !exists {
		http.Error(w, "no processing status found", http.StatusNotFound)
		return
	}

	s.writeJSON(w, http.StatusOK, statusResponse{
		SubmissionID: submissionID,
		Status:       task.status,
		ResultKey:    task.resultKey,
		Error:        task.errMessage,
	})
}

// process runs outside the request lifecycle, so it uses its own context.
func (s *Server) process(submissionID, text string) {
	ctx := context.Background()
	s.logger.Info().Str("submission_id", submissionID).Int("text_len", len(text)).Msg("synthworker: processing started")

	resultKey, err := s.synthesize(ctx, submissionID, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	task, exists := s.tasks[submissionID]
	if !exists {
		return
	}
	now := time.Now()
	task.completedAt = &now
	if err != nil {
		s.logger.Error().Err(err).Str("submission_id", submissionID).Msg("synthworker: processing failed")
		task.status = "failed"
		task.errMessage = err.Error()
		return
	}
	s.logger.Info().Str("submission_id", submissionID).Str("result_key", resultKey).Msg("synthworker: processing completed")
	task.status = "completed"
	task.resultKey = resultKey
}

func (s *Server) synthesize(ctx context.Context, submissionID, text string) (string, error) {
	audio, mimeType, err := s.speech.Convert(ctx, text)
	if err != nil {
		return "", fmt.Errorf("text to speech: %w", err)
	}
	key := fmt.Sprintf("submissions/%s/tts.mp3", submissionID)
	storedKey, err := s.blobs.Put(ctx, key, audio, mimeType)
	if err != nil {
		return "", fmt.Errorf("store audio: %w", err)
	}
	return storedKey, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
