package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/infra/geoip"
	"server/internal/workflow"
)

// App bundles the dependencies shared by the HTTP handlers.
type App struct {
	Submissions domain.SubmissionRepository
	Feed        domain.FeedRepository
	Checkpoints workflow.CheckpointStore
	Blobs       domain.BlobStore
	GeoIP       geoip.CountryResolver
	DB          Pinger
	Logger      infra.Logger
}

func NewApp(submissions domain.SubmissionRepository, feed domain.FeedRepository, checkpoints workflow.CheckpointStore, blobs domain.BlobStore, resolver geoip.CountryResolver, db Pinger, logger infra.Logger) *App {
	return &App{
		Submissions: submissions,
		Feed:        feed,
		Checkpoints: checkpoints,
		Blobs:       blobs,
		GeoIP:       resolver,
		DB:          db,
		Logger:      logger,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.json(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, domain.ErrNotCancellable):
		a.json(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("api: request failed")
		a.json(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
