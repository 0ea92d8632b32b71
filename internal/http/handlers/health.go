package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports backing-store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports service liveness and database reachability.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK

	if a.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.DB.Ping(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("api: health check database ping failed")
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	a.json(w, code, map[string]string{"status": status})
}
