package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"server/internal/http/handlers"
	"server/internal/middleware"
)

func NewRouter(app *handlers.App, logger zerolog.Logger, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
		middleware.CORS(corsOrigins),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/submissions", func(r chi.Router) {
		r.Post("/", app.SubmitContent)
		r.Get("/{id}", app.GetSubmission)
		r.Post("/{id}/run", app.RunSubmission)
		r.Post("/{id}/cancel", app.CancelSubmission)
	})

	r.Get("/feed", app.ListFeed)
	r.Get("/audio/{id}", app.StreamAudio)

	return r
}
