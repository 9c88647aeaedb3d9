package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"sproutling/internal/http/handlers"
	"sproutling/internal/infra"
	"sproutling/internal/middleware"
)

func NewRouter(app *handlers.App, cfg *infra.Config, logger zerolog.Logger) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP, middleware.RequestID, middleware.Logger(logger), chimw.Recoverer)
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Starting a stage spends AI quota; reads are free to poll.
	limit := middleware.RateLimit(cfg.RateLimitPerMin, time.Minute)

	r.Get("/healthz", app.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/register-seed", func(r chi.Router) {
			r.With(limit).Post("/", app.StartResearch)
			r.Get("/{job_id}", app.ResearchStatus)
		})

		r.Route("/seed-guide", func(r chi.Router) {
			r.Route("/jobs", func(r chi.Router) {
				r.With(limit).Post("/", app.StartGuide)
				r.Get("/{job_id}", app.GuideStatus)
				r.Get("/{job_id}/assets.zip", app.GuideAssets)
			})
			r.Route("/character", func(r chi.Router) {
				r.With(limit).Post("/", app.StartCharacter)
				r.Get("/{job_id}", app.CharacterStatus)
			})
			r.Get("/images/*", app.GuideImage)
		})

		r.Route("/unified", func(r chi.Router) {
			r.With(limit).Post("/start", app.StartUnified)
			r.Get("/jobs/{job_id}", app.UnifiedStatus)
		})
	})

	return r
}
