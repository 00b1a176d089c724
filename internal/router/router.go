package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Progenics2025/LIMS-sub003/internal/config"
	"github.com/Progenics2025/LIMS-sub003/internal/handler"
	"github.com/Progenics2025/LIMS-sub003/internal/middleware"
)

// HealthCheck reports whether a backing dependency is usable. A nil check
// means the server has nothing external to probe.
type HealthCheck func(ctx context.Context) error

type Handlers struct {
	Recycle *handler.RecycleHandler
}

func New(cfg *config.Config, handlers Handlers, health HealthCheck, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM)

	r.Use(middleware.Logging(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if health != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := health(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("unavailable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/recycle", func(recycle chi.Router) {
		recycle.Use(rateLimitMiddleware.Handler)
		recycle.Use(middleware.Timeout(cfg.RequestTimeout))

		recycle.Get("/", handlers.Recycle.List)
		recycle.Post("/", handlers.Recycle.Create)
		recycle.Get("/{id}", handlers.Recycle.Get)
		recycle.Delete("/{id}", handlers.Recycle.Delete)
	})

	return r
}
