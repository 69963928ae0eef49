package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/a3s-lab/dev/internal/config"
	"github.com/a3s-lab/dev/internal/logbus"
	"github.com/a3s-lab/dev/internal/middleware"
	"github.com/a3s-lab/dev/internal/supervisor"
)

// adapt turns one of this project's http.HandlerFunc-to-http.HandlerFunc
// middlewares into the func(http.Handler) http.Handler shape chi.Use wants.
func adapt(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// NewRouter builds the control API's chi router: middleware stack, the
// status/history/logs/restart/stop endpoints, and the embedded static UI
// fallback (unless cfg.Dev.NoUI is set).
func NewRouter(loop *supervisor.Loop, bus *logbus.Bus, cfg *config.Config) http.Handler {
	h := NewHandler(loop, bus)

	r := chi.NewRouter()
	r.Use(adapt(middleware.RequestID))
	r.Use(adapt(middleware.PrometheusMetrics))
	r.Use(adapt(middleware.Compression))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(httprate.LimitByIP(120, time.Minute))

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.handleStatus)
		r.Get("/services/{name}", h.handleServiceDetail)
		r.Get("/history", h.handleHistory)
		r.Get("/logs", h.handleLogs)
		r.Post("/restart/{name}", h.handleRestart)
		r.Post("/stop/{name}", h.handleStop)
	})

	if !cfg.Dev.NoUI {
		r.Get("/", serveDashboard)
		r.Get("/*", serveDashboard)
	}

	return r
}
