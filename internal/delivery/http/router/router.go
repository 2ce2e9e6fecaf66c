package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/user/evidence-service/internal/delivery/http/handler"
	"github.com/user/evidence-service/internal/delivery/http/middleware"
)

// New builds the HTTP router. requestTimeout bounds every request and should
// exceed the longest retrieval timeout a caller may ask for.
func New(h *handler.Handler, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HandleHealthCheck)
		r.Post("/retrieve", h.HandleRetrieve)
		r.Get("/breakers", h.HandleListBreakers)
		r.Post("/breakers/{service}/reset", h.HandleResetBreaker)
	})

	return r
}
