package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/device", s.handleDevice)

		r.Route("/resources", func(r chi.Router) {
			r.Get("/", s.handleListResources)
			r.Get("/{object}/{instance}/{resource}", s.handleGetResource)
		})

		r.Get("/deliveries", s.handleListDeliveries)
		r.Post("/button/press", s.handleButtonPress)
	})

	return r
}
