package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-dynalite/internal/bridges/dynet"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/requests", s.handleListRequests)
		r.Get("/areas", s.handleListAreas)

		r.Route("/map", func(r chi.Router) {
			r.Get("/", s.handleGetMap)
			r.Put("/", s.handlePutMap)
			r.Post("/reload", s.handleReloadMap)
		})

		r.Post("/discovery", s.handlePublishDiscovery)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the bridge health report. A stopping bridge is
// reported as 503 so load balancers and container probes notice.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := s.bridge.Health()
	status := http.StatusOK
	if health.Status == dynet.HealthStopping {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}
