package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/facegate/facegate/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	identifyHandler := handlers.NewIdentifyHandler(s.service)
	verifyHandler := handlers.NewVerifyHandler(s.service)
	authHandler := handlers.NewAuthHandler(s.service)
	identitiesHandler := handlers.NewIdentitiesHandler(s.service)
	eventsHandler := handlers.NewEventsHandler(s.service, s.events)

	// Health and readiness (no versioned prefix, probed by infrastructure)
	s.router.Get("/api/v1/health", handlers.HealthCheck)
	s.router.Get("/api/v1/ready", identifyHandler.Readiness)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		// Identification
		r.Post("/identify", identifyHandler.Identify)
		r.Post("/identify/batch", identifyHandler.IdentifyBatch)
		r.Post("/verify", verifyHandler.Verify)

		// Face authentication
		r.Post("/auth/face-login", authHandler.FaceLogin)

		// Enrollment
		r.Post("/identities/{id}/enroll", identitiesHandler.Enroll)
		r.Delete("/identities/{id}", identitiesHandler.Delete)

		// Audit
		r.Get("/events", eventsHandler.List)
		r.Get("/stats", eventsHandler.Stats)
	})
}
