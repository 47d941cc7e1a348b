package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates and configures the HTTP router. The dead-letter handler
// is optional; when nil (no sink configured), the endpoint is not mounted.
func NewRouter(schemas *SchemaHandler, events *EventHandler, deadLetters *DeadLetterHandler) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler())

		r.Route("/schemas", func(r chi.Router) {
			r.Post("/", schemas.Register)
			r.Get("/{producer}/{eventType}/{version}", schemas.Get)
		})

		r.Route("/events", func(r chi.Router) {
			r.Post("/", events.Ingest)
			r.Post("/batch", events.IngestBatch)
		})

		if deadLetters != nil {
			r.Get("/dead-letters", deadLetters.List)
		}
	})

	return r
}
