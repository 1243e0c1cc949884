/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request, also attached to handler logs
  4. CORS:       Cross-origin requests for case-worker frontends

  Evaluation routes additionally pass through the handler's rate limiter
  (ratelimit.go); reads are never limited.

ROUTE GROUPS:
  /api/cases/*      Evaluation and audit trail
  /api/persons/*    Income history
  /api/scenarios/*  Demo cases
  /api/health       Liveness and store check

SECURITY NOTE:
  No authentication middleware. Deploy behind the gateway that handles it.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/serve.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Case routes
		r.Route("/cases", func(r chi.Router) {
			r.With(h.rateLimited).Post("/evaluate", h.EvaluateCase)
			r.Get("/{id}/audit", h.GetCaseAudit)
		})

		// Income history routes
		r.Route("/persons/{id}/incomes", func(r chi.Router) {
			r.Get("/", h.ListIncomes)
			r.Post("/", h.SaveIncomes)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.With(h.rateLimited).Post("/{id}/evaluate", h.EvaluateScenario)
		})
	})

	return r
}
