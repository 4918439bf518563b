/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:      Request logging
  2. Recoverer:   Panic recovery (500 instead of crash)
  3. RequestID:   Unique ID per request for tracing
  4. CORS:        Cross-origin requests for frontends
  5. Idempotency: Duplicate-submission gate, reservation create only

ROUTE GROUPS:
  /api/reservations/*   Reservation lifecycle
  /api/credits/*        Balance, ledger listing, top-up
  /api/experts/*        Seed/admin expert directory

SECURITY NOTE:
  No authentication middleware; caller identity arrives in request
  payloads. Ownership checks live in the booking core.

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/server/main.go: server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter creates a router with all routes configured. keys guards the
// reservation create endpoint against duplicate submissions.
func NewRouter(h *Handler, keys KeyStore, log *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdempotencyHeader},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/reservations", func(r chi.Router) {
			r.With(Idempotency(keys, log)).Post("/", h.CreateReservation)
			r.Get("/", h.ListReservations)
			r.Get("/{displayId}", h.GetReservation)
			r.Get("/{displayId}/history", h.GetHistory)
			r.Post("/{displayId}/approve", h.ApproveReservation)
			r.Post("/{displayId}/reject", h.RejectReservation)
			r.Delete("/{displayId}", h.CancelReservation)
		})

		r.Route("/credits", func(r chi.Router) {
			r.Get("/balance", h.GetBalance)
			r.Get("/transactions", h.ListTransactions)
			r.Post("/topup", h.TopUp)
		})

		r.Route("/experts", func(r chi.Router) {
			r.Post("/", h.CreateExpert)
			r.Get("/{id}", h.GetExpert)
			r.Post("/{id}/availability", h.AddAvailability)
		})
	})

	return r
}
