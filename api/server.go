/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the SPA frontend

ROUTE GROUPS:
  /api/bids/*      Bid CRUD, roster reconciliation, lifecycle, closure,
                   allocations, rollups, invoicing
  /api/partners/*  Partner directory
  /api/dashboard   Cross-bid summary

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/dashboard", h.GetDashboard)
		r.Get("/next-bid-number", h.NextBidNumber)

		// Bid routes
		r.Route("/bids", func(r chi.Router) {
			r.Get("/", h.ListBids)
			r.Post("/", h.CreateBid)
			r.Post("/move-to-closure", h.MoveToClosure)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetBid)
				r.Put("/", h.UpdateBid)

				// Roster reconciliation
				r.Put("/partners", h.UpdatePartners)
				r.Put("/countries", h.UpdateCountries)
				r.Put("/audiences", h.UpdateAudiences)
				r.Put("/responses", h.SaveResponses)

				// Lifecycle
				r.Post("/status", h.SetStatus)
				r.Post("/submit-invoice", h.SubmitInvoice)

				// Field / closure / invoice
				r.Put("/allocations", h.SaveAllocations)
				r.Post("/closure", h.SaveClosure)
				r.Get("/rollup", h.GetRollup)
				r.Get("/invoice", h.GetInvoice)
				r.Put("/invoice", h.SaveInvoice)
			})
		})

		// Partner directory
		r.Route("/partners", func(r chi.Router) {
			r.Get("/", h.ListPartners)
			r.Post("/", h.CreatePartner)
			r.Get("/{id}", h.GetPartner)
		})
	})

	return r
}
