/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the operations frontend

ROUTE GROUPS:
  /api/contracts/*    Contract configuration, balances, adjustments
  /api/closures/*     Monthly closure runs and commits
  /api/corrections/*  Correction-model previews
  /api/metrics        Sync write path
  /api/scenarios/*    Demo scenario loading (dev only)
  /api/admin/*        Bulk sync, kill switch

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

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
		// Contract routes
		r.Route("/contracts", func(r chi.Router) {
			r.Get("/", h.ListContracts)
			r.Post("/", h.CreateContract)
			r.Get("/{id}", h.GetContract)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/regularizations", h.ListRegularizations)
			r.Post("/{id}/regularizations", h.CreateRegularization)
			r.Get("/{id}/duplicates", h.DetectDuplicates)
		})

		// Closure routes
		r.Route("/closures", func(r chi.Router) {
			r.Get("/", h.RunClosure)
			r.Post("/commit", h.CommitClosure)
		})

		// Correction routes
		r.Route("/corrections", func(r chi.Router) {
			r.Post("/preview", h.PreviewCorrection)
		})

		// Metric routes (sync write path)
		r.Post("/metrics", h.UpsertMetric)

		// Scenario routes (demo/dev only)
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/sync", h.TriggerSync)
			r.Get("/sync/status", h.SyncStatus)
			r.Put("/killswitch", h.EngageKillSwitch)
			r.Delete("/killswitch", h.ReleaseKillSwitch)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
