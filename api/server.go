/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the dashboard frontend
  5. TokenGate:  Shared-token check on /api (except /api/healthz)

SECURITY NOTE:
  The token gate is a stand-in boundary, not real authentication. The
  original dashboard checked a password inside the page itself; that is
  deliberately not reproduced. Deployments that need actual auth should
  terminate it in front of this service and run with an empty token.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured. An empty
// token disables the gate.
func NewRouter(h *Handler, token string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/healthz", h.Healthz)

		r.Group(func(r chi.Router) {
			r.Use(TokenGate(token))

			r.Post("/classify", h.Classify)

			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", h.CreateSession)
				r.Get("/{id}", h.GetSession)
				r.Post("/{id}/remarks", h.UpdateRemark)
				r.Get("/{id}/export", h.ExportSession)
			})

			r.Route("/audit", func(r chi.Router) {
				r.Get("/runs", h.ListRuns)
				r.Get("/events", h.ListRemarkEvents)
			})
		})
	})

	return r
}

// TokenGate rejects requests whose bearer token does not match. With an
// empty configured token the gate passes everything through.
func TokenGate(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			presented := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if presented == "" {
				presented = r.Header.Get("X-Api-Token")
			}
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, "Invalid or missing token", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
