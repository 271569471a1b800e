package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// RouterConfig assembles the HTTP API
type RouterConfig struct {
	Access      *AccessHandler
	Assignments *AssignmentHandler
	Health      func(r *http.Request) error     // nil skips the DB probe
	Metrics     func(http.Handler) http.Handler // optional metrics middleware
	BulkRate    int                             // requests/minute for the bulk endpoint, 0 uses the default
}

// NewRouter builds the chi router for the access-control API
func NewRouter(cfg *RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics)
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(req); err != nil {
				respondProblem(w, http.StatusServiceUnavailable, "Unhealthy", "")
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/access", func(r chi.Router) {
			r.Post("/check", cfg.Access.Check)
			r.Post("/resource", cfg.Access.CheckResource)

			// Bulk checks are the expensive path; rate-limit per caller IP
			bulkRate := cfg.BulkRate
			if bulkRate <= 0 {
				bulkRate = 60
			}
			r.With(httprate.LimitByIP(bulkRate, time.Minute)).
				Post("/check-bulk", cfg.Access.CheckBulk)
		})

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/permissions", cfg.Access.UserPermissions)
			r.Get("/admin", cfg.Access.AdminCheck)
			r.Get("/assignments", cfg.Assignments.History)
		})

		r.Route("/assignments", func(r chi.Router) {
			r.Post("/", cfg.Assignments.Grant)
			r.Delete("/{assignmentID}", cfg.Assignments.Revoke)
			r.Post("/{assignmentID}/extend", cfg.Assignments.Extend)
		})
	})

	return r
}
