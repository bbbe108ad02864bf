package routes

import (
	"net/http"

	"github.com/fieldops/accessctl/app"
	"github.com/fieldops/accessctl/internal/observability"
	"github.com/fieldops/accessctl/middleware"
	"github.com/fieldops/accessctl/utils"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(observability.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	if timeout := deps.Config.Server.RequestTimeout; timeout > 0 {
		r.Use(chimw.Timeout(timeout))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.SitecHeader},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)

	// Every /api route is authenticated, resolved to a profile and gated by
	// the company's access policies.
	r.Route("/api", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireAuth)
		r.Use(deps.AuthMiddleware.LoadProfile)
		r.Use(middleware.Sitec)

		gated := func(action string, h http.HandlerFunc) http.Handler {
			return middleware.Action(action)(deps.PermissionGate.Require(h))
		}

		r.Route("/policies", func(r chi.Router) {
			r.Method(http.MethodGet, "/", gated("list", deps.PolicyHandler.HandleListPolicies))
			r.Method(http.MethodPost, "/", gated("create", deps.PolicyHandler.HandleCreatePolicy))
			r.Method(http.MethodPost, "/evaluate/", gated("evaluate", deps.PolicyHandler.HandleEvaluate))
			r.Method(http.MethodGet, "/{id}/", gated("retrieve", deps.PolicyHandler.HandleGetPolicy))
			r.Method(http.MethodPut, "/{id}/", gated("update", deps.PolicyHandler.HandleReplacePolicy))
			r.Method(http.MethodPatch, "/{id}/", gated("partial_update", deps.PolicyHandler.HandlePatchPolicy))
			r.Method(http.MethodDelete, "/{id}/", gated("destroy", deps.PolicyHandler.HandleDeletePolicy))
		})

		// No hint: the action is derived from the path (profile.me, audit.logs).
		r.Method(http.MethodGet, "/profile/me/", deps.PermissionGate.Require(http.HandlerFunc(deps.ProfileHandler.HandleMe)))
		r.Method(http.MethodGet, "/audit/logs/", deps.PermissionGate.Require(http.HandlerFunc(deps.AuditHandler.HandleListLogs)))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}
