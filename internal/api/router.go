package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stewardhq/steward/internal/auth"
	"github.com/stewardhq/steward/internal/metrics"
	"github.com/stewardhq/steward/internal/namespace"
	"github.com/stewardhq/steward/internal/ratelimit"
)

// RouterDeps holds all dependencies for the API router.
type RouterDeps struct {
	Namespaces NamespaceStore
	Tokens     TokenStore
	Usage      UsageStore
	Passwords  PasswordStore

	Resolver *auth.Resolver
	Limiter  *ratelimit.Limiter
	Metrics  *metrics.Metrics

	AdminKey        string
	AllowTypeChange bool
	AllowedOrigins  []string

	// Ready reports whether the backing store is reachable. nil means always
	// ready.
	Ready func(ctx context.Context) error
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(secureHeaders)
	r.Use(corsMiddleware(deps.AllowedOrigins))
	r.Use(slogRequestLogger)

	// Handlers.
	users := newNamespacesHandler(deps.Namespaces, namespace.TypeUser, deps.AllowTypeChange, deps.Metrics)
	orgs := newNamespacesHandler(deps.Namespaces, namespace.TypeOrganization, deps.AllowTypeChange, deps.Metrics)
	tokens := newTokensHandler(deps.Tokens, deps.Metrics)
	usage := newUsageHandler(deps.Usage)
	authH := newAuthHandler(deps.Passwords)
	check := &checkNamespaceHandler{store: deps.Namespaces}

	// Liveness and readiness.
	r.Get("/health/steward", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready/steward", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ready != nil {
			if err := deps.Ready(r.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, "unavailable", "database unreachable")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(vr chi.Router) {
		// Public surface.
		vr.Group(func(pr chi.Router) {
			if deps.Metrics != nil {
				pr.Use(httpMetricsMiddleware(deps.Metrics, "public"))
			}
			if deps.Resolver != nil {
				pr.Use(auth.Middleware(deps.Resolver))
			}
			if deps.Limiter != nil {
				onReject := func() {}
				if deps.Metrics != nil {
					onReject = func() { deps.Metrics.IncRateLimitRejection("public") }
				}
				pr.Use(ratelimit.Middleware(deps.Limiter, onReject))
			}

			// Users. Public creation and deletion are intentionally disabled.
			pr.Get("/users", users.List)
			pr.Post("/users", users.CreateUnimplemented)
			pr.Get("/users/{id}", users.Get)
			pr.Delete("/users/{id}", users.Delete)
			pr.Get("/users/{id}/lookUp", users.LookUp)

			// The authenticated caller's own record.
			pr.Get("/user", users.GetMe)
			pr.Patch("/user", users.UpdateMe)

			// Organizations.
			pr.Get("/organizations", orgs.List)
			pr.Post("/organizations", orgs.Create)
			pr.Get("/organizations/{id}", orgs.Get)
			pr.Patch("/organizations/{id}", orgs.Update)
			pr.Delete("/organizations/{id}", orgs.Delete)
			pr.Get("/organizations/{id}/lookUp", orgs.LookUp)

			// API tokens.
			pr.Post("/tokens", tokens.Create)
			pr.Get("/tokens", tokens.List)
			pr.Get("/tokens/{id}", tokens.Get)
			pr.Delete("/tokens/{id}", tokens.Delete)

			// Credentials and id availability.
			pr.Post("/auth/change_password", authH.ChangePassword)
			pr.Post("/validate_token", tokens.Validate)
			pr.Get("/check_namespace", check.Check)

			// Pipeline trigger listings.
			pr.Get("/metrics/triggers", usage.ListTriggers)
			pr.Get("/metrics/tables", usage.ListTables)
			pr.Get("/metrics/charts", usage.ListCharts)

			// Connector execution listings.
			pr.Get("/metrics/connector/executes", usage.ListConnectorExecutes)
			pr.Get("/metrics/connector/tables", usage.ListConnectorTables)
			pr.Get("/metrics/connector/charts", usage.ListConnectorCharts)
		})

		// Private surface (admin key).
		vr.Route("/admin", func(ar chi.Router) {
			if deps.Metrics != nil {
				ar.Use(httpMetricsMiddleware(deps.Metrics, "private"))
			}
			ar.Use(auth.AdminKeyMiddleware(deps.AdminKey))

			ar.Get("/users", users.List)
			ar.Post("/users", users.Create)
			ar.Get("/users/{id}", users.Get)
			ar.Patch("/users/{id}", users.Update)
			ar.Delete("/users/{id}", users.Delete)
			ar.Get("/users/{id}/lookUp", users.LookUp)

			ar.Get("/organizations", orgs.List)
			ar.Post("/organizations", orgs.Create)
			ar.Get("/organizations/{id}", orgs.Get)
			ar.Patch("/organizations/{id}", orgs.Update)
			ar.Delete("/organizations/{id}", orgs.Delete)
			ar.Get("/organizations/{id}/lookUp", orgs.LookUp)

			ar.Post("/validate_token", tokens.Validate)
			ar.Get("/check_namespace", check.CheckAdmin)
			ar.Get("/check_namespace_by_uid", check.CheckByUID)
		})
	})

	// Prometheus scrape endpoint and JSON summary, admin gated.
	if deps.Metrics != nil {
		r.Route("/metrics", func(mr chi.Router) {
			mr.Use(auth.AdminKeyMiddleware(deps.AdminKey))
			mr.Handle("/", promhttp.HandlerFor(deps.Metrics.Registry(), promhttp.HandlerOpts{}))
			mr.Get("/live", deps.Metrics.Handler())
		})
	}

	return r
}

// slogRequestLogger is a simple structured logging middleware using slog.
func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", ww.BytesWritten(),
			"request_id", RequestIDFromContext(r.Context()),
		)
	})
}
