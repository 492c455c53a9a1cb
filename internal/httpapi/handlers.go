package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"questboard.org/api/spec"
	"questboard.org/internal/audit"
	"questboard.org/internal/auth"
	"questboard.org/internal/obs"
	"questboard.org/internal/quests"
)

// ReadyProbe reports whether the service can take traffic (e.g. DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer. Every /v1 route passes through the authentication
// pipeline and the access policy before its handler runs.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	auth   *auth.Service
	policy *auth.Policy
	quests quests.Service
}

func New(rp ReadyProbe, version string, authSvc *auth.Service, board quests.Service) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		auth:       authSvc,
		policy:     DefaultPolicy(),
		quests:     board,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// OpenAPI YAML
	a.mux.HandleFunc("/openapi.yaml", a.OpenAPISpec)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// authentication surface; login gets its own rate-limit bucket to slow
	// down credential stuffing independently of the global limiter
	a.mux.Handle("/v1/auth/login", RateLimit(http.HandlerFunc(a.handleLogin), 20, 5))
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/auth/logout-all", a.handleLogoutAll)
	a.mux.HandleFunc("/v1/auth/validate-token", a.handleValidateToken)

	// principals
	a.mux.HandleFunc("/v1/me", a.handleMe)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)

	// quest board
	a.mux.HandleFunc("/v1/quests", a.handleQuestsCollection)
	a.mux.HandleFunc("/v1/quests/", a.handleQuestResource)

	// administration
	a.mux.HandleFunc("/v1/admin/users/", a.handleAdminUserAction)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// DefaultPolicy is the route access table. First match wins; anything the
// table does not name requires authentication.
func DefaultPolicy() *auth.Policy {
	return auth.NewPolicy(
		auth.Rule{Pattern: "/healthz", Requirement: auth.Public()},
		auth.Rule{Pattern: "/readyz", Requirement: auth.Public()},
		auth.Rule{Pattern: "/metrics", Requirement: auth.Public()},
		auth.Rule{Pattern: "/openapi.yaml", Requirement: auth.Public()},
		auth.Rule{Pattern: "/v1/info", Requirement: auth.Public()},
		auth.Rule{Pattern: "/v1/auth/login", Requirement: auth.Public()},
		auth.Rule{Pattern: "/v1/auth/refresh", Requirement: auth.Public()},
		auth.Rule{Pattern: "/v1/auth/validate-token", Requirement: auth.Public()},
		auth.Rule{Pattern: "/v1/auth/*", Requirement: auth.Authenticated()},
		auth.Rule{Pattern: "/v1/me", Requirement: auth.Authenticated()},
		auth.Rule{Pattern: "/v1/users/{id}/profile", Requirement: auth.OwnerOrRole(auth.RoleAdmin)},
		auth.Rule{Pattern: "/v1/quests", Requirement: auth.Authenticated()},
		auth.Rule{Pattern: "/v1/quests/*", Requirement: auth.Authenticated()},
		auth.Rule{Pattern: "/v1/admin/*", Requirement: auth.Role(auth.RoleAdmin)},
		auth.Rule{Pattern: "/", Requirement: auth.Public()},
	)
}

// Handler returns the composed http.Handler for the server.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.withAuth(a.mux))
}

func (a *API) audit(ctx context.Context, event, resourceType, resourceID string, meta map[string]string) {
	fields := map[string]any{
		"resource_type": resourceType,
		"resource_id":   resourceID,
	}
	for k, v := range meta {
		fields[k] = v
	}
	_ = audit.LogEvent(ctx, event, fields)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "questboard-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "questboard-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	_, _ = w.Write(spec.OpenAPI)
}
