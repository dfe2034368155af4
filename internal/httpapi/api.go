package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"esawitku.app/internal/audit"
	"esawitku.app/internal/auth"
	"esawitku.app/internal/billing"
	"esawitku.app/internal/obs"
	"esawitku.app/internal/plantation"
	"esawitku.app/internal/ratelimit"
)

// ReadyProbe reports readiness, typically by pinging the database.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer. All domain work is delegated to the injected
// services; handlers only translate between HTTP and domain types.
type API struct {
	mux        *http.ServeMux
	resolver   *auth.Resolver
	users      auth.UserStore
	apiKeys    auth.APIKeyStore
	plantation *plantation.Service
	billing    *billing.Service
	limiter    *ratelimit.Limiter
	recorder   *audit.Recorder
	readyProbe ReadyProbe
	version    string
}

// Config carries everything New needs.
type Config struct {
	Resolver   *auth.Resolver
	Users      auth.UserStore
	APIKeys    auth.APIKeyStore
	Plantation *plantation.Service
	Billing    *billing.Service
	Limiter    *ratelimit.Limiter
	Recorder   *audit.Recorder
	ReadyProbe ReadyProbe
	Version    string
}

func New(cfg Config) *API {
	a := &API{
		mux:        http.NewServeMux(),
		resolver:   cfg.Resolver,
		users:      cfg.Users,
		apiKeys:    cfg.APIKeys,
		plantation: cfg.Plantation,
		billing:    cfg.Billing,
		limiter:    cfg.Limiter,
		recorder:   cfg.Recorder,
		readyProbe: cfg.ReadyProbe,
		version:    cfg.Version,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// Public auth + catalogue. Register/login carry their own tighter
	// rate rules since no identity exists yet.
	a.mux.HandleFunc("/v1/auth/register", a.limited("auth.register", a.handleRegister))
	a.mux.HandleFunc("/v1/auth/login", a.limited("auth.login", a.handleLogin))
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/packages", a.handlePackages)

	// Gated: identity + API keys
	a.mux.HandleFunc("/v1/me", a.gate(
		Endpoint{Name: "auth.me", Permissions: []auth.Permission{auth.PermissionRead}}, a.me))
	a.mux.HandleFunc("/v1/auth/apikeys", a.gate(
		Endpoint{Name: "auth.apikeys", Permissions: []auth.Permission{auth.PermissionRead}}, a.handleAPIKeys))

	// Gated: plantation
	a.mux.HandleFunc("/v1/kebun", a.gate(
		Endpoint{Name: "kebun", Permissions: []auth.Permission{auth.PermissionRead}}, a.handleKebunCollection))
	a.mux.HandleFunc("/v1/kebun/", a.gate(
		Endpoint{Name: "kebun", Permissions: []auth.Permission{auth.PermissionRead}}, a.handleKebunResource))
	a.mux.HandleFunc("/v1/panen/", a.gate(
		Endpoint{Name: "panen", Permissions: []auth.Permission{auth.PermissionRead}}, a.handlePanenResource))
	a.mux.HandleFunc("/v1/pupuk/", a.gate(
		Endpoint{Name: "pupuk", Permissions: []auth.Permission{auth.PermissionRead}}, a.handlePupukResource))
	a.mux.HandleFunc("/v1/dashboard", a.gate(
		Endpoint{Name: "dashboard", Permissions: []auth.Permission{auth.PermissionRead}}, a.handleDashboard))
	a.mux.HandleFunc("/v1/reports/panen", a.gate(
		Endpoint{Name: "reports.panen", Permissions: []auth.Permission{auth.PermissionRead}}, a.handlePanenReport))

	// Gated: admin user management
	a.mux.HandleFunc("/v1/admin/users", a.gate(
		Endpoint{Name: "admin.users", Permissions: []auth.Permission{auth.PermissionUserManage}}, a.handleAdminUsers))
	a.mux.HandleFunc("/v1/admin/users/", a.gate(
		Endpoint{Name: "admin.users", Permissions: []auth.Permission{auth.PermissionUserManage}}, a.handleAdminUserResource))

	// Gated: billing
	a.mux.HandleFunc("/v1/subscriptions/active", a.gate(
		Endpoint{Name: "subscriptions.active", Permissions: []auth.Permission{auth.PermissionRead}}, a.handleActiveSubscription))
	a.mux.HandleFunc("/v1/payments", a.gate(
		Endpoint{Name: "payments", Permissions: []auth.Permission{auth.PermissionRead}}, a.handlePaymentsCollection))
	a.mux.HandleFunc("/v1/payments/", a.handlePaymentResourceRouting)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = obs.Instrument(a.mux)
	h = RateLimit(h, 50, 25)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return h
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "esawitku-api",
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
		"name":    "esawitku-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
