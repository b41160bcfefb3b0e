// Package httpapi is the HTTP layer: routing, middleware, handlers and the
// JSON envelope helpers.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"portal.koudaisai.jp/internal/account"
	"portal.koudaisai.jp/internal/authz"
	"portal.koudaisai.jp/internal/forms"
	"portal.koudaisai.jp/internal/idp"
	"portal.koudaisai.jp/internal/obs"
	"portal.koudaisai.jp/internal/portal"
	"portal.koudaisai.jp/internal/token"
)

// ReadyProbe checks dependencies for /readyz (DB ping when set).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps carries everything the HTTP layer needs.
type Deps struct {
	Accounts   *account.Service
	Tokens     *token.Service
	Provider   idp.Connector
	Policy     *authz.Policy
	Users      portal.UserStore
	Exhibitors portal.ExhibitorStore
	Forms      forms.Store
	Responses  forms.ResponseStore
	Probe      ReadyProbe
	Version    string

	// AuthRateBurst/AuthRatePerSec bound the per-IP token bucket on the
	// /auth/ surface. Zero disables the limiter.
	AuthRateBurst  int
	AuthRatePerSec int
}

// API is the HTTP layer.
type API struct {
	mux  *http.ServeMux
	deps Deps
}

func New(deps Deps) *API {
	a := &API{
		mux:  http.NewServeMux(),
		deps: deps,
	}

	// health/ready/metrics
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	// auth surface
	a.mux.HandleFunc("/auth/v1/activate", a.handleActivate)
	a.mux.HandleFunc("/auth/v1/login", a.handleLogin)
	a.mux.HandleFunc("/auth/v1/refresh", a.handleRefresh)
	a.mux.HandleFunc("/auth/v1/reset", a.handleReset)
	a.mux.HandleFunc("/auth/v1/revoke", a.handleRevoke)
	a.mux.HandleFunc("/auth/v1/admin/login", a.handleAdminLogin)
	a.mux.HandleFunc("/auth/v1/admin/redirect", a.handleAdminRedirect)

	// resources
	a.mux.HandleFunc("/api/v1/exhibitors", a.handleExhibitorsCollection)
	a.mux.HandleFunc("/api/v1/exhibitors/", a.handleExhibitorResource)
	a.mux.HandleFunc("/api/v1/forms", a.handleFormsCollection)
	a.mux.HandleFunc("/api/v1/forms/", a.handleFormResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the middleware chain around the mux: recover, request
// id, access log, metrics, auth rate limit, identity resolution.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withIdentity(h)
	if a.deps.AuthRateBurst > 0 && a.deps.AuthRatePerSec > 0 {
		h = RateLimitPrefix(h, "/auth/", a.deps.AuthRateBurst, a.deps.AuthRatePerSec)
	}
	h = obs.Instrument(h)
	h = Logging(h)
	h = RequestID(h)
	h = Recover(h)
	return h
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "portal-api",
		"version": a.deps.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Probe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
