package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"portal.koudaisai.jp/internal/account"
	"portal.koudaisai.jp/internal/audit"
	"portal.koudaisai.jp/internal/obs"
)

type activateRequest struct {
	UUID     string `json:"uuid"`
	Token    string `json:"token"`
	Password string `json:"password"`
}

type loginRequest struct {
	Address  string `json:"m_address"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type resetRequest struct {
	AccessToken string `json:"access_token"`
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (a *API) handleActivate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req activateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	userID, err := uuid.Parse(strings.TrimSpace(req.UUID))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "uuid is invalid")
		return
	}
	if req.Token == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "token and password are required")
		return
	}

	err = a.deps.Accounts.Activate(r.Context(), userID, req.Token, req.Password)
	if err != nil {
		a.handleAccountError(w, r, "activate", err)
		return
	}
	obs.CountAuth("activate", "ok")
	_ = audit.LogEvent(r.Context(), "auth.activate", map[string]any{"user_id": userID.String()})
	writeJSON(w, http.StatusOK, map[string]any{"status": "activated"})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	// Historical clients call login with GET carrying a body; both verbs
	// are accepted.
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	pair, err := a.deps.Accounts.Login(r.Context(), req.Address, req.Password)
	if err != nil {
		a.handleAccountError(w, r, "login", err)
		return
	}
	obs.CountAuth("login", "ok")
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{"m_address": req.Address})
	writeJSON(w, http.StatusOK, pair)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	access, err := a.deps.Accounts.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		a.handleAccountError(w, r, "refresh", err)
		return
	}
	obs.CountAuth("refresh", "ok")
	writeJSON(w, http.StatusOK, map[string]string{"access_token": access})
}

func (a *API) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req resetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	err := a.deps.Accounts.Reset(r.Context(), req.AccessToken, req.OldPassword, req.NewPassword)
	if err != nil {
		a.handleAccountError(w, r, "reset", err)
		return
	}
	obs.CountAuth("reset", "ok")
	_ = audit.LogEvent(r.Context(), "auth.password_reset", nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "reset"})
}

func (a *API) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.deps.Accounts.Revoke(r.Context(), req.RefreshToken); err != nil {
		a.handleAccountError(w, r, "revoke", err)
		return
	}
	obs.CountAuth("revoke", "ok")
	_ = audit.LogEvent(r.Context(), "auth.revoke", nil)
	writeJSON(w, http.StatusCreated, map[string]any{"status": "revoked"})
}

func (a *API) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	url, err := a.deps.Accounts.AdminLoginURL()
	if err != nil {
		a.handleAccountError(w, r, "admin_login", err)
		return
	}
	obs.CountAuth("admin_login", "ok")
	http.Redirect(w, r, url, http.StatusFound)
}

func (a *API) handleAdminRedirect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	q := r.URL.Query()
	state := q.Get("state")
	code := q.Get("code")
	if state == "" || code == "" {
		writeError(w, r, http.StatusBadRequest, "code and state are required")
		return
	}

	toks, err := a.deps.Accounts.AdminRedirect(r.Context(), state, code)
	if err != nil {
		a.handleAccountError(w, r, "admin_redirect", err)
		return
	}
	obs.CountAuth("admin_redirect", "ok")
	_ = audit.LogEvent(r.Context(), "auth.admin_login", nil)
	writeJSON(w, http.StatusOK, toks)
}

// handleAccountError maps lifecycle errors onto the boundary statuses. The
// 401 body never distinguishes the failing check.
func (a *API) handleAccountError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, account.ErrNotFound):
		obs.CountAuth(op, "not_found")
		writeError(w, r, http.StatusNotFound, "user not found")
	case errors.Is(err, account.ErrConflict):
		obs.CountAuth(op, "conflict")
		writeError(w, r, http.StatusConflict, "already activated")
	case errors.Is(err, account.ErrUnauthorized):
		obs.CountAuth(op, "unauthorized")
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, account.ErrUnknownState):
		obs.CountAuth(op, "unknown_state")
		writeError(w, r, http.StatusBadRequest, "unknown state")
	default:
		obs.CountAuth(op, "error")
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
