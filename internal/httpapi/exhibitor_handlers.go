package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"portal.koudaisai.jp/internal/audit"
	"portal.koudaisai.jp/internal/authz"
	"portal.koudaisai.jp/internal/identity"
	"portal.koudaisai.jp/internal/portal"
)

type representativeRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address   string `json:"m_address"`
}

type registerExhibitorRequest struct {
	ID              string                  `json:"id"`
	Name            string                  `json:"exhibitor_name"`
	Type            string                  `json:"type"`
	Representatives []representativeRequest `json:"representatives"`
}

type updateExhibitorRequest struct {
	ExhibitionName *string `json:"exhibition_name"`
	IconID         *string `json:"icon_id"`
	Description    *string `json:"description"`
}

type representativeResponse struct {
	UUID            uuid.UUID `json:"uuid"`
	Address         string    `json:"m_address"`
	ActivationToken string    `json:"activation_token"`
}

type exhibitorResponse struct {
	ID              string      `json:"id"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	Name            string      `json:"exhibitor_name"`
	ExhibitionName  *string     `json:"exhibition_name"`
	IconID          *string     `json:"icon_id"`
	Description     *string     `json:"description"`
	Type            string      `json:"type"`
	Representatives []uuid.UUID `json:"representatives"`
}

func renderExhibitor(ex *portal.Exhibitor) exhibitorResponse {
	return exhibitorResponse{
		ID:              ex.ID,
		CreatedAt:       ex.CreatedAt,
		UpdatedAt:       ex.UpdatedAt,
		Name:            ex.Name,
		ExhibitionName:  ex.ExhibitionName,
		IconID:          ex.IconID,
		Description:     ex.Description,
		Type:            ex.Type.String(),
		Representatives: ex.Representatives[:],
	}
}

func (a *API) handleExhibitorsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.registerExhibitor(w, r)
	case http.MethodGet:
		a.listExhibitors(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleExhibitorResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/exhibitors/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getExhibitor(w, r, id)
	case http.MethodPut:
		a.updateExhibitor(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) registerExhibitor(w http.ResponseWriter, r *http.Request) {
	if identity.FromContext(r.Context()).Kind != identity.KindAdmin {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}
	var req registerExhibitorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.ID) == "" || strings.TrimSpace(req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "id and exhibitor_name are required")
		return
	}
	category := portal.Category(req.Type)
	if !category.Valid() {
		writeError(w, r, http.StatusBadRequest, "unknown exhibitor type")
		return
	}
	if len(req.Representatives) != portal.RepresentativesPerExhibitor {
		writeError(w, r, http.StatusBadRequest, "exactly three representatives are required")
		return
	}
	for _, rep := range req.Representatives {
		if !portal.ValidEmail(rep.Address) {
			writeError(w, r, http.StatusBadRequest, "m_address does not match the institutional format")
			return
		}
	}

	ex := &portal.Exhibitor{
		ID:   req.ID,
		Name: req.Name,
		Type: category,
	}
	reps := make([]*portal.User, 0, len(req.Representatives))
	for i, rep := range req.Representatives {
		u := &portal.User{
			ID:           uuid.New(),
			FirstName:    rep.FirstName,
			LastName:     rep.LastName,
			Email:        rep.Address,
			ExhibitionID: ex.ID,
		}
		ex.Representatives[i] = u.ID
		reps = append(reps, u)
	}

	if err := a.deps.Exhibitors.Register(r.Context(), ex, reps); err != nil {
		if errors.Is(err, portal.ErrAlreadyExists) {
			writeError(w, r, http.StatusConflict, "exhibitor or representative already exists")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]representativeResponse, 0, len(reps))
	for _, u := range reps {
		out = append(out, representativeResponse{
			UUID:            u.ID,
			Address:         u.Email,
			ActivationToken: a.deps.Accounts.ActivationToken(u.ID),
		})
	}
	_ = audit.LogEvent(r.Context(), "exhibitor.registered", map[string]any{"exhibitor_id": ex.ID})
	writeJSON(w, http.StatusCreated, map[string]any{
		"exhibitor":       renderExhibitor(ex),
		"representatives": out,
	})
}

func (a *API) listExhibitors(w http.ResponseWriter, r *http.Request) {
	if identity.FromContext(r.Context()).Kind != identity.KindAdmin {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}
	list, err := a.deps.Exhibitors.ListExhibitors(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]exhibitorResponse, 0, len(list))
	for _, ex := range list {
		out = append(out, renderExhibitor(ex))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getExhibitor(w http.ResponseWriter, r *http.Request, id string) {
	if !a.authorizeExhibitor(w, r, id) {
		return
	}
	ex, err := a.deps.Exhibitors.FindExhibitor(r.Context(), id)
	if errors.Is(err, portal.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "exhibitor not found")
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, renderExhibitor(ex))
}

func (a *API) updateExhibitor(w http.ResponseWriter, r *http.Request, id string) {
	if !a.authorizeExhibitor(w, r, id) {
		return
	}
	var req updateExhibitorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	upd := portal.ExhibitorUpdate{
		ExhibitionName: req.ExhibitionName,
		IconID:         req.IconID,
		Description:    req.Description,
	}
	if err := a.deps.Exhibitors.UpdateExhibitor(r.Context(), id, upd); err != nil {
		if errors.Is(err, portal.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "exhibitor not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	ex, err := a.deps.Exhibitors.FindExhibitor(r.Context(), id)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	_ = audit.LogEvent(r.Context(), "exhibitor.updated", map[string]any{"exhibitor_id": id})
	writeJSON(w, http.StatusOK, renderExhibitor(ex))
}

// authorizeExhibitor applies the per-exhibitor access rule and writes the
// denial when access is not allowed. Out-of-scope ids read as absent.
func (a *API) authorizeExhibitor(w http.ResponseWriter, r *http.Request, id string) bool {
	decision, err := a.deps.Policy.ExhibitorAccess(r.Context(), identity.FromContext(r.Context()), id)
	if err != nil {
		// Covers authz.ErrInconsistent: a verified caller with missing
		// rows is a server fault, not a denial.
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return false
	}
	switch decision {
	case authz.Allow:
		return true
	case authz.Hide:
		writeError(w, r, http.StatusNotFound, "exhibitor not found")
	default:
		writeError(w, r, http.StatusForbidden, "forbidden")
	}
	return false
}
