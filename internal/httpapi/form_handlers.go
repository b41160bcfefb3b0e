package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"portal.koudaisai.jp/internal/audit"
	"portal.koudaisai.jp/internal/forms"
	"portal.koudaisai.jp/internal/identity"
)

type createFormRequest struct {
	Info          forms.Info          `json:"info"`
	Items         []forms.Item        `json:"items"`
	AccessControl forms.AccessControl `json:"access_control"`
}

type updateFormRequest struct {
	Info          *forms.Info          `json:"info"`
	Items         *[]forms.Item        `json:"items"`
	AccessControl *forms.AccessControl `json:"access_control"`
}

type createResponseRequest struct {
	Answers map[uuid.UUID]forms.Answer `json:"answers"`
}

func (a *API) handleFormsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listForms(w, r)
	case http.MethodPost:
		a.createForm(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleFormResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/forms/")
	if rest == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if idPart, sub, found := strings.Cut(rest, "/"); found {
		if sub != "responses" {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		formID, err := uuid.Parse(idPart)
		if err != nil {
			writeError(w, r, http.StatusNotFound, "form not found")
			return
		}
		switch r.Method {
		case http.MethodPost:
			a.createResponse(w, r, formID)
		case http.MethodGet:
			a.listResponses(w, r, formID)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		}
		return
	}

	formID, err := uuid.Parse(rest)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "form not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getForm(w, r, formID)
	case http.MethodPut:
		a.updateForm(w, r, formID)
	case http.MethodDelete:
		a.deleteForm(w, r, formID)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) listForms(w http.ResponseWriter, r *http.Request) {
	scope, err := a.deps.Policy.FormScope(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	all, err := a.deps.Forms.ListForms(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	visible := make([]*forms.Form, 0, len(all))
	for _, f := range all {
		if scope.AllowsRoles(f.AccessControl.Roles) {
			visible = append(visible, f)
		}
	}
	writeJSON(w, http.StatusOK, visible)
}

func (a *API) createForm(w http.ResponseWriter, r *http.Request) {
	if identity.FromContext(r.Context()).Kind != identity.KindAdmin {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}
	var req createFormRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	f := &forms.Form{
		ID:            uuid.New(),
		Info:          req.Info,
		Items:         req.Items,
		AccessControl: req.AccessControl,
	}
	if err := a.deps.Forms.CreateForm(r.Context(), f); err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	_ = audit.LogEvent(r.Context(), "form.created", map[string]any{"form_id": f.ID.String()})
	writeJSON(w, http.StatusCreated, f)
}

// getForm hides out-of-scope forms: the caller cannot tell a foreign form
// from a missing one.
func (a *API) getForm(w http.ResponseWriter, r *http.Request, formID uuid.UUID) {
	scope, err := a.deps.Policy.FormScope(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	f, err := a.deps.Forms.FindForm(r.Context(), formID)
	if errors.Is(err, forms.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "form not found")
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if !scope.AllowsRoles(f.AccessControl.Roles) {
		writeError(w, r, http.StatusNotFound, "form not found")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (a *API) updateForm(w http.ResponseWriter, r *http.Request, formID uuid.UUID) {
	if identity.FromContext(r.Context()).Kind != identity.KindAdmin {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}
	var req updateFormRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	upd := forms.FormUpdate{
		Info:          req.Info,
		Items:         req.Items,
		AccessControl: req.AccessControl,
	}
	f, err := a.deps.Forms.UpdateForm(r.Context(), formID, upd)
	if errors.Is(err, forms.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "form not found")
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	_ = audit.LogEvent(r.Context(), "form.updated", map[string]any{"form_id": formID.String()})
	writeJSON(w, http.StatusOK, f)
}

func (a *API) deleteForm(w http.ResponseWriter, r *http.Request, formID uuid.UUID) {
	if identity.FromContext(r.Context()).Kind != identity.KindAdmin {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}
	if err := a.deps.Forms.DeleteForm(r.Context(), formID); err != nil {
		if errors.Is(err, forms.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "form not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	_ = audit.LogEvent(r.Context(), "form.deleted", map[string]any{"form_id": formID.String()})
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (a *API) createResponse(w http.ResponseWriter, r *http.Request, formID uuid.UUID) {
	ident := identity.FromContext(r.Context())
	if ident.Kind != identity.KindUser {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}
	f, err := a.deps.Forms.FindForm(r.Context(), formID)
	if errors.Is(err, forms.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "form not found")
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	ex, err := a.deps.Policy.CallerExhibitor(r.Context(), ident)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if !f.AccessControl.AllowsAny([]string{ex.Type.String()}) {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}

	var req createResponseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sub, err := ident.Claims.SubjectID()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	resp := &forms.Response{
		ID:           uuid.New(),
		FormID:       formID,
		RespondentID: sub,
		Answers:      req.Answers,
	}
	if err := a.deps.Responses.CreateResponse(r.Context(), resp); err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	_ = audit.LogEvent(r.Context(), "form.response_created", map[string]any{
		"form_id":     formID.String(),
		"response_id": resp.ID.String(),
	})
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) listResponses(w http.ResponseWriter, r *http.Request, formID uuid.UUID) {
	ident := identity.FromContext(r.Context())
	switch ident.Kind {
	case identity.KindAdmin:
		list, err := a.deps.Responses.ListResponses(r.Context(), formID)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, emptyToSlice(list))
	case identity.KindUser:
		sub, err := ident.Claims.SubjectID()
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		list, err := a.deps.Responses.ListResponsesByRespondent(r.Context(), formID, sub)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, emptyToSlice(list))
	default:
		writeError(w, r, http.StatusForbidden, "forbidden")
	}
}

func emptyToSlice(list []*forms.Response) []*forms.Response {
	if list == nil {
		return []*forms.Response{}
	}
	return list
}
