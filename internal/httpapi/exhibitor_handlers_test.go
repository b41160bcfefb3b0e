package httpapi

import (
	"context"
	"net/http"
	"testing"

	"portal.koudaisai.jp/internal/portal"
)

func registerBody(id, typ string) map[string]any {
	reps := make([]map[string]string, 0, 3)
	for _, name := range []string{"taro", "hana", "jiro"} {
		reps = append(reps, map[string]string{
			"first_name": name,
			"last_name":  "tanaka",
			"m_address":  name + ".tanaka.2026@m.isct.ac.jp",
		})
	}
	return map[string]any{
		"id":              id,
		"exhibitor_name":  "Robot Cafe",
		"type":            typ,
		"representatives": reps,
	}
}

func TestRegisterExhibitor(t *testing.T) {
	env := newTestEnv(t)
	admin := foreignToken(t, "https://accounts.google.com")

	rec := env.do(t, http.MethodPost, "/api/v1/exhibitors", admin, registerBody("booth-7", "booth"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Exhibitor       exhibitorResponse        `json:"exhibitor"`
		Representatives []representativeResponse `json:"representatives"`
	}
	decodeBody(t, rec, &body)
	if body.Exhibitor.ID != "booth-7" || body.Exhibitor.Type != "booth" {
		t.Fatalf("unexpected exhibitor: %+v", body.Exhibitor)
	}
	if len(body.Representatives) != portal.RepresentativesPerExhibitor {
		t.Fatalf("expected %d representatives, got %d", portal.RepresentativesPerExhibitor, len(body.Representatives))
	}

	// The distributed activation token must activate the account it was
	// minted for.
	rep := body.Representatives[0]
	if rep.ActivationToken == "" {
		t.Fatal("missing activation token")
	}
	if err := env.accounts.Activate(context.Background(), rep.UUID, rep.ActivationToken, "pw"); err != nil {
		t.Fatalf("activate with distributed token: %v", err)
	}

	if rec := env.do(t, http.MethodPost, "/api/v1/exhibitors", admin, registerBody("booth-7", "booth")); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate: status %d", rec.Code)
	}
}

func TestRegisterExhibitorValidation(t *testing.T) {
	env := newTestEnv(t)
	admin := foreignToken(t, "https://accounts.google.com")
	_, userAccess := env.seedUser(t, "booth-1", portal.CategoryBooth)

	if rec := env.do(t, http.MethodPost, "/api/v1/exhibitors", userAccess, registerBody("x", "booth")); rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin: status %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/v1/exhibitors", "", registerBody("x", "booth")); rec.Code != http.StatusForbidden {
		t.Fatalf("anonymous: status %d", rec.Code)
	}

	if rec := env.do(t, http.MethodPost, "/api/v1/exhibitors", admin, registerBody("x", "garage")); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown type: status %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/v1/exhibitors", admin, registerBody("", "booth")); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty id: status %d", rec.Code)
	}

	short := registerBody("x", "booth")
	short["representatives"] = short["representatives"].([]map[string]string)[:2]
	if rec := env.do(t, http.MethodPost, "/api/v1/exhibitors", admin, short); rec.Code != http.StatusBadRequest {
		t.Fatalf("two representatives: status %d", rec.Code)
	}

	bad := registerBody("x", "booth")
	bad["representatives"].([]map[string]string)[1]["m_address"] = "someone@gmail.com"
	if rec := env.do(t, http.MethodPost, "/api/v1/exhibitors", admin, bad); rec.Code != http.StatusBadRequest {
		t.Fatalf("non-institutional address: status %d", rec.Code)
	}
}

func TestExhibitorReadAccess(t *testing.T) {
	env := newTestEnv(t)
	_, ownAccess := env.seedUser(t, "booth-1", portal.CategoryBooth)
	env.seedUser(t, "booth-2", portal.CategoryBooth)
	admin := foreignToken(t, "https://accounts.google.com")

	rec := env.do(t, http.MethodGet, "/api/v1/exhibitors/booth-1", ownAccess, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("own exhibitor: status %d: %s", rec.Code, rec.Body.String())
	}

	// A foreign exhibitor reads as absent.
	if rec := env.do(t, http.MethodGet, "/api/v1/exhibitors/booth-2", ownAccess, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign exhibitor: status %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/exhibitors/booth-1", "", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("anonymous: status %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/exhibitors/booth-2", admin, nil); rec.Code != http.StatusOK {
		t.Fatalf("admin: status %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/exhibitors", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin list: status %d", rec.Code)
	}
	var list []exhibitorResponse
	decodeBody(t, rec, &list)
	if len(list) != 2 {
		t.Fatalf("admin must see every exhibitor, got %d", len(list))
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/exhibitors", ownAccess, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("user list: status %d", rec.Code)
	}
}

func TestUpdateExhibitor(t *testing.T) {
	env := newTestEnv(t)
	_, ownAccess := env.seedUser(t, "booth-1", portal.CategoryBooth)

	rec := env.do(t, http.MethodPut, "/api/v1/exhibitors/booth-1", ownAccess, map[string]any{
		"exhibition_name": "Dancing Robots",
		"description":     "Live robot dance shows.",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d: %s", rec.Code, rec.Body.String())
	}
	var updated exhibitorResponse
	decodeBody(t, rec, &updated)
	if updated.ExhibitionName == nil || *updated.ExhibitionName != "Dancing Robots" {
		t.Fatalf("exhibition_name not updated: %+v", updated)
	}

	if rec := env.do(t, http.MethodPut, "/api/v1/exhibitors/booth-2", ownAccess, map[string]any{}); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign update: status %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/exhibitors/booth-1/extra", ownAccess, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("nested path: status %d", rec.Code)
	}
}
