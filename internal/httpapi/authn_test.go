package httpapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"portal.koudaisai.jp/internal/portal"
)

func TestNoAuthorizationHeaderIsAnonymous(t *testing.T) {
	env := newTestEnv(t)
	env.seedForm("none")
	env.seedForm("booth")

	rec := env.do(t, http.MethodGet, "/api/v1/forms", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var list []struct {
		FormID string `json:"form_id"`
	}
	decodeBody(t, rec, &list)
	if len(list) != 1 {
		t.Fatalf("anonymous caller must see only the none-role form, got %d", len(list))
	}
}

func TestMalformedCredentialBlocksRequest(t *testing.T) {
	env := newTestEnv(t)
	cases := map[string]string{
		"wrong scheme": "Basic dXNlcjpwdw==",
		"empty bearer": "Bearer ",
		"not a jwt":    "Bearer garbage",
		"bad segments": "Bearer a.b",
		"undecodable":  "Bearer a.!!!.c",
	}
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/forms", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status %d", name, rec.Code)
		}
	}
}

func TestLocalAccessTokenResolvesUser(t *testing.T) {
	env := newTestEnv(t)
	u, access := env.seedUser(t, "booth-1", portal.CategoryBooth)
	env.seedForm("booth")

	rec := env.do(t, http.MethodGet, "/api/v1/forms", access, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var list []struct {
		FormID string `json:"form_id"`
	}
	decodeBody(t, rec, &list)
	if len(list) != 1 {
		t.Fatalf("booth user must see the booth form, got %d", len(list))
	}

	// A refresh token is not an access credential.
	refresh, err := env.tokens.IssueRefreshToken(u.ID)
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/forms", refresh, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh as access: status %d", rec.Code)
	}
}

func TestForeignTokenResolvesAdmin(t *testing.T) {
	env := newTestEnv(t)
	raw := foreignToken(t, "https://login.microsoftonline.com/tenant/v2.0")

	rec := env.do(t, http.MethodGet, "/api/v1/exhibitors", raw, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestForeignTokenRejectedByProvider(t *testing.T) {
	env := newTestEnv(t)
	env.provider.userInfoErr = errors.New("token not recognized")
	raw := foreignToken(t, "https://accounts.google.com")

	if rec := env.do(t, http.MethodGet, "/api/v1/exhibitors", raw, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestProviderUnreachableIsServerFault(t *testing.T) {
	env := newTestEnv(t)
	env.provider.userInfoErr = &url.Error{Op: "Get", URL: "https://provider.test/userinfo", Err: errors.New("dial tcp: timeout")}
	raw := foreignToken(t, "https://accounts.google.com")

	if rec := env.do(t, http.MethodGet, "/api/v1/exhibitors", raw, nil); rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestExtractBearerToken(t *testing.T) {
	if raw, err := extractBearerToken("Bearer abc.def.ghi"); err != nil || raw != "abc.def.ghi" {
		t.Fatalf("plain bearer: %q/%v", raw, err)
	}
	if raw, err := extractBearerToken("bearer abc"); err != nil || raw != "abc" {
		t.Fatalf("scheme is case-insensitive: %q/%v", raw, err)
	}
	for _, header := range []string{"", "Bearer ", "Token abc"} {
		if _, err := extractBearerToken(header); err == nil {
			t.Fatalf("%q: expected an error", header)
		}
	}
}
