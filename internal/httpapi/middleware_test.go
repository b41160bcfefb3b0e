package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimitAuthSurface(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	limited := RateLimitPrefix(inner, "/auth/", 2, 1)

	send := func(path, addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := send("/auth/v1/login", "10.0.0.1:5000"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, rec.Code)
		}
	}
	rec := send("/auth/v1/login", "10.0.0.1:5000")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("burst exceeded: status %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Fatalf("Retry-After %q", rec.Header().Get("Retry-After"))
	}

	// Separate clients get separate buckets.
	if rec := send("/auth/v1/login", "10.0.0.2:5000"); rec.Code != http.StatusOK {
		t.Fatalf("fresh client: status %d", rec.Code)
	}

	// Paths outside the prefix are never limited.
	for i := 0; i < 5; i++ {
		if rec := send("/api/v1/forms", "10.0.0.1:5000"); rec.Code != http.StatusOK {
			t.Fatalf("unlimited path: status %d", rec.Code)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:4321"
	if ip := clientIP(req); ip != "192.0.2.10" {
		t.Fatalf("remote addr: %q", ip)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if ip := clientIP(req); ip != "203.0.113.7" {
		t.Fatalf("forwarded: %q", ip)
	}
}

func TestRecoverTurnsPanicInto500(t *testing.T) {
	h := Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestRequestIDGenerationIsUnique(t *testing.T) {
	a, b := newRequestID(), newRequestID()
	if a == "" || a == b {
		t.Fatalf("ids %q and %q", a, b)
	}
}
