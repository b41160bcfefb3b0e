package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"portal.koudaisai.jp/internal/identity"
	"portal.koudaisai.jp/internal/obs"
	"portal.koudaisai.jp/internal/token"
)

func TestLogEvent(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	claims := token.Claims{
		Type: token.TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "2a5c8a90-0000-0000-0000-000000000042",
		},
	}
	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = identity.NewContext(ctx, identity.ForUser(claims))

	if err := LogEvent(ctx, "auth.login", map[string]any{"result": "ok"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	line := buf.String()
	if line == "" {
		t.Fatal("expected log output")
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != "auth.login" {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["caller"] != "user" {
		t.Fatalf("unexpected caller: %v", entry["caller"])
	}
	if entry["caller_id"] != "2a5c8a90-0000-0000-0000-000000000042" {
		t.Fatalf("unexpected caller id: %v", entry["caller_id"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["result"] != "ok" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}
