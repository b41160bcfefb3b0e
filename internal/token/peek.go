package token

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// UnverifiedIssuer extracts the iss claim from raw without verifying the
// signature. The identity resolver uses it to pick the verification path;
// nothing else may trust the result.
func UnverifiedIssuer(raw string) (string, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: not a compact JWT", ErrInvalidToken)
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: bad payload encoding", ErrInvalidToken)
	}
	var body struct {
		Issuer string `json:"iss"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", fmt.Errorf("%w: bad payload", ErrInvalidToken)
	}
	return body.Issuer, nil
}
