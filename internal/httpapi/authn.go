package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"portal.koudaisai.jp/internal/identity"
	"portal.koudaisai.jp/internal/idp"
	"portal.koudaisai.jp/internal/token"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// withIdentity classifies the bearer credential of every request. No header
// means anonymous and the request proceeds; a malformed or unverifiable
// credential blocks the request.
func (a *API) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(authHeader)
		if strings.TrimSpace(header) == "" {
			ctx := identity.NewContext(r.Context(), identity.Anonymous())
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		raw, err := extractBearerToken(header)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		iss, err := token.UnverifiedIssuer(raw)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		var ident identity.Identity
		if iss == a.deps.Tokens.Issuer() {
			claims, err := a.deps.Tokens.Decode(raw)
			if err != nil || !a.deps.Tokens.IsAccessTokenValid(claims) {
				writeError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}
			ident = identity.ForUser(claims)
		} else {
			profile, err := a.deps.Provider.UserInfo(r.Context(), raw)
			if err != nil {
				if idp.Unreachable(err) {
					writeError(w, r, http.StatusInternalServerError, "identity provider unavailable")
					return
				}
				writeError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}
			ident = identity.ForAdmin(profile)
		}

		ctx := identity.NewContext(r.Context(), ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	raw := strings.TrimSpace(header[len(bearer):])
	if raw == "" {
		return "", errors.New("missing bearer token")
	}
	return raw, nil
}
