// Package account implements the credential lifecycle of representative
// accounts: activation, password login, token refresh, password reset,
// refresh revocation, and the federated admin login flow.
package account

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"portal.koudaisai.jp/internal/idp"
	"portal.koudaisai.jp/internal/portal"
	"portal.koudaisai.jp/internal/sha"
	"portal.koudaisai.jp/internal/token"
)

var (
	// ErrNotFound reports a missing user row.
	ErrNotFound = errors.New("account: user not found")
	// ErrConflict reports an activation attempt on an activated account.
	ErrConflict = errors.New("account: already activated")
	// ErrUnauthorized covers every credential failure. Callers are not
	// told which check failed.
	ErrUnauthorized = errors.New("account: unauthorized")
	// ErrUnknownState reports a provider callback whose state matches no
	// pending login.
	ErrUnknownState = errors.New("account: unknown login state")
)

// Service runs the account lifecycle operations.
type Service struct {
	users          portal.UserStore
	tokens         *token.Service
	hasher         *sha.Hasher
	activationSalt string
	sessions       *SessionStore
	provider       idp.Connector
}

// NewService wires the lifecycle dependencies. provider may be nil only when
// the admin login surface is disabled.
func NewService(users portal.UserStore, tokens *token.Service, hasher *sha.Hasher, activationSalt string, sessions *SessionStore, provider idp.Connector) *Service {
	return &Service{
		users:          users,
		tokens:         tokens,
		hasher:         hasher,
		activationSalt: activationSalt,
		sessions:       sessions,
		provider:       provider,
	}
}

// ActivationToken derives the activation token for a user id. The same
// formula runs on the registration side that distributes the tokens.
func (s *Service) ActivationToken(userID uuid.UUID) string {
	return s.hasher.StretchWithSalt(userID.String(), s.activationSalt)
}

// Activate sets the initial password of a not-yet-activated account after
// checking the presented activation token.
func (s *Service) Activate(ctx context.Context, userID uuid.UUID, activationToken, password string) error {
	want := s.ActivationToken(userID)
	if sha.Digest(activationToken) != sha.Digest(want) {
		return ErrUnauthorized
	}
	user, err := s.users.FindUser(ctx, userID)
	if errors.Is(err, portal.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("account: activate: %w", err)
	}
	if user.Activated() {
		return ErrConflict
	}
	hash := s.hasher.StretchWithSalt(password, user.PasswordSalt)
	if err := s.users.SetUserPassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("account: activate: %w", err)
	}
	return nil
}

// Login checks the address/password pair and issues a token pair. Every
// failure mode collapses to ErrUnauthorized.
func (s *Service) Login(ctx context.Context, email, password string) (token.Pair, error) {
	user, err := s.users.FindUserByEmail(ctx, email)
	if errors.Is(err, portal.ErrNotFound) {
		return token.Pair{}, ErrUnauthorized
	}
	if err != nil {
		return token.Pair{}, fmt.Errorf("account: login: %w", err)
	}
	if !user.Activated() {
		return token.Pair{}, ErrUnauthorized
	}
	prompted := s.hasher.StretchWithSalt(password, user.PasswordSalt)
	if sha.Digest(prompted) != sha.Digest(*user.PasswordHash) {
		return token.Pair{}, ErrUnauthorized
	}
	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return token.Pair{}, fmt.Errorf("account: login: %w", err)
	}
	return pair, nil
}

// Refresh issues a fresh access token against a valid refresh token. The
// refresh token itself is not rotated.
func (s *Service) Refresh(ctx context.Context, rawRefresh string) (string, error) {
	claims, err := s.tokens.Decode(rawRefresh)
	if err != nil {
		return "", ErrUnauthorized
	}
	valid, err := s.tokens.IsRefreshTokenValid(ctx, rawRefresh, claims)
	if err != nil {
		return "", fmt.Errorf("account: refresh: %w", err)
	}
	if !valid {
		return "", ErrUnauthorized
	}
	sub, err := claims.SubjectID()
	if err != nil {
		return "", ErrUnauthorized
	}
	access, err := s.tokens.IssueAccessToken(sub)
	if err != nil {
		return "", fmt.Errorf("account: refresh: %w", err)
	}
	return access, nil
}

// Reset changes the password of the caller identified by a valid access
// token, after re-checking the old password.
func (s *Service) Reset(ctx context.Context, rawAccess, oldPassword, newPassword string) error {
	claims, err := s.tokens.Decode(rawAccess)
	if err != nil {
		return ErrUnauthorized
	}
	if !s.tokens.IsAccessTokenValid(claims) {
		return ErrUnauthorized
	}
	sub, err := claims.SubjectID()
	if err != nil {
		return ErrUnauthorized
	}
	user, err := s.users.FindUser(ctx, sub)
	if err != nil {
		// A verified subject with no row is a server fault, not 401.
		return fmt.Errorf("account: reset: load user: %w", err)
	}
	if !user.Activated() {
		return ErrUnauthorized
	}
	old := s.hasher.StretchWithSalt(oldPassword, user.PasswordSalt)
	if sha.Digest(old) != sha.Digest(*user.PasswordHash) {
		return ErrUnauthorized
	}
	hash := s.hasher.StretchWithSalt(newPassword, user.PasswordSalt)
	if err := s.users.SetUserPassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("account: reset: %w", err)
	}
	return nil
}

// Revoke invalidates a refresh token for all future refreshes. Revoking an
// already revoked token succeeds.
func (s *Service) Revoke(ctx context.Context, rawRefresh string) error {
	claims, err := s.tokens.Decode(rawRefresh)
	if err != nil {
		return ErrUnauthorized
	}
	if err := s.tokens.Revoke(ctx, rawRefresh, claims); err != nil {
		if errors.Is(err, token.ErrInvalidToken) {
			return ErrUnauthorized
		}
		return fmt.Errorf("account: revoke: %w", err)
	}
	return nil
}

// AdminLoginURL starts a federated admin login: it parks the PKCE verifier
// and nonce under a fresh state value and returns the provider URL to
// redirect the admin to.
func (s *Service) AdminLoginURL() (string, error) {
	state, err := randomToken()
	if err != nil {
		return "", fmt.Errorf("account: admin login: %w", err)
	}
	nonce, err := randomToken()
	if err != nil {
		return "", fmt.Errorf("account: admin login: %w", err)
	}
	verifier, err := randomToken()
	if err != nil {
		return "", fmt.Errorf("account: admin login: %w", err)
	}
	s.sessions.Put(state, Session{Verifier: verifier, Nonce: nonce})
	return s.provider.AuthCodeURL(state, nonce, verifier), nil
}

// AdminRedirect completes the callback leg: the state must match a pending
// login (single use), then the code is exchanged with the parked verifier
// and nonce.
func (s *Service) AdminRedirect(ctx context.Context, state, code string) (idp.Tokens, error) {
	sess, ok := s.sessions.Take(state)
	if !ok {
		return idp.Tokens{}, ErrUnknownState
	}
	toks, err := s.provider.Exchange(ctx, code, sess.Verifier, sess.Nonce)
	if err != nil {
		return idp.Tokens{}, fmt.Errorf("account: admin redirect: %w", err)
	}
	return toks, nil
}

// randomToken returns 32 bytes of CSPRNG output, base64url encoded. Used for
// the OAuth2 state, nonce and PKCE verifier.
func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
