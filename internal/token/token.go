// Package token issues and verifies the portal's RS256 access and refresh
// tokens. Decoding verifies signature and structure only; expiry and
// revocation are layered on top through the validity predicates so callers
// can still read claims out of an expired token (revocation needs that).
package token

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Type tags a token as access or refresh via the typ claim.
type Type string

const (
	TypeAccess  Type = "access_token"
	TypeRefresh Type = "refresh_token"
)

const (
	// DefaultIssuer is the issuer written into every locally minted token
	// and matched by the identity resolver.
	DefaultIssuer = "https://portal.koudaisai.jp"

	DefaultAccessTTL  = 10 * time.Minute
	DefaultRefreshTTL = 6 * 30 * 24 * time.Hour
)

var (
	ErrInvalidToken   = errors.New("token: invalid token")
	ErrAlreadyRevoked = errors.New("token: already revoked")
)

// Claims is the portal token payload.
type Claims struct {
	Type Type `json:"typ"`
	jwt.RegisteredClaims
}

// SubjectID parses the sub claim as a UUID.
func (c Claims) SubjectID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return id, nil
}

// Pair bundles the two tokens returned by login.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RevocationStore records revoked refresh tokens keyed by the raw token
// string. Insert returns ErrAlreadyRevoked on a duplicate.
type RevocationStore interface {
	Insert(ctx context.Context, raw string, expiresAt time.Time) error
	Contains(ctx context.Context, raw string) (bool, error)
}

// Service signs and verifies portal tokens.
type Service struct {
	privateKey  *rsa.PrivateKey
	publicKey   *rsa.PublicKey
	issuer      string
	accessTTL   time.Duration
	refreshTTL  time.Duration
	revocations RevocationStore
	now         func() time.Time
}

// Option customizes the Service.
type Option func(*Service)

// WithIssuer overrides the issuer claim.
func WithIssuer(iss string) Option {
	return func(s *Service) { s.issuer = iss }
}

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(d time.Duration) Option {
	return func(s *Service) { s.accessTTL = d }
}

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(d time.Duration) Option {
	return func(s *Service) { s.refreshTTL = d }
}

// WithClock overrides the time source. Useful in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService parses the PEM-encoded RSA key pair and builds a Service.
func NewService(privatePEM, publicPEM []byte, revocations RevocationStore, opts ...Option) (*Service, error) {
	priv, err := jwt.ParseRSAPrivateKeyFromPEM(privatePEM)
	if err != nil {
		return nil, fmt.Errorf("token: parse private key: %w", err)
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(publicPEM)
	if err != nil {
		return nil, fmt.Errorf("token: parse public key: %w", err)
	}
	s := &Service{
		privateKey:  priv,
		publicKey:   pub,
		issuer:      DefaultIssuer,
		accessTTL:   DefaultAccessTTL,
		refreshTTL:  DefaultRefreshTTL,
		revocations: revocations,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issuer reports the issuer claim the service mints and accepts.
func (s *Service) Issuer() string { return s.issuer }

// IssueAccessToken mints a signed access token for sub.
func (s *Service) IssueAccessToken(sub uuid.UUID) (string, error) {
	return s.sign(TypeAccess, sub, s.accessTTL)
}

// IssueRefreshToken mints a signed refresh token for sub.
func (s *Service) IssueRefreshToken(sub uuid.UUID) (string, error) {
	return s.sign(TypeRefresh, sub, s.refreshTTL)
}

// IssuePair mints a fresh access/refresh pair for sub.
func (s *Service) IssuePair(sub uuid.UUID) (Pair, error) {
	access, err := s.IssueAccessToken(sub)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := s.IssueRefreshToken(sub)
	if err != nil {
		return Pair{}, err
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) sign(typ Type, sub uuid.UUID, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   sub.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and structure of raw and returns its claims.
// Expired tokens decode successfully; only the predicates below consult exp.
func (s *Service) Decode(raw string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	var claims Claims
	parsed, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.publicKey, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// IsAccessTokenValid reports whether c is an unexpired access token. A token
// whose expiry equals the current instant is already expired.
func (s *Service) IsAccessTokenValid(c Claims) bool {
	return c.Type == TypeAccess && s.unexpired(c)
}

// IsRefreshTokenValid reports whether the raw refresh token is unexpired and
// not revoked. The error is non-nil only when the revocation store fails.
func (s *Service) IsRefreshTokenValid(ctx context.Context, raw string, c Claims) (bool, error) {
	if c.Type != TypeRefresh || !s.unexpired(c) {
		return false, nil
	}
	revoked, err := s.revocations.Contains(ctx, raw)
	if err != nil {
		return false, fmt.Errorf("token: revocation lookup: %w", err)
	}
	return !revoked, nil
}

// Revoke stores the raw refresh token so later refreshes reject it. Revoking
// an already revoked token succeeds. Invalid or expired tokens are rejected
// with ErrInvalidToken.
func (s *Service) Revoke(ctx context.Context, raw string, c Claims) error {
	valid, err := s.IsRefreshTokenValid(ctx, raw, c)
	if err != nil {
		return err
	}
	if !valid {
		return ErrInvalidToken
	}
	var exp time.Time
	if c.ExpiresAt != nil {
		exp = c.ExpiresAt.Time
	}
	if err := s.revocations.Insert(ctx, raw, exp); err != nil {
		if errors.Is(err, ErrAlreadyRevoked) {
			return nil
		}
		return fmt.Errorf("token: revoke: %w", err)
	}
	return nil
}

func (s *Service) unexpired(c Claims) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return s.now().Before(c.ExpiresAt.Time)
}
