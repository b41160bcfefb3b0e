// Package idp wraps the upstream OIDC provider used for admin federation:
// discovery, the PKCE authorization-code flow, and user-info lookups for
// bearer tokens minted by the provider.
package idp

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"portal.koudaisai.jp/internal/identity"
)

var (
	ErrNoRefreshToken = errors.New("idp: token response missing refresh_token")
	ErrNoIDToken      = errors.New("idp: token response missing id_token")
	ErrNonceMismatch  = errors.New("idp: id_token nonce mismatch")
)

// Tokens is the provider token set handed back to an admin after login.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Connector is the provider surface the account service and the identity
// resolver depend on. Tests substitute a fake.
type Connector interface {
	AuthCodeURL(state, nonce, verifier string) string
	Exchange(ctx context.Context, code, verifier, nonce string) (Tokens, error)
	UserInfo(ctx context.Context, accessToken string) (*identity.AdminProfile, error)
}

// Config identifies the upstream provider and this client.
type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Client talks to a discovered OIDC provider.
type Client struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
	oauth    oauth2.Config
}

// Discover runs OIDC discovery against cfg.IssuerURL and builds a Client
// requesting the openid/profile/email/offline_access scopes.
func Discover(ctx context.Context, cfg Config) (*Client, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("idp: discovery: %w", err)
	}
	return &Client{
		provider: provider,
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess},
		},
	}, nil
}

// AuthCodeURL builds the provider authorization URL carrying the CSRF state,
// the id_token nonce and the S256 challenge for verifier.
func (c *Client) AuthCodeURL(state, nonce, verifier string) string {
	return c.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oidc.Nonce(nonce),
		oauth2.S256ChallengeOption(verifier),
	)
}

// Exchange redeems the authorization code with the PKCE verifier, requires a
// refresh token and a verified id_token, and checks the nonce round-tripped.
func (c *Client) Exchange(ctx context.Context, code, verifier, nonce string) (Tokens, error) {
	tok, err := c.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return Tokens{}, fmt.Errorf("idp: code exchange: %w", err)
	}
	if tok.RefreshToken == "" {
		return Tokens{}, ErrNoRefreshToken
	}
	rawID, ok := tok.Extra("id_token").(string)
	if !ok || rawID == "" {
		return Tokens{}, ErrNoIDToken
	}
	idToken, err := c.verifier.Verify(ctx, rawID)
	if err != nil {
		return Tokens{}, fmt.Errorf("idp: id_token verify: %w", err)
	}
	if idToken.Nonce != nonce {
		return Tokens{}, ErrNonceMismatch
	}
	return Tokens{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}, nil
}

// UserInfo resolves a provider-issued bearer token to the admin it belongs
// to. Verification failures are ordinary errors; use Unreachable to tell a
// dead provider apart from a rejected token.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (*identity.AdminProfile, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	info, err := c.provider.UserInfo(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("idp: user-info: %w", err)
	}
	var extra struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := info.Claims(&extra); err != nil {
		return nil, fmt.Errorf("idp: user-info claims: %w", err)
	}
	email := info.Email
	if email == "" {
		email = extra.Email
	}
	return &identity.AdminProfile{Subject: info.Subject, Email: email, Name: extra.Name}, nil
}

// Unreachable reports whether err is a transport failure reaching the
// provider rather than the provider rejecting the credential.
func Unreachable(err error) bool {
	var uerr *url.Error
	return errors.As(err, &uerr)
}
