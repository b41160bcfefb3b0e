// Package identity carries the resolved caller identity through the request
// context. A request is exactly one of: anonymous, a local portal user with
// verified claims, or a federated admin confirmed by the upstream provider.
package identity

import (
	"context"

	"portal.koudaisai.jp/internal/token"
)

// Kind discriminates the identity variant.
type Kind int

const (
	KindAnonymous Kind = iota
	KindUser
	KindAdmin
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindAdmin:
		return "admin"
	default:
		return "anonymous"
	}
}

// AdminProfile is the upstream identity of a federated admin.
type AdminProfile struct {
	Subject string
	Email   string
	Name    string
}

// Identity is the caller identity attached to a request.
type Identity struct {
	Kind   Kind
	Claims token.Claims  // set when Kind == KindUser
	Admin  *AdminProfile // set when Kind == KindAdmin
}

// Anonymous returns the unauthenticated identity.
func Anonymous() Identity { return Identity{Kind: KindAnonymous} }

// ForUser returns a local-user identity carrying verified claims.
func ForUser(c token.Claims) Identity { return Identity{Kind: KindUser, Claims: c} }

// ForAdmin returns a federated-admin identity.
func ForAdmin(p *AdminProfile) Identity { return Identity{Kind: KindAdmin, Admin: p} }

type ctxKey struct{}

// NewContext attaches id to ctx.
func NewContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext extracts the identity from ctx, defaulting to anonymous when
// the resolver never ran.
func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(ctxKey{}).(Identity); ok {
		return id
	}
	return Anonymous()
}
