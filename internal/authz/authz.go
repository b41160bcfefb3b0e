// Package authz decides what a resolved identity may see. Federated admins
// are unrestricted; local users are scoped to their exhibitor's category;
// anonymous callers act under the role "none". Existence of out-of-scope
// resources is never revealed: per-item denials surface as not-found.
package authz

import (
	"context"
	"errors"
	"fmt"

	"portal.koudaisai.jp/internal/identity"
	"portal.koudaisai.jp/internal/portal"
)

// RoleNone is the access-control role matched for anonymous callers.
const RoleNone = "none"

// ErrInconsistent marks a verified identity whose backing rows are missing.
// This is a server fault, never a policy denial.
var ErrInconsistent = errors.New("authz: identity references missing rows")

// Decision is the outcome of a per-resource check.
type Decision int

const (
	Allow Decision = iota
	// Forbidden denies without hiding: the caller may know the resource
	// class exists but may not touch it.
	Forbidden
	// Hide denies while concealing existence; handlers map it to not-found.
	Hide
)

// Scope is what a caller may see of the forms surface.
type Scope struct {
	Admin bool
	Roles []string
}

// AllowsRoles reports whether the scope covers a form carrying the given
// access-control role list.
func (s Scope) AllowsRoles(formRoles []string) bool {
	if s.Admin {
		return true
	}
	for _, have := range s.Roles {
		for _, want := range formRoles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Policy evaluates access rules against the identity's backing rows.
type Policy struct {
	users      portal.UserStore
	exhibitors portal.ExhibitorStore
}

// New builds a Policy over the given stores.
func New(users portal.UserStore, exhibitors portal.ExhibitorStore) *Policy {
	return &Policy{users: users, exhibitors: exhibitors}
}

// FormScope resolves the caller's form visibility. Local users inherit the
// role named by their exhibitor's category.
func (p *Policy) FormScope(ctx context.Context, id identity.Identity) (Scope, error) {
	switch id.Kind {
	case identity.KindAdmin:
		return Scope{Admin: true}, nil
	case identity.KindAnonymous:
		return Scope{Roles: []string{RoleNone}}, nil
	}
	ex, err := p.callerExhibitor(ctx, id)
	if err != nil {
		return Scope{}, err
	}
	return Scope{Roles: []string{ex.Type.String()}}, nil
}

// ExhibitorAccess decides whether the caller may read or update the
// exhibitor with the given id.
func (p *Policy) ExhibitorAccess(ctx context.Context, id identity.Identity, exhibitorID string) (Decision, error) {
	switch id.Kind {
	case identity.KindAdmin:
		return Allow, nil
	case identity.KindAnonymous:
		return Forbidden, nil
	}
	user, err := p.callerUser(ctx, id)
	if err != nil {
		return Forbidden, err
	}
	if user.ExhibitionID != exhibitorID {
		return Hide, nil
	}
	return Allow, nil
}

func (p *Policy) callerUser(ctx context.Context, id identity.Identity) (*portal.User, error) {
	sub, err := id.Claims.SubjectID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInconsistent, err)
	}
	user, err := p.users.FindUser(ctx, sub)
	if errors.Is(err, portal.ErrNotFound) {
		return nil, fmt.Errorf("%w: user %s", ErrInconsistent, sub)
	}
	if err != nil {
		return nil, fmt.Errorf("authz: load user: %w", err)
	}
	return user, nil
}

func (p *Policy) callerExhibitor(ctx context.Context, id identity.Identity) (*portal.Exhibitor, error) {
	user, err := p.callerUser(ctx, id)
	if err != nil {
		return nil, err
	}
	ex, err := p.exhibitors.FindExhibitor(ctx, user.ExhibitionID)
	if errors.Is(err, portal.ErrNotFound) {
		return nil, fmt.Errorf("%w: exhibitor %s", ErrInconsistent, user.ExhibitionID)
	}
	if err != nil {
		return nil, fmt.Errorf("authz: load exhibitor: %w", err)
	}
	return ex, nil
}

// CallerExhibitor exposes the identity-to-exhibitor resolution for handlers
// that need the category itself (response submission).
func (p *Policy) CallerExhibitor(ctx context.Context, id identity.Identity) (*portal.Exhibitor, error) {
	return p.callerExhibitor(ctx, id)
}
