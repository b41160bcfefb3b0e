package portal

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("portal: not found")
	ErrAlreadyExists = errors.New("portal: already exists")
)

// UserStore manages representative accounts.
type UserStore interface {
	FindUser(ctx context.Context, id uuid.UUID) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	SetUserPassword(ctx context.Context, id uuid.UUID, hash string) error
}

// ExhibitorStore manages exhibitor groups. Register creates the group, its
// category row and its three representative accounts atomically.
type ExhibitorStore interface {
	Register(ctx context.Context, ex *Exhibitor, reps []*User) error
	FindExhibitor(ctx context.Context, id string) (*Exhibitor, error)
	ListExhibitors(ctx context.Context) ([]*Exhibitor, error)
	UpdateExhibitor(ctx context.Context, id string, upd ExhibitorUpdate) error
}
