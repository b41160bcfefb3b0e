// Package portal defines the core domain types shared across the service:
// exhibitor-team representative accounts and the exhibitor groups they
// belong to, together with the persistence contracts the storage layer
// implements.
package portal

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Category classifies an exhibitor group. The category string doubles as the
// access-control role matched against form role lists.
type Category string

const (
	CategoryBooth   Category = "booth"
	CategoryGeneral Category = "general"
	CategoryStage   Category = "stage"
	CategoryLabo    Category = "labo"
)

// Categories lists every valid exhibitor category.
var Categories = []Category{CategoryBooth, CategoryGeneral, CategoryStage, CategoryLabo}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string { return string(c) }

// RepresentativesPerExhibitor is the fixed number of representative accounts
// created for every exhibitor group.
const RepresentativesPerExhibitor = 3

// User is one exhibitor-team representative account. PasswordHash is nil
// until the account has been activated; PasswordSalt is assigned at row
// creation and never regenerated.
type User struct {
	ID           uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
	FirstName    string
	LastName     string
	Email        string
	PasswordHash *string
	PasswordSalt string
	ExhibitionID string
}

// Activated reports whether the account has completed activation.
func (u *User) Activated() bool { return u.PasswordHash != nil }

// Exhibitor is one exhibitor group with its three representative accounts.
type Exhibitor struct {
	ID              string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Name            string
	ExhibitionName  *string
	IconID          *string
	Description     *string
	Type            Category
	Representatives [RepresentativesPerExhibitor]uuid.UUID
}

// ExhibitorUpdate carries the mutable exhibitor fields; nil means unchanged.
type ExhibitorUpdate struct {
	ExhibitionName *string
	IconID         *string
	Description    *string
}

// Representative addresses are institutional student addresses; the same
// pattern is enforced by a CHECK constraint on the users table.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9_+-]+\.[a-zA-Z0-9_+-]+\.[0-9]{4}@m\.isct\.ac\.jp$`)

// ValidEmail reports whether addr matches the institutional address format.
func ValidEmail(addr string) bool {
	return emailPattern.MatchString(addr)
}
