// Package pg implements every store contract over Postgres through
// database/sql with the pgx stdlib driver.
package pg

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"portal.koudaisai.jp/internal/forms"
	"portal.koudaisai.jp/internal/portal"
	"portal.koudaisai.jp/internal/token"
)

type Store struct {
	db *sql.DB
}

var (
	_ portal.UserStore      = (*Store)(nil)
	_ portal.ExhibitorStore = (*Store)(nil)
	_ forms.Store           = (*Store)(nil)
	_ forms.ResponseStore   = (*Store)(nil)
	_ token.RevocationStore = (*Store)(nil)
)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing handle. Tests use it with sqlmock.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// uniqueViolation reports whether err is a Postgres unique_violation.
func uniqueViolation(err error) bool {
	var pgerr *pgconn.PgError
	return errors.As(err, &pgerr) && pgerr.Code == "23505"
}
