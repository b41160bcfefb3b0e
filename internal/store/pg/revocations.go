package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"portal.koudaisai.jp/internal/token"
)

func (s *Store) Insert(ctx context.Context, raw string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		insert into revoked_refresh_tokens(refresh_token, exp)
		values ($1,$2)
	`, raw, expiresAt)
	if uniqueViolation(err) {
		return token.ErrAlreadyRevoked
	}
	return err
}

func (s *Store) Contains(ctx context.Context, raw string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `select 1 from revoked_refresh_tokens where refresh_token=$1`, raw).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
