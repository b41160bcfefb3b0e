package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"portal.koudaisai.jp/internal/portal"
)

const userColumns = `id, created_at, updated_at, first_name, last_name, m_address, password_hash, password_salt, exhibition_id`

func (s *Store) FindUser(ctx context.Context, id uuid.UUID) (*portal.User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*portal.User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where m_address=$1`, email)
	return scanUser(row)
}

func (s *Store) SetUserPassword(ctx context.Context, id uuid.UUID, hash string) error {
	res, err := s.db.ExecContext(ctx, `update users set password_hash=$2 where id=$1`, id, hash)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return portal.ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*portal.User, error) {
	var (
		u    portal.User
		hash sql.NullString
	)
	err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt, &u.FirstName, &u.LastName, &u.Email, &hash, &u.PasswordSalt, &u.ExhibitionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, portal.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if hash.Valid {
		u.PasswordHash = &hash.String
	}
	return &u, nil
}
