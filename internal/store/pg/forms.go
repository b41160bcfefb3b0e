package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"portal.koudaisai.jp/internal/forms"
)

const formColumns = `id, created_at, updated_at, info, items, access_control_roles`

func (s *Store) CreateForm(ctx context.Context, f *forms.Form) error {
	info, items, roles, err := encodeForm(f.Info, f.Items, f.AccessControl)
	if err != nil {
		return err
	}
	return s.db.QueryRowContext(ctx, `
		insert into forms(id, info, items, access_control_roles)
		values ($1,$2,$3,$4)
		returning created_at, updated_at
	`, f.ID, info, items, roles).Scan(&f.CreatedAt, &f.UpdatedAt)
}

func (s *Store) FindForm(ctx context.Context, id uuid.UUID) (*forms.Form, error) {
	row := s.db.QueryRowContext(ctx, `select `+formColumns+` from forms where id=$1`, id)
	f, err := scanForm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, forms.ErrNotFound
	}
	return f, err
}

func (s *Store) ListForms(ctx context.Context) ([]*forms.Form, error) {
	rows, err := s.db.QueryContext(ctx, `select `+formColumns+` from forms order by created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*forms.Form
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) UpdateForm(ctx context.Context, id uuid.UUID, upd forms.FormUpdate) (*forms.Form, error) {
	sets := []string{}
	args := []any{id}
	add := func(col string, val any) error {
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("pg: encode %s: %w", col, err)
		}
		args = append(args, raw)
		sets = append(sets, fmt.Sprintf("%s=$%d", col, len(args)))
		return nil
	}
	if upd.Info != nil {
		if err := add("info", upd.Info); err != nil {
			return nil, err
		}
	}
	if upd.Items != nil {
		if err := add("items", *upd.Items); err != nil {
			return nil, err
		}
	}
	if upd.AccessControl != nil {
		if err := add("access_control_roles", upd.AccessControl.Roles); err != nil {
			return nil, err
		}
	}
	if len(sets) == 0 {
		return s.FindForm(ctx, id)
	}

	row := s.db.QueryRowContext(ctx, `
		update forms set `+strings.Join(sets, ", ")+`
		where id=$1
		returning `+formColumns, args...)
	f, err := scanForm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, forms.ErrNotFound
	}
	return f, err
}

func (s *Store) DeleteForm(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `delete from forms where id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return forms.ErrNotFound
	}
	return nil
}

func encodeForm(info forms.Info, items []forms.Item, ac forms.AccessControl) ([]byte, []byte, []byte, error) {
	infoRaw, err := json.Marshal(info)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("pg: encode info: %w", err)
	}
	if items == nil {
		items = []forms.Item{}
	}
	itemsRaw, err := json.Marshal(items)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("pg: encode items: %w", err)
	}
	roles := ac.Roles
	if roles == nil {
		roles = []string{}
	}
	rolesRaw, err := json.Marshal(roles)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("pg: encode roles: %w", err)
	}
	return infoRaw, itemsRaw, rolesRaw, nil
}

func scanForm(row rowScanner) (*forms.Form, error) {
	var (
		f                        forms.Form
		infoRaw, itemsRaw, roles []byte
	)
	if err := row.Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt, &infoRaw, &itemsRaw, &roles); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(infoRaw, &f.Info); err != nil {
		return nil, fmt.Errorf("pg: decode info: %w", err)
	}
	if err := json.Unmarshal(itemsRaw, &f.Items); err != nil {
		return nil, fmt.Errorf("pg: decode items: %w", err)
	}
	if err := json.Unmarshal(roles, &f.AccessControl.Roles); err != nil {
		return nil, fmt.Errorf("pg: decode roles: %w", err)
	}
	return &f, nil
}
