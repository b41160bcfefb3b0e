package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"portal.koudaisai.jp/internal/portal"
)

const exhibitorColumns = `id, created_at, updated_at, exhibitor_name, exhibition_name, icon_id, description, type, representative1, representative2, representative3`

// categoryTables maps a category onto its marker table. The lookup doubles
// as an allowlist so the category never reaches SQL as raw text.
var categoryTables = map[portal.Category]string{
	portal.CategoryBooth:   "exhibitors_booth",
	portal.CategoryGeneral: "exhibitors_general",
	portal.CategoryStage:   "exhibitors_stage",
	portal.CategoryLabo:    "exhibitors_labo",
}

func (s *Store) Register(ctx context.Context, ex *portal.Exhibitor, reps []*portal.User) error {
	table, ok := categoryTables[ex.Type]
	if !ok {
		return fmt.Errorf("pg: unknown exhibitor category %q", ex.Type)
	}
	if len(reps) != portal.RepresentativesPerExhibitor {
		return fmt.Errorf("pg: exhibitor needs %d representatives, got %d", portal.RepresentativesPerExhibitor, len(reps))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		insert into exhibitors_root(id, exhibitor_name, type, representative1, representative2, representative3)
		values ($1,$2,$3,$4,$5,$6)
		returning created_at, updated_at
	`, ex.ID, ex.Name, ex.Type.String(), ex.Representatives[0], ex.Representatives[1], ex.Representatives[2]).
		Scan(&ex.CreatedAt, &ex.UpdatedAt)
	if uniqueViolation(err) {
		return portal.ErrAlreadyExists
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `insert into `+table+`(id) values ($1)`, ex.ID); err != nil {
		return err
	}

	for _, rep := range reps {
		err := tx.QueryRowContext(ctx, `
			insert into users(id, first_name, last_name, m_address, exhibition_id)
			values ($1,$2,$3,$4,$5)
			returning created_at, updated_at, password_salt
		`, rep.ID, rep.FirstName, rep.LastName, rep.Email, ex.ID).
			Scan(&rep.CreatedAt, &rep.UpdatedAt, &rep.PasswordSalt)
		if uniqueViolation(err) {
			return portal.ErrAlreadyExists
		}
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) FindExhibitor(ctx context.Context, id string) (*portal.Exhibitor, error) {
	row := s.db.QueryRowContext(ctx, `select `+exhibitorColumns+` from exhibitors_root where id=$1`, id)
	ex, err := scanExhibitor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, portal.ErrNotFound
	}
	return ex, err
}

func (s *Store) ListExhibitors(ctx context.Context) ([]*portal.Exhibitor, error) {
	rows, err := s.db.QueryContext(ctx, `select `+exhibitorColumns+` from exhibitors_root order by created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*portal.Exhibitor
	for rows.Next() {
		ex, err := scanExhibitor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}

func (s *Store) UpdateExhibitor(ctx context.Context, id string, upd portal.ExhibitorUpdate) error {
	sets := []string{}
	args := []any{id}
	add := func(col string, val *string) {
		if val != nil {
			args = append(args, *val)
			sets = append(sets, fmt.Sprintf("%s=$%d", col, len(args)))
		}
	}
	add("exhibition_name", upd.ExhibitionName)
	add("icon_id", upd.IconID)
	add("description", upd.Description)
	if len(sets) == 0 {
		// Nothing to change; still report absence.
		var one int
		err := s.db.QueryRowContext(ctx, `select 1 from exhibitors_root where id=$1`, id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return portal.ErrNotFound
		}
		return err
	}

	res, err := s.db.ExecContext(ctx, `update exhibitors_root set `+strings.Join(sets, ", ")+` where id=$1`, args...)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExhibitor(row rowScanner) (*portal.Exhibitor, error) {
	var (
		ex                            portal.Exhibitor
		exhibitionName, iconID, descr sql.NullString
		category                      string
		rep1, rep2, rep3              uuid.UUID
	)
	err := row.Scan(&ex.ID, &ex.CreatedAt, &ex.UpdatedAt, &ex.Name, &exhibitionName, &iconID, &descr, &category, &rep1, &rep2, &rep3)
	if err != nil {
		return nil, err
	}
	if exhibitionName.Valid {
		ex.ExhibitionName = &exhibitionName.String
	}
	if iconID.Valid {
		ex.IconID = &iconID.String
	}
	if descr.Valid {
		ex.Description = &descr.String
	}
	ex.Type = portal.Category(category)
	ex.Representatives = [portal.RepresentativesPerExhibitor]uuid.UUID{rep1, rep2, rep3}
	return &ex, nil
}
