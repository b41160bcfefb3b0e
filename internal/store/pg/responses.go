package pg

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"portal.koudaisai.jp/internal/forms"
)

const responseColumns = `id, created_at, updated_at, form_id, respondent_id, answers`

func (s *Store) CreateResponse(ctx context.Context, r *forms.Response) error {
	answers, err := json.Marshal(r.Answers)
	if err != nil {
		return fmt.Errorf("pg: encode answers: %w", err)
	}
	return s.db.QueryRowContext(ctx, `
		insert into form_responses(id, form_id, respondent_id, answers)
		values ($1,$2,$3,$4)
		returning created_at, updated_at
	`, r.ID, r.FormID, r.RespondentID, answers).Scan(&r.CreatedAt, &r.UpdatedAt)
}

func (s *Store) ListResponses(ctx context.Context, formID uuid.UUID) ([]*forms.Response, error) {
	return s.queryResponses(ctx, `select `+responseColumns+` from form_responses where form_id=$1 order by created_at`, formID)
}

func (s *Store) ListResponsesByRespondent(ctx context.Context, formID, respondentID uuid.UUID) ([]*forms.Response, error) {
	return s.queryResponses(ctx, `select `+responseColumns+` from form_responses where form_id=$1 and respondent_id=$2 order by created_at`, formID, respondentID)
}

func (s *Store) queryResponses(ctx context.Context, query string, args ...any) ([]*forms.Response, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*forms.Response
	for rows.Next() {
		var (
			r       forms.Response
			answers []byte
		)
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt, &r.FormID, &r.RespondentID, &answers); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(answers, &r.Answers); err != nil {
			return nil, fmt.Errorf("pg: decode answers: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
