// Package forms models questionnaire forms and their responses. Form items
// and answers use a tagged-variant JSON encoding: the variant is carried by
// the presence of exactly one variant key (item_question, item_page_break,
// item_text; answer_text), enforced on decode.
package forms

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound reports a missing form or response.
var ErrNotFound = errors.New("forms: not found")

// Form is one questionnaire with its access-control role list.
type Form struct {
	ID            uuid.UUID     `json:"form_id"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Info          Info          `json:"info"`
	Items         []Item        `json:"items"`
	AccessControl AccessControl `json:"access_control"`
}

// Info carries form display metadata.
type Info struct {
	Title         string `json:"title"`
	DocumentTitle string `json:"document_title"`
	Description   string `json:"description"`
}

// AccessControl lists the roles allowed to see and answer the form.
type AccessControl struct {
	Roles []string `json:"roles"`
}

// AllowsAny reports whether any of the given roles appears in the list.
func (a AccessControl) AllowsAny(roles []string) bool {
	for _, want := range roles {
		for _, have := range a.Roles {
			if want == have {
				return true
			}
		}
	}
	return false
}

// Response is one submission against a form, keyed by the answered item ids.
type Response struct {
	ID           uuid.UUID            `json:"response_id"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
	FormID       uuid.UUID            `json:"form_id"`
	RespondentID uuid.UUID            `json:"respondent_id"`
	Answers      map[uuid.UUID]Answer `json:"answers"`
}

// FormUpdate carries a partial form update; nil means unchanged.
type FormUpdate struct {
	Info          *Info
	Items         *[]Item
	AccessControl *AccessControl
}

// Store manages forms.
type Store interface {
	CreateForm(ctx context.Context, f *Form) error
	FindForm(ctx context.Context, id uuid.UUID) (*Form, error)
	ListForms(ctx context.Context) ([]*Form, error)
	UpdateForm(ctx context.Context, id uuid.UUID, upd FormUpdate) (*Form, error)
	DeleteForm(ctx context.Context, id uuid.UUID) error
}

// ResponseStore manages form responses.
type ResponseStore interface {
	CreateResponse(ctx context.Context, r *Response) error
	ListResponses(ctx context.Context, formID uuid.UUID) ([]*Response, error)
	ListResponsesByRespondent(ctx context.Context, formID, respondentID uuid.UUID) ([]*Response, error)
}
