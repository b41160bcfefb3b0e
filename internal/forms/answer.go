package forms

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// AnswerKind selects the answer variant.
type AnswerKind int

const (
	AnswerText AnswerKind = iota
)

// Answer is the reply to a single item. Text holds the value for AnswerText.
type Answer struct {
	ItemID uuid.UUID
	Kind   AnswerKind
	Text   string
}

var (
	errNoAnswerVariant       = errors.New("forms: answer has no variant key")
	errConflictAnswerVariant = errors.New("forms: answer has more than one variant key")
	errMissingAnswerItemID   = errors.New("forms: answer missing item_id")
)

// MarshalJSON renders the answer with its variant key.
func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case AnswerText:
		return json.Marshal(struct {
			ItemID uuid.UUID `json:"item_id"`
			Text   string    `json:"answer_text"`
		}{a.ItemID, a.Text})
	}
	return nil, fmt.Errorf("forms: unknown answer kind %d", a.Kind)
}

// UnmarshalJSON decodes an answer, requiring exactly one variant key and
// rejecting unknown or duplicate keys.
func (a *Answer) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}

	var (
		out     Answer
		seen    = map[string]bool{}
		variant = false
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("forms: unexpected token %v in answer", tok)
		}
		if seen[key] {
			return fmt.Errorf("forms: duplicate key %q in answer", key)
		}
		seen[key] = true

		switch key {
		case "item_id":
			if err := dec.Decode(&out.ItemID); err != nil {
				return fmt.Errorf("forms: item_id: %w", err)
			}
		case "answer_text":
			if variant {
				return errConflictAnswerVariant
			}
			variant = true
			if err := dec.Decode(&out.Text); err != nil {
				return fmt.Errorf("forms: answer_text: %w", err)
			}
			out.Kind = AnswerText
		default:
			return fmt.Errorf("forms: unknown key %q in answer", key)
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if !variant {
		return errNoAnswerVariant
	}
	if !seen["item_id"] {
		return errMissingAnswerItemID
	}
	*a = out
	return nil
}
