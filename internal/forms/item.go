package forms

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ItemKind selects the item variant.
type ItemKind int

const (
	KindQuestion ItemKind = iota
	KindPageBreak
	KindText
)

// Item is one form element. Question is set only for KindQuestion.
type Item struct {
	ID          uuid.UUID
	Title       string
	Description string
	Kind        ItemKind
	Question    *Question
}

// Question is the payload of a question item. Text is set for text questions,
// the only question type currently supported.
type Question struct {
	Required bool
	Text     *TextQuestion
}

// TextQuestion configures a free-text question.
type TextQuestion struct {
	Paragraph bool `json:"paragraph"`
}

var (
	errNoVariant        = errors.New("forms: item has no variant key")
	errConflictVariant  = errors.New("forms: item has more than one variant key")
	errNoQuestionKind   = errors.New("forms: question has no type key")
	errMissingItemField = errors.New("forms: item missing required field")
)

type itemQuestionWire struct {
	Question questionWire `json:"question"`
}

type questionWire struct {
	Required bool          `json:"required"`
	Text     *TextQuestion `json:"question_text,omitempty"`
}

// MarshalJSON renders the item with its variant key.
func (it Item) MarshalJSON() ([]byte, error) {
	type head struct {
		ID          uuid.UUID `json:"item_id"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
	}
	h := head{ID: it.ID, Title: it.Title, Description: it.Description}
	switch it.Kind {
	case KindQuestion:
		if it.Question == nil || it.Question.Text == nil {
			return nil, errNoQuestionKind
		}
		return json.Marshal(struct {
			head
			Question itemQuestionWire `json:"item_question"`
		}{h, itemQuestionWire{questionWire{Required: it.Question.Required, Text: it.Question.Text}}})
	case KindPageBreak:
		return json.Marshal(struct {
			head
			PageBreak struct{} `json:"item_page_break"`
		}{head: h})
	case KindText:
		return json.Marshal(struct {
			head
			Text struct{} `json:"item_text"`
		}{head: h})
	}
	return nil, fmt.Errorf("forms: unknown item kind %d", it.Kind)
}

// UnmarshalJSON decodes an item, requiring exactly one variant key and
// rejecting unknown or duplicate keys.
func (it *Item) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}

	var (
		out     Item
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
			return fmt.Errorf("forms: unexpected token %v in item", tok)
		}
		if seen[key] {
			return fmt.Errorf("forms: duplicate key %q in item", key)
		}
		seen[key] = true

		switch key {
		case "item_id":
			if err := dec.Decode(&out.ID); err != nil {
				return fmt.Errorf("forms: item_id: %w", err)
			}
		case "title":
			if err := dec.Decode(&out.Title); err != nil {
				return fmt.Errorf("forms: title: %w", err)
			}
		case "description":
			if err := dec.Decode(&out.Description); err != nil {
				return fmt.Errorf("forms: description: %w", err)
			}
		case "item_question":
			if variant {
				return errConflictVariant
			}
			variant = true
			var w itemQuestionWire
			if err := dec.Decode(&w); err != nil {
				return fmt.Errorf("forms: item_question: %w", err)
			}
			if w.Question.Text == nil {
				return errNoQuestionKind
			}
			out.Kind = KindQuestion
			out.Question = &Question{Required: w.Question.Required, Text: w.Question.Text}
		case "item_page_break":
			if variant {
				return errConflictVariant
			}
			variant = true
			if err := skipValue(dec); err != nil {
				return fmt.Errorf("forms: item_page_break: %w", err)
			}
			out.Kind = KindPageBreak
		case "item_text":
			if variant {
				return errConflictVariant
			}
			variant = true
			if err := skipValue(dec); err != nil {
				return fmt.Errorf("forms: item_text: %w", err)
			}
			out.Kind = KindText
		default:
			return fmt.Errorf("forms: unknown key %q in item", key)
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if !variant {
		return errNoVariant
	}
	if !seen["item_id"] || !seen["title"] || !seen["description"] {
		return errMissingItemField
	}
	*it = out
	return nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("forms: expected %q, got %v", want, tok)
	}
	return nil
}

// skipValue consumes one JSON value from the decoder.
func skipValue(dec *json.Decoder) error {
	var raw json.RawMessage
	return dec.Decode(&raw)
}
