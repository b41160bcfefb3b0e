package forms

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestAnswerRoundTrip(t *testing.T) {
	in := Answer{ItemID: uuid.New(), Kind: AnswerText, Text: "two tables, please"}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"answer_text":"two tables, please"`) {
		t.Fatalf("unexpected wire form: %s", data)
	}

	var out Answer
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestAnswerDecodeRejectsBadShapes(t *testing.T) {
	id := uuid.NewString()
	cases := map[string]string{
		"no variant":    `{"item_id":"` + id + `"}`,
		"missing item":  `{"answer_text":"v"}`,
		"unknown key":   `{"item_id":"` + id + `","answer_text":"v","extra":1}`,
		"duplicate key": `{"item_id":"` + id + `","answer_text":"a","answer_text":"b"}`,
	}
	for name, raw := range cases {
		var a Answer
		if err := json.Unmarshal([]byte(raw), &a); err == nil {
			t.Fatalf("%s: expected an error", name)
		}
	}
}

func TestResponseAnswersKeyedByItem(t *testing.T) {
	item := uuid.New()
	resp := Response{
		ID:           uuid.New(),
		FormID:       uuid.New(),
		RespondentID: uuid.New(),
		Answers: map[uuid.UUID]Answer{
			item: {ItemID: item, Kind: AnswerText, Text: "yes"},
		},
	}
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out Response
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got, ok := out.Answers[item]; !ok || got.Text != "yes" {
		t.Fatalf("answers map lost: %+v", out.Answers)
	}
}
