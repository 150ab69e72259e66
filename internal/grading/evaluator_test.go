package grading_test

import (
	"testing"

	"github.com/jasa1aw/eduBack/internal/domain"
	"github.com/jasa1aw/eduBack/internal/grading"
)

func TestEvaluateMultipleChoice(t *testing.T) {
	q := domain.Question{
		ID:             "q1",
		Type:           domain.MultipleChoice,
		Options:        []string{"Paris", "Oslo", "Vienna", "Zurich"},
		CorrectAnswers: []string{"Paris", "Vienna"},
	}

	cases := []struct {
		name     string
		selected []string
		want     bool
	}{
		{"exact", []string{"Paris", "Vienna"}, true},
		{"order does not matter", []string{"Vienna", "Paris"}, true},
		{"duplicates collapse", []string{"Paris", "Paris", "Vienna"}, true},
		{"missing one", []string{"Paris"}, false},
		{"extra one", []string{"Paris", "Vienna", "Oslo"}, false},
		{"empty", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := grading.Evaluate(q, tc.selected, "")
			if got == nil || *got != tc.want {
				t.Fatalf("Evaluate(%v) = %v, want %v", tc.selected, got, tc.want)
			}
		})
	}
}

func TestEvaluateShortAnswer(t *testing.T) {
	q := domain.Question{
		ID:             "q2",
		Type:           domain.ShortAnswer,
		CorrectAnswers: []string{"Lisbon", "Lisboa"},
	}

	cases := []struct {
		name   string
		answer string
		want   bool
	}{
		{"exact", "Lisbon", true},
		{"alternate accepted answer", "Lisboa", true},
		{"case insensitive", "lisbon", true},
		{"surrounding whitespace", "  Lisbon\t", true},
		{"wrong", "Porto", false},
		{"empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := grading.Evaluate(q, nil, tc.answer)
			if got == nil || *got != tc.want {
				t.Fatalf("Evaluate(%q) = %v, want %v", tc.answer, got, tc.want)
			}
		})
	}
}

func TestEvaluateTrueFalse(t *testing.T) {
	q := domain.Question{
		ID:             "q3",
		Type:           domain.TrueFalse,
		CorrectAnswers: []string{"true"},
	}

	if got := grading.Evaluate(q, []string{"true"}, ""); got == nil || !*got {
		t.Fatalf("expected true selection to be correct, got %v", got)
	}
	if got := grading.Evaluate(q, []string{"TRUE"}, ""); got == nil || !*got {
		t.Fatalf("expected case-insensitive match, got %v", got)
	}
	if got := grading.Evaluate(q, []string{"false"}, ""); got == nil || *got {
		t.Fatalf("expected false selection to be incorrect, got %v", got)
	}
	if got := grading.Evaluate(q, []string{"true", "false"}, ""); got == nil || *got {
		t.Fatalf("expected multi-selection to be incorrect, got %v", got)
	}
}

func TestEvaluateOpenQuestionIsUngraded(t *testing.T) {
	q := domain.Question{ID: "q4", Type: domain.OpenQuestion}
	if got := grading.Evaluate(q, nil, "long form essay"); got != nil {
		t.Fatalf("expected nil verdict for open question, got %v", *got)
	}
}

func TestEvaluateUnknownTypeFailsClosed(t *testing.T) {
	q := domain.Question{ID: "q5", Type: "MATCHING", CorrectAnswers: []string{"a"}}
	got := grading.Evaluate(q, []string{"a"}, "a")
	if got == nil || *got {
		t.Fatalf("expected unknown type to grade incorrect, got %v", got)
	}
}
