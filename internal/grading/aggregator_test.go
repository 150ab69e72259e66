package grading_test

import (
	"testing"

	"github.com/jasa1aw/eduBack/internal/domain"
	"github.com/jasa1aw/eduBack/internal/grading"
)

func TestAggregateWeighted(t *testing.T) {
	questions := []domain.Question{
		{ID: "q1", Weight: 3},
		{ID: "q2", Weight: 1},
		{ID: "q3"}, // defaults to weight 1
	}
	answers := []domain.AttemptAnswer{
		answer("q1", true),
		answer("q2", false),
		answer("q3", true),
	}

	// 4 of 5 weight units correct: 80%.
	if got := grading.Aggregate(answers, questions); got != 80 {
		t.Fatalf("Aggregate = %d, want 80", got)
	}
}

func TestAggregateSkipsUngraded(t *testing.T) {
	questions := []domain.Question{
		{ID: "q1", Weight: 1},
		{ID: "q2", Weight: 5},
	}
	answers := []domain.AttemptAnswer{
		answer("q1", true),
		{QuestionID: "q2"}, // pending review
	}

	// The pending answer contributes to neither side of the ratio.
	if got := grading.Aggregate(answers, questions); got != 100 {
		t.Fatalf("Aggregate = %d, want 100", got)
	}
}

func TestAggregateZeroDenominator(t *testing.T) {
	questions := []domain.Question{{ID: "q1", Weight: 2}}

	if got := grading.Aggregate(nil, questions); got != 0 {
		t.Fatalf("Aggregate with no answers = %d, want 0", got)
	}
	if got := grading.Aggregate([]domain.AttemptAnswer{{QuestionID: "q1"}}, questions); got != 0 {
		t.Fatalf("Aggregate with only pending answers = %d, want 0", got)
	}
}

func TestAggregateRounds(t *testing.T) {
	questions := []domain.Question{
		{ID: "q1"}, {ID: "q2"}, {ID: "q3"},
	}
	answers := []domain.AttemptAnswer{
		answer("q1", true),
		answer("q2", false),
		answer("q3", false),
	}

	// 1/3 rounds to 33.
	if got := grading.Aggregate(answers, questions); got != 33 {
		t.Fatalf("Aggregate = %d, want 33", got)
	}
	answers[1] = answer("q2", true)
	// 2/3 rounds to 67, not 66.
	if got := grading.Aggregate(answers, questions); got != 67 {
		t.Fatalf("Aggregate = %d, want 67", got)
	}
}

func TestAggregateIgnoresUnknownQuestions(t *testing.T) {
	questions := []domain.Question{{ID: "q1"}}
	answers := []domain.AttemptAnswer{
		answer("q1", true),
		answer("stale-question", false),
	}

	if got := grading.Aggregate(answers, questions); got != 100 {
		t.Fatalf("Aggregate = %d, want 100", got)
	}
}

func TestCorrectCount(t *testing.T) {
	answers := []domain.AttemptAnswer{
		answer("q1", true),
		answer("q2", false),
		answer("q3", true),
		{QuestionID: "q4"},
	}
	if got := grading.CorrectCount(answers); got != 2 {
		t.Fatalf("CorrectCount = %d, want 2", got)
	}
}

func answer(questionID string, correct bool) domain.AttemptAnswer {
	return domain.AttemptAnswer{
		QuestionID: questionID,
		IsCorrect:  &correct,
		Status:     domain.AnswerChecked,
	}
}
