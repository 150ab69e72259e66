// Package grading holds the pure answer-correctness and score computations.
// Nothing here touches the store or the clock.
package grading

import (
	"strings"

	"github.com/jasa1aw/eduBack/internal/domain"
)

// Evaluate decides correctness of a single submitted answer. The return value
// is tri-state: nil means the answer cannot be graded automatically
// (open questions). Unrecognized question types fail closed.
func Evaluate(q domain.Question, selected []string, userAnswer string) *bool {
	switch q.Type {
	case domain.MultipleChoice:
		return boolPtr(setEqual(selected, q.CorrectAnswers))
	case domain.ShortAnswer:
		return boolPtr(matchesAny(userAnswer, q.CorrectAnswers))
	case domain.TrueFalse:
		if len(selected) != 1 || len(q.CorrectAnswers) != 1 {
			return boolPtr(false)
		}
		return boolPtr(strings.EqualFold(selected[0], q.CorrectAnswers[0]))
	case domain.OpenQuestion:
		return nil
	default:
		return boolPtr(false)
	}
}

// setEqual compares two answer lists as sets, ignoring order and duplicates.
func setEqual(a, b []string) bool {
	as := toSet(a)
	bs := toSet(b)
	if len(as) != len(bs) {
		return false
	}
	for v := range as {
		if _, ok := bs[v]; !ok {
			return false
		}
	}
	return true
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// matchesAny compares trimmed, lower-cased text against each accepted answer.
func matchesAny(answer string, accepted []string) bool {
	normalized := normalize(answer)
	for _, a := range accepted {
		if normalize(a) == normalized {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func boolPtr(v bool) *bool {
	return &v
}
