package grading

import (
	"math"

	"github.com/jasa1aw/eduBack/internal/domain"
)

// Aggregate computes the weighted percentage score for a graded answer set.
// Only graded answers (IsCorrect != nil) count toward the denominator, so a
// pending open question contributes nothing until it is reviewed. A zero
// denominator yields 0, never NaN. The computation is a full recompute from
// the answer rows and question weights; there is no running counter to drift.
func Aggregate(answers []domain.AttemptAnswer, questions []domain.Question) int {
	weights := make(map[string]int, len(questions))
	for _, q := range questions {
		weights[q.ID] = q.EffectiveWeight()
	}

	var correct, graded int
	for _, a := range answers {
		w, ok := weights[a.QuestionID]
		if !ok || a.IsCorrect == nil {
			continue
		}
		graded += w
		if *a.IsCorrect {
			correct += w
		}
	}
	if graded == 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(graded)))
}

// CorrectCount returns the unweighted number of correct answers. Live
// competitions score one point per correct answer instead of the weighted
// percentage; the two scales are intentionally distinct.
func CorrectCount(answers []domain.AttemptAnswer) int {
	n := 0
	for _, a := range answers {
		if a.IsCorrect != nil && *a.IsCorrect {
			n++
		}
	}
	return n
}
