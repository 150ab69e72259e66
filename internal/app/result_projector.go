package app

import "github.com/jasa1aw/eduBack/internal/domain"

// QuestionView is a question sanitized for learners: the correct answers are
// never part of this shape.
type QuestionView struct {
	ID      string              `json:"id"`
	Title   string              `json:"title"`
	Type    domain.QuestionType `json:"type"`
	Options []string            `json:"options,omitempty"`
	Image   string              `json:"image,omitempty"`
}

func NewQuestionView(q domain.Question) QuestionView {
	return QuestionView{
		ID:      q.ID,
		Title:   q.Title,
		Type:    q.Type,
		Options: q.Options,
		Image:   q.Image,
	}
}

// QuestionBreakdown is one row of the detailed per-question result.
type QuestionBreakdown struct {
	QuestionID      string              `json:"questionId"`
	Title           string              `json:"title"`
	Type            domain.QuestionType `json:"type"`
	Options         []string            `json:"options,omitempty"`
	CorrectAnswers  []string            `json:"correctAnswers,omitempty"`
	SelectedAnswers []string            `json:"selectedAnswers,omitempty"`
	UserAnswer      string              `json:"userAnswer,omitempty"`
	IsCorrect       *bool               `json:"isCorrect"`
	Explanation     string              `json:"explanation,omitempty"`
}

// ResultView is the learner-facing projection of a graded attempt. Questions
// is nil for gated exam results.
type ResultView struct {
	AttemptID      string               `json:"attemptId"`
	TestID         string               `json:"testId"`
	TestTitle      string               `json:"testTitle"`
	Mode           domain.AttemptMode   `json:"mode"`
	Status         domain.AttemptStatus `json:"status"`
	Score          int                  `json:"score"`
	CorrectCount   int                  `json:"correctCount"`
	TotalQuestions int                  `json:"totalQuestions"`
	PendingReview  int                  `json:"pendingReview"`
	Questions      []QuestionBreakdown  `json:"questions,omitempty"`
}

// BuildResultView shapes the response for one attempt.
//
// Practice attempts always carry the full breakdown. Exam attempts are
// summary-only unless the test's showAnswers flag is set; even then an open
// question's correctness stays nil for the learner, regardless of any review
// that has happened since. The creator reveals reviewed open-question grades
// by toggling showAnswers off exam gating, not through this projection.
func BuildResultView(test domain.Test, questions []domain.Question, attempt domain.Attempt, answers []domain.AttemptAnswer, result domain.Result) ResultView {
	view := ResultView{
		AttemptID:      attempt.ID,
		TestID:         test.ID,
		TestTitle:      test.Title,
		Mode:           attempt.Mode,
		Status:         attempt.Status,
		Score:          result.Score,
		TotalQuestions: len(questions),
	}

	byQuestion := make(map[string]domain.AttemptAnswer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
		if a.IsCorrect == nil {
			view.PendingReview++
		} else if *a.IsCorrect {
			view.CorrectCount++
		}
	}

	detailed := attempt.Mode == domain.ModePractice || test.ShowAnswers
	if !detailed {
		return view
	}

	exam := attempt.Mode == domain.ModeExam
	view.Questions = make([]QuestionBreakdown, 0, len(questions))
	for _, q := range questions {
		row := QuestionBreakdown{
			QuestionID:     q.ID,
			Title:          q.Title,
			Type:           q.Type,
			Options:        q.Options,
			CorrectAnswers: q.CorrectAnswers,
			Explanation:    q.Explanation,
		}
		if a, ok := byQuestion[q.ID]; ok {
			row.IsCorrect = a.IsCorrect
			switch q.Type {
			case domain.ShortAnswer, domain.OpenQuestion:
				// Free text is only meaningful for text questions.
				row.UserAnswer = a.UserAnswer
			default:
				row.SelectedAnswers = a.SelectedAnswers
			}
		}
		if exam && q.Type == domain.OpenQuestion {
			// Exam secrecy: reviewed or not, the learner sees ungraded.
			row.IsCorrect = nil
		}
		view.Questions = append(view.Questions, row)
	}
	return view
}

// Snapshot is the complete, consistent view of one attempt handed to the
// export collaborator.
type Snapshot struct {
	Test      domain.Test            `json:"test"`
	Questions []domain.Question      `json:"questions"`
	Attempt   domain.Attempt         `json:"attempt"`
	Answers   []domain.AttemptAnswer `json:"answers"`
	Result    *domain.Result         `json:"result,omitempty"`
}
