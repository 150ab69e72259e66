package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jasa1aw/eduBack/internal/domain"
	"github.com/jasa1aw/eduBack/internal/grading"
	"github.com/jasa1aw/eduBack/internal/notify"
)

// timeoutPenalty is subtracted from an exam score when the time limit was
// exceeded, floored at zero.
const timeoutPenalty = 10

// AnswerInput is one submitted (or progress-saved) answer.
type AnswerInput struct {
	QuestionID      string   `json:"questionId"`
	SelectedAnswers []string `json:"selectedAnswers,omitempty"`
	UserAnswer      string   `json:"userAnswer,omitempty"`
}

// ProgressView backs resume and sequential test-taking flows.
type ProgressView struct {
	AttemptID    string               `json:"attemptId"`
	Status       domain.AttemptStatus `json:"status"`
	Answered     []string             `json:"answered"`
	Remaining    int                  `json:"remaining"`
	NextQuestion *QuestionView        `json:"nextQuestion,omitempty"`
}

// AttemptService owns the lifecycle of solo test-taking sessions: start,
// progress persistence, submission, review-triggered regrading, and the
// projections handed to learners and the export collaborator.
type AttemptService struct {
	store    Store
	notifier notify.Notifier
	now      func() time.Time
}

func NewAttemptService(store Store, notifier notify.Notifier) *AttemptService {
	return NewAttemptServiceWithClock(store, notifier, time.Now)
}

// NewAttemptServiceWithClock allows deterministic timestamps in tests.
func NewAttemptServiceWithClock(store Store, notifier notify.Notifier, now func() time.Time) *AttemptService {
	return &AttemptService{store: store, notifier: notifier, now: now}
}

// Start creates a fresh IN_PROGRESS attempt. Exam mode requires a non-draft
// exam test and an unspent attempt budget.
func (s *AttemptService) Start(ctx context.Context, userID, testID string, mode domain.AttemptMode) (domain.Attempt, error) {
	if userID == "" || testID == "" {
		return domain.Attempt{}, domain.Invalid("userId and testId are required")
	}
	if mode != domain.ModePractice && mode != domain.ModeExam {
		return domain.Attempt{}, domain.Invalid("unknown attempt mode")
	}

	var attempt domain.Attempt
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		test, err := tx.GetTest(ctx, testID)
		if err != nil {
			return err
		}
		if mode == domain.ModeExam {
			if test.IsDraft {
				return domain.Conflict("test is still a draft")
			}
			if !test.ExamMode {
				return domain.Conflict("test does not allow exam attempts")
			}
			if test.MaxAttempts > 0 {
				finished, err := tx.CountFinishedAttempts(ctx, userID, testID)
				if err != nil {
					return err
				}
				if finished >= test.MaxAttempts {
					return domain.Conflict("attempt limit reached")
				}
			}
		}

		attempt = domain.Attempt{
			ID:        uuid.NewString(),
			TestID:    testID,
			UserID:    userID,
			Mode:      mode,
			Status:    domain.AttemptInProgress,
			StartTime: s.now(),
		}
		return tx.CreateAttempt(ctx, attempt)
	})
	if err != nil {
		return domain.Attempt{}, err
	}
	return attempt, nil
}

// SaveProgress upserts one in-flight answer without grading it and reports
// whether an unanswered question remains.
func (s *AttemptService) SaveProgress(ctx context.Context, userID, attemptID string, in AnswerInput) (bool, error) {
	if in.QuestionID == "" {
		return false, domain.Invalid("questionId is required")
	}

	hasNext := false
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		attempt, err := s.ownedInProgress(ctx, tx, userID, attemptID)
		if err != nil {
			return err
		}
		questions, err := tx.GetQuestions(ctx, attempt.TestID)
		if err != nil {
			return err
		}
		if !questionBelongs(questions, in.QuestionID) {
			return domain.NotFound("question")
		}

		// Progress saves never grade: the row stays PENDING until Submit.
		if err := tx.UpsertAnswer(ctx, domain.AttemptAnswer{
			ID:              uuid.NewString(),
			AttemptID:       attemptID,
			QuestionID:      in.QuestionID,
			SelectedAnswers: in.SelectedAnswers,
			UserAnswer:      in.UserAnswer,
			Status:          domain.AnswerPending,
		}); err != nil {
			return err
		}

		answers, err := tx.GetAnswers(ctx, attemptID)
		if err != nil {
			return err
		}
		hasNext = nextUnanswered(questions, answers) != nil
		return nil
	})
	return hasNext, err
}

// Progress returns the resume view for an in-flight attempt.
func (s *AttemptService) Progress(ctx context.Context, userID, attemptID string) (ProgressView, error) {
	var view ProgressView
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		attempt, err := tx.GetAttempt(ctx, attemptID)
		if err != nil {
			return err
		}
		if attempt.UserID != userID {
			return domain.Forbidden("attempt belongs to another user")
		}
		questions, err := tx.GetQuestions(ctx, attempt.TestID)
		if err != nil {
			return err
		}
		answers, err := tx.GetAnswers(ctx, attemptID)
		if err != nil {
			return err
		}

		view = ProgressView{AttemptID: attemptID, Status: attempt.Status, Answered: make([]string, 0, len(answers))}
		for _, a := range answers {
			view.Answered = append(view.Answered, a.QuestionID)
		}
		view.Remaining = len(questions) - len(answers)
		if next := nextUnanswered(questions, answers); next != nil {
			qv := NewQuestionView(*next)
			view.NextQuestion = &qv
		}
		return nil
	})
	return view, err
}

// Submit grades the attempt and transitions it to its terminal state. The
// answer rows, the status flip, and the Result land in one transaction.
func (s *AttemptService) Submit(ctx context.Context, userID, attemptID string, inputs []AnswerInput) (domain.Result, error) {
	var result domain.Result
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		attempt, err := s.ownedInProgress(ctx, tx, userID, attemptID)
		if err != nil {
			return err
		}
		test, err := tx.GetTest(ctx, attempt.TestID)
		if err != nil {
			return err
		}
		questions, err := tx.GetQuestions(ctx, attempt.TestID)
		if err != nil {
			return err
		}
		saved, err := tx.GetAnswers(ctx, attemptID)
		if err != nil {
			return err
		}

		// Submitted answers win over progress-saved ones for the same question.
		merged := make(map[string]AnswerInput, len(saved)+len(inputs))
		for _, a := range saved {
			merged[a.QuestionID] = AnswerInput{QuestionID: a.QuestionID, SelectedAnswers: a.SelectedAnswers, UserAnswer: a.UserAnswer}
		}
		for _, in := range inputs {
			if in.QuestionID == "" {
				return domain.Invalid("questionId is required")
			}
			if !questionBelongs(questions, in.QuestionID) {
				return domain.NotFound("question")
			}
			merged[in.QuestionID] = in
		}

		graded := make([]domain.AttemptAnswer, 0, len(merged))
		for _, q := range questions {
			in, ok := merged[q.ID]
			if !ok {
				continue
			}
			verdict := grading.Evaluate(q, in.SelectedAnswers, in.UserAnswer)
			status := domain.AnswerChecked
			if verdict == nil {
				status = domain.AnswerPending
			}
			row := domain.AttemptAnswer{
				ID:              uuid.NewString(),
				AttemptID:       attemptID,
				QuestionID:      q.ID,
				SelectedAnswers: in.SelectedAnswers,
				UserAnswer:      in.UserAnswer,
				IsCorrect:       verdict,
				Status:          status,
			}
			if err := tx.UpsertAnswer(ctx, row); err != nil {
				return err
			}
			graded = append(graded, row)
		}

		now := s.now()
		attempt.Status = domain.AttemptCompleted
		if test.TimeLimit > 0 && now.Sub(attempt.StartTime) > time.Duration(test.TimeLimit)*time.Minute {
			attempt.Status = domain.AttemptTimeout
		}
		attempt.EndTime = &now

		score := grading.Aggregate(graded, questions)
		if attempt.Mode == domain.ModeExam && attempt.Status == domain.AttemptTimeout {
			score -= timeoutPenalty
			if score < 0 {
				score = 0
			}
		}

		if err := tx.UpdateAttempt(ctx, attempt); err != nil {
			return err
		}
		result = domain.Result{
			ID:        uuid.NewString(),
			AttemptID: attemptID,
			Score:     score,
			UpdatedAt: now,
		}
		return tx.UpsertResult(ctx, result)
	})
	if err != nil {
		return domain.Result{}, err
	}
	return result, nil
}

// Review sets a manual grade on one answer and recomputes the owning
// attempt's Result in the same transaction. This is the only path that
// mutates a completed attempt's Result.
func (s *AttemptService) Review(ctx context.Context, teacherID, answerID string, isCorrect bool) (domain.Result, error) {
	var (
		result     domain.Result
		learnerID  string
		testTitle  string
		allChecked bool
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		answer, err := tx.GetAnswer(ctx, answerID)
		if err != nil {
			return err
		}
		attempt, err := tx.GetAttempt(ctx, answer.AttemptID)
		if err != nil {
			return err
		}
		// Only finished attempts carry a Result; grading an in-flight attempt
		// would also be wiped by its eventual Submit.
		if !attempt.Status.Terminal() {
			return domain.Conflict("attempt is still in progress")
		}
		test, err := tx.GetTest(ctx, attempt.TestID)
		if err != nil {
			return err
		}
		if test.CreatorID != teacherID {
			return domain.Forbidden("only the test creator may review answers")
		}

		answer.IsCorrect = &isCorrect
		answer.Status = domain.AnswerChecked
		if err := tx.UpdateAnswer(ctx, answer); err != nil {
			return err
		}

		questions, err := tx.GetQuestions(ctx, attempt.TestID)
		if err != nil {
			return err
		}
		answers, err := tx.GetAnswers(ctx, attempt.ID)
		if err != nil {
			return err
		}

		result = domain.Result{
			ID:        uuid.NewString(),
			AttemptID: attempt.ID,
			Score:     grading.Aggregate(answers, questions),
			UpdatedAt: s.now(),
		}
		if err := tx.UpsertResult(ctx, result); err != nil {
			return err
		}

		learnerID = attempt.UserID
		testTitle = test.Title
		allChecked = true
		for _, a := range answers {
			if a.IsCorrect == nil {
				allChecked = false
				break
			}
		}
		return nil
	})
	if err != nil {
		return domain.Result{}, err
	}

	if allChecked {
		notify.BestEffort(s.notifier, notify.Message{
			Recipient: learnerID,
			Subject:   "Your result is ready",
			Body:      fmt.Sprintf("All answers for %q have been graded. Final score: %d%%.", testTitle, result.Score),
		})
	}
	return result, nil
}

// Result projects one attempt for the requester: the attempt owner or the
// test creator.
func (s *AttemptService) Result(ctx context.Context, requesterID, attemptID string) (ResultView, error) {
	var view ResultView
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		test, questions, attempt, answers, result, err := s.loadGraded(ctx, tx, requesterID, attemptID)
		if err != nil {
			return err
		}
		view = BuildResultView(test, questions, attempt, answers, result)
		return nil
	})
	return view, err
}

// ExportSnapshot assembles the complete attempt snapshot for the export
// collaborator in one consistent read.
func (s *AttemptService) ExportSnapshot(ctx context.Context, requesterID, attemptID string) (Snapshot, error) {
	var snap Snapshot
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		test, questions, attempt, answers, result, err := s.loadGraded(ctx, tx, requesterID, attemptID)
		if err != nil {
			return err
		}
		snap = Snapshot{Test: test, Questions: questions, Attempt: attempt, Answers: answers, Result: &result}
		return nil
	})
	return snap, err
}

func (s *AttemptService) loadGraded(ctx context.Context, tx Tx, requesterID, attemptID string) (domain.Test, []domain.Question, domain.Attempt, []domain.AttemptAnswer, domain.Result, error) {
	var zero domain.Result
	attempt, err := tx.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.Test{}, nil, domain.Attempt{}, nil, zero, err
	}
	test, err := tx.GetTest(ctx, attempt.TestID)
	if err != nil {
		return domain.Test{}, nil, domain.Attempt{}, nil, zero, err
	}
	if attempt.UserID != requesterID && test.CreatorID != requesterID {
		return domain.Test{}, nil, domain.Attempt{}, nil, zero, domain.Forbidden("not the attempt owner or test creator")
	}
	questions, err := tx.GetQuestions(ctx, attempt.TestID)
	if err != nil {
		return domain.Test{}, nil, domain.Attempt{}, nil, zero, err
	}
	answers, err := tx.GetAnswers(ctx, attemptID)
	if err != nil {
		return domain.Test{}, nil, domain.Attempt{}, nil, zero, err
	}
	result, err := tx.GetResult(ctx, attemptID)
	if err != nil {
		return domain.Test{}, nil, domain.Attempt{}, nil, zero, err
	}
	return test, questions, attempt, answers, result, nil
}

func (s *AttemptService) ownedInProgress(ctx context.Context, tx Tx, userID, attemptID string) (domain.Attempt, error) {
	attempt, err := tx.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.Attempt{}, err
	}
	if attempt.UserID != userID {
		return domain.Attempt{}, domain.Forbidden("attempt belongs to another user")
	}
	if attempt.Status != domain.AttemptInProgress {
		return domain.Attempt{}, domain.Conflict("attempt is already " + string(attempt.Status))
	}
	return attempt, nil
}

func questionBelongs(questions []domain.Question, questionID string) bool {
	for _, q := range questions {
		if q.ID == questionID {
			return true
		}
	}
	return false
}

func nextUnanswered(questions []domain.Question, answers []domain.AttemptAnswer) *domain.Question {
	answered := make(map[string]struct{}, len(answers))
	for _, a := range answers {
		answered[a.QuestionID] = struct{}{}
	}
	for i := range questions {
		if _, ok := answered[questions[i].ID]; !ok {
			return &questions[i]
		}
	}
	return nil
}
