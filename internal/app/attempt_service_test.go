package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jasa1aw/eduBack/internal/app"
	"github.com/jasa1aw/eduBack/internal/domain"
	"github.com/jasa1aw/eduBack/internal/infra/memory"
	"github.com/jasa1aw/eduBack/internal/notify"
)

func TestStartAndSubmitPractice(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newAttemptService(t, practiceTest())

	attempt, err := svc.Start(ctx, "u1", "test-1", domain.ModePractice)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if attempt.Status != domain.AttemptInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", attempt.Status)
	}

	result, err := svc.Submit(ctx, "u1", attempt.ID, []app.AnswerInput{
		{QuestionID: "q1", SelectedAnswers: []string{"Vienna", "Paris"}},
		{QuestionID: "q2", SelectedAnswers: []string{"true"}},
		{QuestionID: "q3", UserAnswer: "porto"},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	// q1 (weight 2) and q2 correct, q3 wrong: 3 of 4 weight units.
	if result.Score != 75 {
		t.Fatalf("score = %d, want 75", result.Score)
	}

	got, err := svc.Result(ctx, "u1", attempt.ID)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if got.Status != domain.AttemptCompleted {
		t.Fatalf("expected COMPLETED, got %s", got.Status)
	}
}

func TestSaveProgressAndResume(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newAttemptService(t, practiceTest())

	attempt, err := svc.Start(ctx, "u1", "test-1", domain.ModePractice)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	hasNext, err := svc.SaveProgress(ctx, "u1", attempt.ID, app.AnswerInput{QuestionID: "q1", SelectedAnswers: []string{"Paris"}})
	if err != nil {
		t.Fatalf("save progress: %v", err)
	}
	if !hasNext {
		t.Fatal("expected more questions after answering one of three")
	}

	view, err := svc.Progress(ctx, "u1", attempt.ID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if len(view.Answered) != 1 || view.Answered[0] != "q1" {
		t.Fatalf("answered = %v, want [q1]", view.Answered)
	}
	if view.Remaining != 2 {
		t.Fatalf("remaining = %d, want 2", view.Remaining)
	}
	if view.NextQuestion == nil || view.NextQuestion.ID != "q2" {
		t.Fatalf("next question = %+v, want q2", view.NextQuestion)
	}
	// Resume views never leak the answer key.
	if len(view.NextQuestion.Options) == 0 {
		t.Fatal("expected options in resume view")
	}

	// Submitting a corrected q1 overrides the saved partial answer.
	result, err := svc.Submit(ctx, "u1", attempt.ID, []app.AnswerInput{
		{QuestionID: "q1", SelectedAnswers: []string{"Paris", "Vienna"}},
		{QuestionID: "q2", SelectedAnswers: []string{"true"}},
		{QuestionID: "q3", UserAnswer: "Lisbon"},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score != 100 {
		t.Fatalf("score = %d, want 100", result.Score)
	}
}

func TestSubmitTwiceConflicts(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newAttemptService(t, practiceTest())

	attempt, _ := svc.Start(ctx, "u1", "test-1", domain.ModePractice)
	if _, err := svc.Submit(ctx, "u1", attempt.ID, nil); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	_, err := svc.Submit(ctx, "u1", attempt.ID, nil)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on second submit, got %v", err)
	}
}

func TestAttemptOwnership(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newAttemptService(t, practiceTest())

	attempt, _ := svc.Start(ctx, "u1", "test-1", domain.ModePractice)

	if _, err := svc.SaveProgress(ctx, "u2", attempt.ID, app.AnswerInput{QuestionID: "q1"}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for foreign save, got %v", err)
	}
	if _, err := svc.Submit(ctx, "u2", attempt.ID, nil); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for foreign submit, got %v", err)
	}
	if _, err := svc.Result(ctx, "stranger", attempt.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for stranger result, got %v", err)
	}
}

func TestExamGating(t *testing.T) {
	ctx := context.Background()

	content := practiceTest()
	content.Test.ExamMode = true
	content.Test.MaxAttempts = 1
	svc, _, _ := newAttemptService(t, content)

	attempt, err := svc.Start(ctx, "u1", "test-1", domain.ModeExam)
	if err != nil {
		t.Fatalf("start exam: %v", err)
	}
	if _, err := svc.Submit(ctx, "u1", attempt.ID, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// The finished attempt spends the only slot.
	if _, err := svc.Start(ctx, "u1", "test-1", domain.ModeExam); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict once limit is reached, got %v", err)
	}
	// A different user still has their own budget.
	if _, err := svc.Start(ctx, "u2", "test-1", domain.ModeExam); err != nil {
		t.Fatalf("start for second user: %v", err)
	}

	draft := practiceTest()
	draft.Test.ID = "test-2"
	draft.Test.IsDraft = true
	draft.Test.ExamMode = true
	svcDraft, _, _ := newAttemptService(t, draft)
	if _, err := svcDraft.Start(ctx, "u1", "test-2", domain.ModeExam); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict for draft exam, got %v", err)
	}

	practice := practiceTest()
	practice.Test.ID = "test-3"
	svcPractice, _, _ := newAttemptService(t, practice)
	if _, err := svcPractice.Start(ctx, "u1", "test-3", domain.ModeExam); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict for exam attempt on practice-only test, got %v", err)
	}
}

func TestExamTimeoutPenalty(t *testing.T) {
	ctx := context.Background()

	content := practiceTest()
	content.Test.ExamMode = true
	content.Test.TimeLimit = 30
	svc, _, clock := newAttemptService(t, content)

	attempt, err := svc.Start(ctx, "u1", "test-1", domain.ModeExam)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	clock.advance(31 * time.Minute)
	result, err := svc.Submit(ctx, "u1", attempt.ID, []app.AnswerInput{
		{QuestionID: "q1", SelectedAnswers: []string{"Paris", "Vienna"}},
		{QuestionID: "q2", SelectedAnswers: []string{"true"}},
		{QuestionID: "q3", UserAnswer: "Lisbon"},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	// All correct would score 100; the late exam loses 10.
	if result.Score != 90 {
		t.Fatalf("score = %d, want 90", result.Score)
	}

	got, _ := svc.Result(ctx, "u1", attempt.ID)
	if got.Status != domain.AttemptTimeout {
		t.Fatalf("expected TIMEOUT, got %s", got.Status)
	}
}

func TestTimeoutPenaltyFloorsAtZero(t *testing.T) {
	ctx := context.Background()

	content := practiceTest()
	content.Test.ExamMode = true
	content.Test.TimeLimit = 1
	svc, _, clock := newAttemptService(t, content)

	attempt, _ := svc.Start(ctx, "u1", "test-1", domain.ModeExam)
	clock.advance(5 * time.Minute)
	result, err := svc.Submit(ctx, "u1", attempt.ID, []app.AnswerInput{
		{QuestionID: "q1", SelectedAnswers: []string{"Oslo"}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score != 0 {
		t.Fatalf("score = %d, want 0", result.Score)
	}
}

func TestReviewRegradesAndNotifies(t *testing.T) {
	ctx := context.Background()

	content := practiceTest()
	content.Questions = append(content.Questions, domain.Question{
		ID: "q4", TestID: "test-1", Title: "Explain the water cycle.", Type: domain.OpenQuestion,
	})
	store := memory.NewStore()
	store.SeedTestContent(content)
	notifier := newCaptureNotifier()
	svc := app.NewAttemptService(store, notifier)

	attempt, _ := svc.Start(ctx, "u1", "test-1", domain.ModePractice)
	result, err := svc.Submit(ctx, "u1", attempt.ID, []app.AnswerInput{
		{QuestionID: "q1", SelectedAnswers: []string{"Paris", "Vienna"}},
		{QuestionID: "q2", SelectedAnswers: []string{"false"}},
		{QuestionID: "q3", UserAnswer: "Lisbon"},
		{QuestionID: "q4", UserAnswer: "It rains and evaporates."},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	// Open question is pending: 3 of 4 graded weight units correct.
	if result.Score != 75 {
		t.Fatalf("score before review = %d, want 75", result.Score)
	}

	answers, _ := store.GetAnswers(ctx, attempt.ID)
	var openAnswerID string
	for _, a := range answers {
		if a.QuestionID == "q4" {
			if a.IsCorrect != nil || a.Status != domain.AnswerPending {
				t.Fatalf("open answer should be pending, got %+v", a)
			}
			openAnswerID = a.ID
		}
	}

	if _, err := svc.Review(ctx, "not-the-creator", openAnswerID, true); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for non-creator review, got %v", err)
	}

	reviewed, err := svc.Review(ctx, "teacher-1", openAnswerID, true)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	// Now 4 of 5 weight units correct: 80%.
	if reviewed.Score != 80 {
		t.Fatalf("score after review = %d, want 80", reviewed.Score)
	}

	notifier.waitFor(t, "u1")

	// Reviewing the same answer again with a different verdict just recomputes.
	reviewed, err = svc.Review(ctx, "teacher-1", openAnswerID, false)
	if err != nil {
		t.Fatalf("second review: %v", err)
	}
	if reviewed.Score != 60 {
		t.Fatalf("score after downgrade = %d, want 60", reviewed.Score)
	}
}

func TestReviewRequiresFinishedAttempt(t *testing.T) {
	ctx := context.Background()

	content := practiceTest()
	content.Questions = append(content.Questions, domain.Question{
		ID: "q4", TestID: "test-1", Title: "Explain the water cycle.", Type: domain.OpenQuestion,
	})
	svc, store, _ := newAttemptService(t, content)

	attempt, _ := svc.Start(ctx, "u1", "test-1", domain.ModePractice)
	if _, err := svc.SaveProgress(ctx, "u1", attempt.ID, app.AnswerInput{QuestionID: "q4", UserAnswer: "draft thoughts"}); err != nil {
		t.Fatalf("save progress: %v", err)
	}

	answers, _ := store.GetAnswers(ctx, attempt.ID)
	if len(answers) != 1 {
		t.Fatalf("expected one saved answer, got %d", len(answers))
	}

	if _, err := svc.Review(ctx, "teacher-1", answers[0].ID, true); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict reviewing an in-flight attempt, got %v", err)
	}

	// The rejected review leaves no Result and the answer untouched.
	if _, err := store.GetResult(ctx, attempt.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected no result for the running attempt, got %v", err)
	}
	answers, _ = store.GetAnswers(ctx, attempt.ID)
	if answers[0].IsCorrect != nil || answers[0].Status != domain.AnswerPending {
		t.Fatalf("answer should still be pending, got %+v", answers[0])
	}
}

func TestConcurrentProgressSaves(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newAttemptService(t, practiceTest())

	attempt, _ := svc.Start(ctx, "u1", "test-1", domain.ModePractice)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.SaveProgress(ctx, "u1", attempt.ID, app.AnswerInput{QuestionID: "q1", SelectedAnswers: []string{"Paris"}})
		}()
	}
	wg.Wait()

	// Ten racing upserts for the same question must leave exactly one row.
	answers, err := store.GetAnswers(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("get answers: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("expected a single answer row, got %d", len(answers))
	}
}

func TestExportSnapshot(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newAttemptService(t, practiceTest())

	attempt, _ := svc.Start(ctx, "u1", "test-1", domain.ModePractice)
	if _, err := svc.Submit(ctx, "u1", attempt.ID, []app.AnswerInput{
		{QuestionID: "q1", SelectedAnswers: []string{"Paris", "Vienna"}},
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	snap, err := svc.ExportSnapshot(ctx, "teacher-1", attempt.ID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if snap.Test.ID != "test-1" || len(snap.Questions) != 3 || len(snap.Answers) != 1 || snap.Result == nil {
		t.Fatalf("incomplete snapshot: %+v", snap)
	}
}

// captureNotifier signals each delivery so tests can wait for the
// fire-and-forget notification goroutine.
type captureNotifier struct {
	delivered chan string
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{delivered: make(chan string, 8)}
}

func (n *captureNotifier) Send(_ context.Context, msg notify.Message) error {
	n.delivered <- msg.Recipient
	return nil
}

func (n *captureNotifier) waitFor(t *testing.T, recipient string) {
	t.Helper()
	select {
	case got := <-n.delivered:
		if got != recipient {
			t.Fatalf("notified %q, want %q", got, recipient)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newAttemptService(t *testing.T, content domain.TestContent) (*app.AttemptService, *memory.Store, *fakeClock) {
	t.Helper()
	store := memory.NewStore()
	store.SeedTestContent(content)
	clock := &fakeClock{t: time.Date(2025, 3, 18, 10, 0, 0, 0, time.UTC)}
	svc := app.NewAttemptServiceWithClock(store, notify.LogNotifier{}, clock.now)
	return svc, store, clock
}

func practiceTest() domain.TestContent {
	return domain.TestContent{
		Test: domain.Test{
			ID:          "test-1",
			CreatorID:   "teacher-1",
			Title:       "Geography warm-up",
			ShowAnswers: true,
		},
		Questions: []domain.Question{
			{
				ID:             "q1",
				TestID:         "test-1",
				Title:          "Which of these are EU capitals?",
				Type:           domain.MultipleChoice,
				Options:        []string{"Paris", "Oslo", "Vienna", "Zurich"},
				CorrectAnswers: []string{"Paris", "Vienna"},
				Weight:         2,
			},
			{
				ID:             "q2",
				TestID:         "test-1",
				Title:          "The Danube flows through Budapest.",
				Type:           domain.TrueFalse,
				Options:        []string{"true", "false"},
				CorrectAnswers: []string{"true"},
			},
			{
				ID:             "q3",
				TestID:         "test-1",
				Title:          "Name the capital of Portugal.",
				Type:           domain.ShortAnswer,
				CorrectAnswers: []string{"Lisbon", "Lisboa"},
			},
		},
	}
}
