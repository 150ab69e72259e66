package domain

import "time"

// QuestionType enumerates the supported question kinds. Anything outside this
// set is graded as incorrect.
type QuestionType string

const (
	MultipleChoice QuestionType = "MULTIPLE_CHOICE"
	ShortAnswer    QuestionType = "SHORT_ANSWER"
	TrueFalse      QuestionType = "TRUE_FALSE"
	OpenQuestion   QuestionType = "OPEN_QUESTION"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "IN_PROGRESS"
	AttemptCompleted  AttemptStatus = "COMPLETED"
	AttemptTimeout    AttemptStatus = "TIMEOUT"
)

// Terminal reports whether no further transition is allowed.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptCompleted || s == AttemptTimeout
}

type AttemptMode string

const (
	ModePractice AttemptMode = "PRACTICE"
	ModeExam     AttemptMode = "EXAM"
)

type AnswerStatus string

const (
	AnswerPending AnswerStatus = "PENDING"
	AnswerChecked AnswerStatus = "CHECKED"
)

type CompetitionStatus string

const (
	CompetitionWaiting    CompetitionStatus = "WAITING"
	CompetitionStarting   CompetitionStatus = "STARTING"
	CompetitionInProgress CompetitionStatus = "IN_PROGRESS"
	CompetitionCompleted  CompetitionStatus = "COMPLETED"
	CompetitionCancelled  CompetitionStatus = "CANCELLED"
)

// Test is a question set owned by one creator.
type Test struct {
	ID          string `json:"id"`
	CreatorID   string `json:"creatorId"`
	Title       string `json:"title"`
	IsDraft     bool   `json:"isDraft"`
	ShowAnswers bool   `json:"showAnswers"`
	ExamMode    bool   `json:"examMode"`
	TimeLimit   int    `json:"timeLimit"`   // minutes; 0 means unlimited
	MaxAttempts int    `json:"maxAttempts"` // exam mode cap; 0 means unlimited
}

// Question belongs to exactly one Test. CorrectAnswers is compared as a set
// for choice questions and as normalized text for short answers.
type Question struct {
	ID             string       `json:"id"`
	TestID         string       `json:"testId"`
	Title          string       `json:"title"`
	Type           QuestionType `json:"type"`
	Options        []string     `json:"options"`
	CorrectAnswers []string     `json:"correctAnswers"`
	Weight         int          `json:"weight"` // defaults to 1 if zero
	Explanation    string       `json:"explanation,omitempty"`
	Image          string       `json:"image,omitempty"`
}

// EffectiveWeight treats non-positive weights as 1.
func (q Question) EffectiveWeight() int {
	if q.Weight <= 0 {
		return 1
	}
	return q.Weight
}

// TestContent bundles a test with its questions for read-side caching.
type TestContent struct {
	Test      Test       `json:"test"`
	Questions []Question `json:"questions"`
}

// Attempt is one test-taking session by one user (or one team) against one Test.
type Attempt struct {
	ID        string        `json:"id"`
	TestID    string        `json:"testId"`
	UserID    string        `json:"userId"`
	Mode      AttemptMode   `json:"mode"`
	Status    AttemptStatus `json:"status"`
	StartTime time.Time     `json:"startTime"`
	EndTime   *time.Time    `json:"endTime,omitempty"`
}

// AttemptAnswer is the single answer record per (attempt, question) pair.
// IsCorrect is tri-state: nil means ungraded / awaiting manual review.
type AttemptAnswer struct {
	ID              string       `json:"id"`
	AttemptID       string       `json:"attemptId"`
	QuestionID      string       `json:"questionId"`
	SelectedAnswers []string     `json:"selectedAnswers,omitempty"`
	UserAnswer      string       `json:"userAnswer,omitempty"`
	IsCorrect       *bool        `json:"isCorrect"`
	Status          AnswerStatus `json:"status"`
}

// Result is the materialized score for one Attempt, recomputed on every
// grading change. Never a source of truth.
type Result struct {
	ID        string    `json:"id"`
	AttemptID string    `json:"attemptId"`
	Score     int       `json:"score"` // percentage in [0,100]
	UpdatedAt time.Time `json:"updatedAt"`
}

// Competition is a multi-team live session bound to one non-draft Test.
type Competition struct {
	ID        string            `json:"id"`
	TestID    string            `json:"testId"`
	CreatorID string            `json:"creatorId"`
	Code      string            `json:"code"`
	Status    CompetitionStatus `json:"status"`
	MaxTeams  int               `json:"maxTeams"`
	StartedAt *time.Time        `json:"startedAt,omitempty"`
	EndedAt   *time.Time        `json:"endedAt,omitempty"`
}

// Team holds the running competition score and, once the competition starts,
// a back-reference to the team's shared Attempt.
type Team struct {
	ID               string     `json:"id"`
	CompetitionID    string     `json:"competitionId"`
	Name             string     `json:"name"`
	Color            string     `json:"color"`
	Score            int        `json:"score"`
	Position         int        `json:"position,omitempty"` // final rank, set at completion
	SelectedPlayerID *string    `json:"selectedPlayerId,omitempty"`
	AttemptID        *string    `json:"attemptId,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

// Participant is one human inside one Competition; UserID is nil for guests.
type Participant struct {
	ID            string    `json:"id"`
	CompetitionID string    `json:"competitionId"`
	UserID        *string   `json:"userId,omitempty"`
	DisplayName   string    `json:"displayName"`
	TeamID        *string   `json:"teamId,omitempty"`
	JoinedAt      time.Time `json:"joinedAt"`
}
