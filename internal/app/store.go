package app

import (
	"context"

	"github.com/jasa1aw/eduBack/internal/domain"
)

// Tx is the set of store operations available inside a transaction. Every
// method returns domain errors (ErrNotFound, ErrConflict) rather than
// driver-specific ones.
type Tx interface {
	GetTest(ctx context.Context, id string) (domain.Test, error)
	GetQuestions(ctx context.Context, testID string) ([]domain.Question, error)

	CreateAttempt(ctx context.Context, a domain.Attempt) error
	GetAttempt(ctx context.Context, id string) (domain.Attempt, error)
	UpdateAttempt(ctx context.Context, a domain.Attempt) error
	// CountFinishedAttempts counts a user's COMPLETED/TIMEOUT attempts on a test.
	CountFinishedAttempts(ctx context.Context, userID, testID string) (int, error)

	// UpsertAnswer inserts or replaces the single row keyed by
	// (attemptID, questionID). Concurrent upserts for the same pair must not
	// produce duplicates; last write wins on field values.
	UpsertAnswer(ctx context.Context, a domain.AttemptAnswer) error
	// CreateAnswer inserts a new row and returns ErrConflict if the
	// (attemptID, questionID) pair already has one. Competition play uses this
	// to make "already answered" and the insert a single atomic step.
	CreateAnswer(ctx context.Context, a domain.AttemptAnswer) error
	GetAnswer(ctx context.Context, id string) (domain.AttemptAnswer, error)
	GetAnswers(ctx context.Context, attemptID string) ([]domain.AttemptAnswer, error)
	UpdateAnswer(ctx context.Context, a domain.AttemptAnswer) error

	// UpsertResult creates or replaces the one Result per attempt.
	UpsertResult(ctx context.Context, r domain.Result) error
	GetResult(ctx context.Context, attemptID string) (domain.Result, error)

	CreateCompetition(ctx context.Context, c domain.Competition) error
	GetCompetition(ctx context.Context, id string) (domain.Competition, error)
	GetCompetitionByCode(ctx context.Context, code string) (domain.Competition, error)
	UpdateCompetition(ctx context.Context, c domain.Competition) error

	CreateTeam(ctx context.Context, t domain.Team) error
	GetTeam(ctx context.Context, id string) (domain.Team, error)
	GetTeams(ctx context.Context, competitionID string) ([]domain.Team, error)
	UpdateTeam(ctx context.Context, t domain.Team) error

	// CreateParticipant enforces uniqueness of (competitionID, userID) for
	// authenticated participants and returns ErrConflict on a duplicate join.
	CreateParticipant(ctx context.Context, p domain.Participant) error
	GetParticipant(ctx context.Context, id string) (domain.Participant, error)
	GetParticipants(ctx context.Context, competitionID string) ([]domain.Participant, error)
	UpdateParticipant(ctx context.Context, p domain.Participant) error
}

// Store is the transactional persistence port. RunInTx runs fn atomically:
// either every write inside fn lands or none of it does. Implementations also
// expose the Tx methods directly for single-operation reads.
type Store interface {
	Tx
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
