// Package postgres implements the app.Store port on bun, plus a pgx read
// path for cached test content.
package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jasa1aw/eduBack/internal/app"
	"github.com/jasa1aw/eduBack/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Store is the bun-backed app.Store.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &pgTx{db: tx, inTx: true})
	})
}

// Direct single-operation access runs without an explicit transaction.

func (s *Store) GetTest(ctx context.Context, id string) (domain.Test, error) {
	return (&pgTx{db: s.db}).GetTest(ctx, id)
}

func (s *Store) GetQuestions(ctx context.Context, testID string) ([]domain.Question, error) {
	return (&pgTx{db: s.db}).GetQuestions(ctx, testID)
}

func (s *Store) CreateAttempt(ctx context.Context, a domain.Attempt) error {
	return (&pgTx{db: s.db}).CreateAttempt(ctx, a)
}

func (s *Store) GetAttempt(ctx context.Context, id string) (domain.Attempt, error) {
	return (&pgTx{db: s.db}).GetAttempt(ctx, id)
}

func (s *Store) UpdateAttempt(ctx context.Context, a domain.Attempt) error {
	return (&pgTx{db: s.db}).UpdateAttempt(ctx, a)
}

func (s *Store) CountFinishedAttempts(ctx context.Context, userID, testID string) (int, error) {
	return (&pgTx{db: s.db}).CountFinishedAttempts(ctx, userID, testID)
}

func (s *Store) UpsertAnswer(ctx context.Context, a domain.AttemptAnswer) error {
	return (&pgTx{db: s.db}).UpsertAnswer(ctx, a)
}

func (s *Store) CreateAnswer(ctx context.Context, a domain.AttemptAnswer) error {
	return (&pgTx{db: s.db}).CreateAnswer(ctx, a)
}

func (s *Store) GetAnswer(ctx context.Context, id string) (domain.AttemptAnswer, error) {
	return (&pgTx{db: s.db}).GetAnswer(ctx, id)
}

func (s *Store) GetAnswers(ctx context.Context, attemptID string) ([]domain.AttemptAnswer, error) {
	return (&pgTx{db: s.db}).GetAnswers(ctx, attemptID)
}

func (s *Store) UpdateAnswer(ctx context.Context, a domain.AttemptAnswer) error {
	return (&pgTx{db: s.db}).UpdateAnswer(ctx, a)
}

func (s *Store) UpsertResult(ctx context.Context, r domain.Result) error {
	return (&pgTx{db: s.db}).UpsertResult(ctx, r)
}

func (s *Store) GetResult(ctx context.Context, attemptID string) (domain.Result, error) {
	return (&pgTx{db: s.db}).GetResult(ctx, attemptID)
}

func (s *Store) CreateCompetition(ctx context.Context, c domain.Competition) error {
	return (&pgTx{db: s.db}).CreateCompetition(ctx, c)
}

func (s *Store) GetCompetition(ctx context.Context, id string) (domain.Competition, error) {
	return (&pgTx{db: s.db}).GetCompetition(ctx, id)
}

func (s *Store) GetCompetitionByCode(ctx context.Context, code string) (domain.Competition, error) {
	return (&pgTx{db: s.db}).GetCompetitionByCode(ctx, code)
}

func (s *Store) UpdateCompetition(ctx context.Context, c domain.Competition) error {
	return (&pgTx{db: s.db}).UpdateCompetition(ctx, c)
}

func (s *Store) CreateTeam(ctx context.Context, t domain.Team) error {
	return (&pgTx{db: s.db}).CreateTeam(ctx, t)
}

func (s *Store) GetTeam(ctx context.Context, id string) (domain.Team, error) {
	return (&pgTx{db: s.db}).GetTeam(ctx, id)
}

func (s *Store) GetTeams(ctx context.Context, competitionID string) ([]domain.Team, error) {
	return (&pgTx{db: s.db}).GetTeams(ctx, competitionID)
}

func (s *Store) UpdateTeam(ctx context.Context, t domain.Team) error {
	return (&pgTx{db: s.db}).UpdateTeam(ctx, t)
}

func (s *Store) CreateParticipant(ctx context.Context, p domain.Participant) error {
	return (&pgTx{db: s.db}).CreateParticipant(ctx, p)
}

func (s *Store) GetParticipant(ctx context.Context, id string) (domain.Participant, error) {
	return (&pgTx{db: s.db}).GetParticipant(ctx, id)
}

func (s *Store) GetParticipants(ctx context.Context, competitionID string) ([]domain.Participant, error) {
	return (&pgTx{db: s.db}).GetParticipants(ctx, competitionID)
}

func (s *Store) UpdateParticipant(ctx context.Context, p domain.Participant) error {
	return (&pgTx{db: s.db}).UpdateParticipant(ctx, p)
}

// pgTx implements app.Tx over either the root DB or an open transaction.
// Inside a transaction, single-row entity reads take row locks so concurrent
// state transitions serialize instead of double-applying.
type pgTx struct {
	db   bun.IDB
	inTx bool
}

func (t *pgTx) GetTest(ctx context.Context, id string) (domain.Test, error) {
	var rec testRecord
	q := t.db.NewSelect().Model(&rec).Where("t.id = ?", id)
	if err := q.Scan(ctx); err != nil {
		return domain.Test{}, notFoundOr(err, "test")
	}
	return rec.toDomain(), nil
}

func (t *pgTx) GetQuestions(ctx context.Context, testID string) ([]domain.Question, error) {
	var recs []questionRecord
	err := t.db.NewSelect().Model(&recs).Where("q.test_id = ?", testID).OrderExpr("q.ordinal ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	questions := make([]domain.Question, 0, len(recs))
	for _, rec := range recs {
		questions = append(questions, rec.toDomain())
	}
	return questions, nil
}

func (t *pgTx) CreateAttempt(ctx context.Context, a domain.Attempt) error {
	rec := attemptToRecord(a)
	_, err := t.db.NewInsert().Model(&rec).Exec(ctx)
	return conflictOr(err)
}

func (t *pgTx) GetAttempt(ctx context.Context, id string) (domain.Attempt, error) {
	var rec attemptRecord
	q := t.db.NewSelect().Model(&rec).Where("a.id = ?", id)
	if t.inTx {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		return domain.Attempt{}, notFoundOr(err, "attempt")
	}
	return rec.toDomain(), nil
}

func (t *pgTx) UpdateAttempt(ctx context.Context, a domain.Attempt) error {
	rec := attemptToRecord(a)
	res, err := t.db.NewUpdate().Model(&rec).WherePK().Exec(ctx)
	return updatedOr(res, err, "attempt")
}

func (t *pgTx) CountFinishedAttempts(ctx context.Context, userID, testID string) (int, error) {
	return t.db.NewSelect().Model((*attemptRecord)(nil)).
		Where("a.user_id = ?", userID).
		Where("a.test_id = ?", testID).
		Where("a.status IN (?)", bun.In([]string{string(domain.AttemptCompleted), string(domain.AttemptTimeout)})).
		Count(ctx)
}

func (t *pgTx) UpsertAnswer(ctx context.Context, a domain.AttemptAnswer) error {
	rec := answerToRecord(a)
	_, err := t.db.NewInsert().Model(&rec).
		On("CONFLICT (attempt_id, question_id) DO UPDATE").
		Set("selected_answers = EXCLUDED.selected_answers").
		Set("user_answer = EXCLUDED.user_answer").
		Set("is_correct = EXCLUDED.is_correct").
		Set("status = EXCLUDED.status").
		Exec(ctx)
	return err
}

func (t *pgTx) CreateAnswer(ctx context.Context, a domain.AttemptAnswer) error {
	rec := answerToRecord(a)
	_, err := t.db.NewInsert().Model(&rec).Exec(ctx)
	return conflictOr(err)
}

func (t *pgTx) GetAnswer(ctx context.Context, id string) (domain.AttemptAnswer, error) {
	var rec answerRecord
	if err := t.db.NewSelect().Model(&rec).Where("aa.id = ?", id).Scan(ctx); err != nil {
		return domain.AttemptAnswer{}, notFoundOr(err, "answer")
	}
	return rec.toDomain(), nil
}

func (t *pgTx) GetAnswers(ctx context.Context, attemptID string) ([]domain.AttemptAnswer, error) {
	var recs []answerRecord
	err := t.db.NewSelect().Model(&recs).Where("aa.attempt_id = ?", attemptID).Scan(ctx)
	if err != nil {
		return nil, err
	}
	answers := make([]domain.AttemptAnswer, 0, len(recs))
	for _, rec := range recs {
		answers = append(answers, rec.toDomain())
	}
	return answers, nil
}

func (t *pgTx) UpdateAnswer(ctx context.Context, a domain.AttemptAnswer) error {
	rec := answerToRecord(a)
	res, err := t.db.NewUpdate().Model(&rec).WherePK().Exec(ctx)
	return updatedOr(res, err, "answer")
}

func (t *pgTx) UpsertResult(ctx context.Context, r domain.Result) error {
	rec := resultRecord{ID: r.ID, AttemptID: r.AttemptID, Score: r.Score, UpdatedAt: r.UpdatedAt}
	_, err := t.db.NewInsert().Model(&rec).
		On("CONFLICT (attempt_id) DO UPDATE").
		Set("score = EXCLUDED.score").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (t *pgTx) GetResult(ctx context.Context, attemptID string) (domain.Result, error) {
	var rec resultRecord
	if err := t.db.NewSelect().Model(&rec).Where("r.attempt_id = ?", attemptID).Scan(ctx); err != nil {
		return domain.Result{}, notFoundOr(err, "result")
	}
	return rec.toDomain(), nil
}

func (t *pgTx) CreateCompetition(ctx context.Context, c domain.Competition) error {
	rec := competitionToRecord(c)
	_, err := t.db.NewInsert().Model(&rec).Exec(ctx)
	return conflictOr(err)
}

func (t *pgTx) GetCompetition(ctx context.Context, id string) (domain.Competition, error) {
	var rec competitionRecord
	q := t.db.NewSelect().Model(&rec).Where("c.id = ?", id)
	if t.inTx {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		return domain.Competition{}, notFoundOr(err, "competition")
	}
	return rec.toDomain(), nil
}

func (t *pgTx) GetCompetitionByCode(ctx context.Context, code string) (domain.Competition, error) {
	var rec competitionRecord
	if err := t.db.NewSelect().Model(&rec).Where("c.code = ?", code).Scan(ctx); err != nil {
		return domain.Competition{}, notFoundOr(err, "competition")
	}
	return rec.toDomain(), nil
}

func (t *pgTx) UpdateCompetition(ctx context.Context, c domain.Competition) error {
	rec := competitionToRecord(c)
	res, err := t.db.NewUpdate().Model(&rec).WherePK().Exec(ctx)
	return updatedOr(res, err, "competition")
}

func (t *pgTx) CreateTeam(ctx context.Context, team domain.Team) error {
	rec := teamToRecord(team)
	_, err := t.db.NewInsert().Model(&rec).Exec(ctx)
	return conflictOr(err)
}

func (t *pgTx) GetTeam(ctx context.Context, id string) (domain.Team, error) {
	var rec teamRecord
	q := t.db.NewSelect().Model(&rec).Where("tm.id = ?", id)
	if t.inTx {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		return domain.Team{}, notFoundOr(err, "team")
	}
	return rec.toDomain(), nil
}

func (t *pgTx) GetTeams(ctx context.Context, competitionID string) ([]domain.Team, error) {
	var recs []teamRecord
	err := t.db.NewSelect().Model(&recs).Where("tm.competition_id = ?", competitionID).OrderExpr("tm.name ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	teams := make([]domain.Team, 0, len(recs))
	for _, rec := range recs {
		teams = append(teams, rec.toDomain())
	}
	return teams, nil
}

func (t *pgTx) UpdateTeam(ctx context.Context, team domain.Team) error {
	rec := teamToRecord(team)
	res, err := t.db.NewUpdate().Model(&rec).WherePK().Exec(ctx)
	return updatedOr(res, err, "team")
}

func (t *pgTx) CreateParticipant(ctx context.Context, p domain.Participant) error {
	rec := participantToRecord(p)
	_, err := t.db.NewInsert().Model(&rec).Exec(ctx)
	return conflictOr(err)
}

func (t *pgTx) GetParticipant(ctx context.Context, id string) (domain.Participant, error) {
	var rec participantRecord
	if err := t.db.NewSelect().Model(&rec).Where("p.id = ?", id).Scan(ctx); err != nil {
		return domain.Participant{}, notFoundOr(err, "participant")
	}
	return rec.toDomain(), nil
}

func (t *pgTx) GetParticipants(ctx context.Context, competitionID string) ([]domain.Participant, error) {
	var recs []participantRecord
	err := t.db.NewSelect().Model(&recs).Where("p.competition_id = ?", competitionID).OrderExpr("p.joined_at ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	participants := make([]domain.Participant, 0, len(recs))
	for _, rec := range recs {
		participants = append(participants, rec.toDomain())
	}
	return participants, nil
}

func (t *pgTx) UpdateParticipant(ctx context.Context, p domain.Participant) error {
	rec := participantToRecord(p)
	res, err := t.db.NewUpdate().Model(&rec).WherePK().Exec(ctx)
	return updatedOr(res, err, "participant")
}

func notFoundOr(err error, resource string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound(resource)
	}
	return err
}

// conflictOr maps unique-constraint violations (SQLSTATE 23505), which occur
// when a race loses the insert, to the Conflict kind.
func conflictOr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.Field('C') == "23505" {
		return domain.Conflict("duplicate row")
	}
	return err
}

func updatedOr(res sql.Result, err error, resource string) error {
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.NotFound(resource)
	}
	return nil
}
