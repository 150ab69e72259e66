// Package memory provides in-process implementations of the app ports,
// used by tests and by the server when no Postgres is configured.
package memory

import (
	"context"
	"sync"

	"github.com/jasa1aw/eduBack/internal/app"
	"github.com/jasa1aw/eduBack/internal/domain"
)

type pairKey struct{ a, b string }

// state holds every table. Values are stored by value; writes always replace
// whole records, so clones can share the previous values safely.
type state struct {
	tests         map[string]domain.Test
	questionOrder map[string][]string // testID -> question IDs in authored order
	questions     map[string]domain.Question
	attempts      map[string]domain.Attempt
	answers       map[string]domain.AttemptAnswer
	answerByPair  map[pairKey]string // (attemptID, questionID) -> answer ID
	answerOrder   map[string][]string
	results       map[string]domain.Result // keyed by attempt ID
	competitions  map[string]domain.Competition
	codeIndex     map[string]string
	teams         map[string]domain.Team
	teamOrder     map[string][]string
	participants  map[string]domain.Participant
	partOrder     map[string][]string
	joinIndex     map[pairKey]struct{} // (competitionID, userID)
}

func newState() *state {
	return &state{
		tests:         make(map[string]domain.Test),
		questionOrder: make(map[string][]string),
		questions:     make(map[string]domain.Question),
		attempts:      make(map[string]domain.Attempt),
		answers:       make(map[string]domain.AttemptAnswer),
		answerByPair:  make(map[pairKey]string),
		answerOrder:   make(map[string][]string),
		results:       make(map[string]domain.Result),
		competitions:  make(map[string]domain.Competition),
		codeIndex:     make(map[string]string),
		teams:         make(map[string]domain.Team),
		teamOrder:     make(map[string][]string),
		participants:  make(map[string]domain.Participant),
		partOrder:     make(map[string][]string),
		joinIndex:     make(map[pairKey]struct{}),
	}
}

func (s *state) clone() *state {
	return &state{
		tests:         copyMap(s.tests),
		questionOrder: copySliceMap(s.questionOrder),
		questions:     copyMap(s.questions),
		attempts:      copyMap(s.attempts),
		answers:       copyMap(s.answers),
		answerByPair:  copyMap(s.answerByPair),
		answerOrder:   copySliceMap(s.answerOrder),
		results:       copyMap(s.results),
		competitions:  copyMap(s.competitions),
		codeIndex:     copyMap(s.codeIndex),
		teams:         copyMap(s.teams),
		teamOrder:     copySliceMap(s.teamOrder),
		participants:  copyMap(s.participants),
		partOrder:     copySliceMap(s.partOrder),
		joinIndex:     copyMap(s.joinIndex),
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copySliceMap[K comparable](m map[K][]string) map[K][]string {
	out := make(map[K][]string, len(m))
	for k, v := range m {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Store is the in-memory app.Store. RunInTx clones the whole state, runs the
// closure against the clone, and swaps it in on success; a failing closure
// leaves the store untouched, matching the all-or-nothing contract.
type Store struct {
	mu sync.Mutex
	st *state
}

func NewStore() *Store {
	return &Store{st: newState()}
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.st.clone()
	if err := fn(ctx, &memTx{st: next}); err != nil {
		return err
	}
	s.st = next
	return nil
}

// SeedTestContent installs a test with its questions, for demos and tests.
// Authoring workflows live outside this service.
func (s *Store) SeedTestContent(content domain.TestContent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.tests[content.Test.ID] = content.Test
	order := make([]string, 0, len(content.Questions))
	for _, q := range content.Questions {
		q.TestID = content.Test.ID
		s.st.questions[q.ID] = q
		order = append(order, q.ID)
	}
	s.st.questionOrder[content.Test.ID] = order
}

// Direct (single-operation) access delegates to a transaction so reads see a
// consistent state and writes keep the same uniqueness checks.

func (s *Store) GetTest(ctx context.Context, id string) (domain.Test, error) {
	return readTx(s, func(tx *memTx) (domain.Test, error) { return tx.GetTest(ctx, id) })
}

func (s *Store) GetQuestions(ctx context.Context, testID string) ([]domain.Question, error) {
	return readTx(s, func(tx *memTx) ([]domain.Question, error) { return tx.GetQuestions(ctx, testID) })
}

func (s *Store) CreateAttempt(ctx context.Context, a domain.Attempt) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx app.Tx) error { return tx.CreateAttempt(ctx, a) })
}

func (s *Store) GetAttempt(ctx context.Context, id string) (domain.Attempt, error) {
	return readTx(s, func(tx *memTx) (domain.Attempt, error) { return tx.GetAttempt(ctx, id) })
}

func (s *Store) UpdateAttempt(ctx context.Context, a domain.Attempt) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx app.Tx) error { return tx.UpdateAttempt(ctx, a) })
}

func (s *Store) CountFinishedAttempts(ctx context.Context, userID, testID string) (int, error) {
	return readTx(s, func(tx *memTx) (int, error) { return tx.CountFinishedAttempts(ctx, userID, testID) })
}

func (s *Store) UpsertAnswer(ctx context.Context, a domain.AttemptAnswer) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx app.Tx) error { return tx.UpsertAnswer(ctx, a) })
}

func (s *Store) CreateAnswer(ctx context.Context, a domain.AttemptAnswer) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx app.Tx) error { return tx.CreateAnswer(ctx, a) })
}

func (s *Store) GetAnswer(ctx context.Context, id string) (domain.AttemptAnswer, error) {
	return readTx(s, func(tx *memTx) (domain.AttemptAnswer, error) { return tx.GetAnswer(ctx, id) })
}

func (s *Store) GetAnswers(ctx context.Context, attemptID string) ([]domain.AttemptAnswer, error) {
	return readTx(s, func(tx *memTx) ([]domain.AttemptAnswer, error) { return tx.GetAnswers(ctx, attemptID) })
}

func (s *Store) UpdateAnswer(ctx context.Context, a domain.AttemptAnswer) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx app.Tx) error { return tx.UpdateAnswer(ctx, a) })
}

func (s *Store) UpsertResult(ctx context.Context, r domain.Result) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx app.Tx) error { return tx.UpsertResult(ctx, r) })
}

func (s *Store) GetResult(ctx context.Context, attemptID string) (domain.Result, error) {
	return readTx(s, func(tx *memTx) (domain.Result, error) { return tx.GetResult(ctx, attemptID) })
}

func (s *Store) CreateCompetition(ctx context.Context, c domain.Competition) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx app.Tx) error { return tx.CreateCompetition(ctx, c) })
}

func (s *Store) GetCompetition(ctx context.Context, id string) (domain.Competition, error) {
	return readTx(s, func(tx *memTx) (domain.Competition, error) { return tx.GetCompetition(ctx, id) })
}

func (s *Store) GetCompetitionByCode(ctx context.Context, code string) (domain.Competition, error) {
	return readTx(s, func(tx *memTx) (domain.Competition, error) { return tx.GetCompetitionByCode(ctx, code) })
}

func (s *Store) UpdateCompetition(ctx context.Context, c domain.Competition) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx app.Tx) error { return tx.UpdateCompetition(ctx, c) })
}

func (s *Store) CreateTeam(ctx context.Context, t domain.Team) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx app.Tx) error { return tx.CreateTeam(ctx, t) })
}

func (s *Store) GetTeam(ctx context.Context, id string) (domain.Team, error) {
	return readTx(s, func(tx *memTx) (domain.Team, error) { return tx.GetTeam(ctx, id) })
}

func (s *Store) GetTeams(ctx context.Context, competitionID string) ([]domain.Team, error) {
	return readTx(s, func(tx *memTx) ([]domain.Team, error) { return tx.GetTeams(ctx, competitionID) })
}

func (s *Store) UpdateTeam(ctx context.Context, t domain.Team) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx app.Tx) error { return tx.UpdateTeam(ctx, t) })
}

func (s *Store) CreateParticipant(ctx context.Context, p domain.Participant) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx app.Tx) error { return tx.CreateParticipant(ctx, p) })
}

func (s *Store) GetParticipant(ctx context.Context, id string) (domain.Participant, error) {
	return readTx(s, func(tx *memTx) (domain.Participant, error) { return tx.GetParticipant(ctx, id) })
}

func (s *Store) GetParticipants(ctx context.Context, competitionID string) ([]domain.Participant, error) {
	return readTx(s, func(tx *memTx) ([]domain.Participant, error) { return tx.GetParticipants(ctx, competitionID) })
}

func (s *Store) UpdateParticipant(ctx context.Context, p domain.Participant) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx app.Tx) error { return tx.UpdateParticipant(ctx, p) })
}

func readTx[T any](s *Store, fn func(tx *memTx) (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memTx{st: s.st})
}

// memTx implements app.Tx against one state snapshot.
type memTx struct {
	st *state
}

func (t *memTx) GetTest(_ context.Context, id string) (domain.Test, error) {
	test, ok := t.st.tests[id]
	if !ok {
		return domain.Test{}, domain.NotFound("test")
	}
	return test, nil
}

func (t *memTx) GetQuestions(_ context.Context, testID string) ([]domain.Question, error) {
	if _, ok := t.st.tests[testID]; !ok {
		return nil, domain.NotFound("test")
	}
	ids := t.st.questionOrder[testID]
	questions := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		questions = append(questions, t.st.questions[id])
	}
	return questions, nil
}

func (t *memTx) CreateAttempt(_ context.Context, a domain.Attempt) error {
	if _, ok := t.st.attempts[a.ID]; ok {
		return domain.Conflict("attempt already exists")
	}
	t.st.attempts[a.ID] = a
	return nil
}

func (t *memTx) GetAttempt(_ context.Context, id string) (domain.Attempt, error) {
	attempt, ok := t.st.attempts[id]
	if !ok {
		return domain.Attempt{}, domain.NotFound("attempt")
	}
	return attempt, nil
}

func (t *memTx) UpdateAttempt(_ context.Context, a domain.Attempt) error {
	if _, ok := t.st.attempts[a.ID]; !ok {
		return domain.NotFound("attempt")
	}
	t.st.attempts[a.ID] = a
	return nil
}

func (t *memTx) CountFinishedAttempts(_ context.Context, userID, testID string) (int, error) {
	n := 0
	for _, a := range t.st.attempts {
		if a.UserID == userID && a.TestID == testID && a.Status.Terminal() {
			n++
		}
	}
	return n, nil
}

func (t *memTx) UpsertAnswer(_ context.Context, a domain.AttemptAnswer) error {
	key := pairKey{a.AttemptID, a.QuestionID}
	if existingID, ok := t.st.answerByPair[key]; ok {
		a.ID = existingID // the pair keeps its row identity across upserts
		t.st.answers[existingID] = a
		return nil
	}
	t.st.answerByPair[key] = a.ID
	t.st.answers[a.ID] = a
	t.st.answerOrder[a.AttemptID] = append(t.st.answerOrder[a.AttemptID], a.ID)
	return nil
}

func (t *memTx) CreateAnswer(_ context.Context, a domain.AttemptAnswer) error {
	key := pairKey{a.AttemptID, a.QuestionID}
	if _, ok := t.st.answerByPair[key]; ok {
		return domain.Conflict("question already answered")
	}
	t.st.answerByPair[key] = a.ID
	t.st.answers[a.ID] = a
	t.st.answerOrder[a.AttemptID] = append(t.st.answerOrder[a.AttemptID], a.ID)
	return nil
}

func (t *memTx) GetAnswer(_ context.Context, id string) (domain.AttemptAnswer, error) {
	answer, ok := t.st.answers[id]
	if !ok {
		return domain.AttemptAnswer{}, domain.NotFound("answer")
	}
	return answer, nil
}

func (t *memTx) GetAnswers(_ context.Context, attemptID string) ([]domain.AttemptAnswer, error) {
	ids := t.st.answerOrder[attemptID]
	answers := make([]domain.AttemptAnswer, 0, len(ids))
	for _, id := range ids {
		answers = append(answers, t.st.answers[id])
	}
	return answers, nil
}

func (t *memTx) UpdateAnswer(_ context.Context, a domain.AttemptAnswer) error {
	if _, ok := t.st.answers[a.ID]; !ok {
		return domain.NotFound("answer")
	}
	t.st.answers[a.ID] = a
	return nil
}

func (t *memTx) UpsertResult(_ context.Context, r domain.Result) error {
	if existing, ok := t.st.results[r.AttemptID]; ok {
		r.ID = existing.ID
	}
	t.st.results[r.AttemptID] = r
	return nil
}

func (t *memTx) GetResult(_ context.Context, attemptID string) (domain.Result, error) {
	result, ok := t.st.results[attemptID]
	if !ok {
		return domain.Result{}, domain.NotFound("result")
	}
	return result, nil
}

func (t *memTx) CreateCompetition(_ context.Context, c domain.Competition) error {
	if _, ok := t.st.codeIndex[c.Code]; ok {
		return domain.Conflict("join code already in use")
	}
	t.st.competitions[c.ID] = c
	t.st.codeIndex[c.Code] = c.ID
	return nil
}

func (t *memTx) GetCompetition(_ context.Context, id string) (domain.Competition, error) {
	competition, ok := t.st.competitions[id]
	if !ok {
		return domain.Competition{}, domain.NotFound("competition")
	}
	return competition, nil
}

func (t *memTx) GetCompetitionByCode(_ context.Context, code string) (domain.Competition, error) {
	id, ok := t.st.codeIndex[code]
	if !ok {
		return domain.Competition{}, domain.NotFound("competition")
	}
	return t.st.competitions[id], nil
}

func (t *memTx) UpdateCompetition(_ context.Context, c domain.Competition) error {
	if _, ok := t.st.competitions[c.ID]; !ok {
		return domain.NotFound("competition")
	}
	t.st.competitions[c.ID] = c
	return nil
}

func (t *memTx) CreateTeam(_ context.Context, team domain.Team) error {
	if _, ok := t.st.teams[team.ID]; ok {
		return domain.Conflict("team already exists")
	}
	t.st.teams[team.ID] = team
	t.st.teamOrder[team.CompetitionID] = append(t.st.teamOrder[team.CompetitionID], team.ID)
	return nil
}

func (t *memTx) GetTeam(_ context.Context, id string) (domain.Team, error) {
	team, ok := t.st.teams[id]
	if !ok {
		return domain.Team{}, domain.NotFound("team")
	}
	return team, nil
}

func (t *memTx) GetTeams(_ context.Context, competitionID string) ([]domain.Team, error) {
	ids := t.st.teamOrder[competitionID]
	teams := make([]domain.Team, 0, len(ids))
	for _, id := range ids {
		teams = append(teams, t.st.teams[id])
	}
	return teams, nil
}

func (t *memTx) UpdateTeam(_ context.Context, team domain.Team) error {
	if _, ok := t.st.teams[team.ID]; !ok {
		return domain.NotFound("team")
	}
	t.st.teams[team.ID] = team
	return nil
}

func (t *memTx) CreateParticipant(_ context.Context, p domain.Participant) error {
	if p.UserID != nil {
		key := pairKey{p.CompetitionID, *p.UserID}
		if _, ok := t.st.joinIndex[key]; ok {
			return domain.Conflict("user already joined this competition")
		}
		t.st.joinIndex[key] = struct{}{}
	}
	t.st.participants[p.ID] = p
	t.st.partOrder[p.CompetitionID] = append(t.st.partOrder[p.CompetitionID], p.ID)
	return nil
}

func (t *memTx) GetParticipant(_ context.Context, id string) (domain.Participant, error) {
	participant, ok := t.st.participants[id]
	if !ok {
		return domain.Participant{}, domain.NotFound("participant")
	}
	return participant, nil
}

func (t *memTx) GetParticipants(_ context.Context, competitionID string) ([]domain.Participant, error) {
	ids := t.st.partOrder[competitionID]
	participants := make([]domain.Participant, 0, len(ids))
	for _, id := range ids {
		participants = append(participants, t.st.participants[id])
	}
	return participants, nil
}

func (t *memTx) UpdateParticipant(_ context.Context, p domain.Participant) error {
	if _, ok := t.st.participants[p.ID]; !ok {
		return domain.NotFound("participant")
	}
	t.st.participants[p.ID] = p
	return nil
}
