package app

import (
	"context"
	"crypto/rand"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jasa1aw/eduBack/internal/domain"
	"github.com/jasa1aw/eduBack/internal/grading"
)

// teamPalette supplies display colors round-robin to pre-created teams.
var teamPalette = []string{
	"#E74C3C", "#3498DB", "#2ECC71", "#F1C40F",
	"#9B59B6", "#E67E22", "#1ABC9C", "#34495E",
}

const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
	codeAttempts = 10
)

// CompetitionSnapshot is the room-wide state payload of competitionJoined /
// competitionUpdated events.
type CompetitionSnapshot struct {
	Competition  domain.Competition   `json:"competition"`
	Teams        []domain.Team        `json:"teams"`
	Participants []domain.Participant `json:"participants"`
}

// LeaderboardEntry ranks one team.
type LeaderboardEntry struct {
	TeamID    string `json:"teamId"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	Score     int    `json:"score"`
	Position  int    `json:"position"`
	Completed bool   `json:"completed"`
}

// Leaderboard is the ordered standing of all teams in a competition.
type Leaderboard struct {
	CompetitionID string             `json:"competitionId"`
	Entries       []LeaderboardEntry `json:"entries"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// AnswerOutcome reports one accepted competition answer back to the
// selected player.
type AnswerOutcome struct {
	QuestionID           string `json:"questionId"`
	Correct              bool   `json:"correct"`
	TeamScore            int    `json:"teamScore"`
	AttemptCompleted     bool   `json:"attemptCompleted"`
	CompetitionCompleted bool   `json:"competitionCompleted"`
}

// teamQuestion is the currentQuestion payload; clients filter on teamId.
type teamQuestion struct {
	TeamID   string       `json:"teamId"`
	Index    int          `json:"index"`
	Total    int          `json:"total"`
	Question QuestionView `json:"question"`
}

type teamChat struct {
	TeamID string `json:"teamId"`
	From   string `json:"from"`
	Text   string `json:"text"`
}

// CompetitionService orchestrates multi-team live sessions on top of the
// attempt machinery: room creation and join by code, team and player
// selection, start gating, per-team attempt fan-out, live scoring, and
// completion detection. All authoritative state lives in the store; rooms
// only republish committed snapshots.
type CompetitionService struct {
	store   Store
	content TestContentSource
	rooms   RoomRegistry
	now     func() time.Time
}

func NewCompetitionService(store Store, content TestContentSource, rooms RoomRegistry) *CompetitionService {
	return NewCompetitionServiceWithClock(store, content, rooms, time.Now)
}

// NewCompetitionServiceWithClock allows deterministic timestamps in tests.
func NewCompetitionServiceWithClock(store Store, content TestContentSource, rooms RoomRegistry, now func() time.Time) *CompetitionService {
	return &CompetitionService{store: store, content: content, rooms: rooms, now: now}
}

// Create opens a WAITING competition for a published test the creator owns,
// with a collision-checked join code and maxTeams pre-created teams.
func (s *CompetitionService) Create(ctx context.Context, creatorID, testID string, maxTeams int) (domain.Competition, []domain.Team, error) {
	if maxTeams < 2 {
		return domain.Competition{}, nil, domain.Invalid("a competition needs at least two teams")
	}

	var (
		competition domain.Competition
		teams       []domain.Team
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		test, err := tx.GetTest(ctx, testID)
		if err != nil {
			return err
		}
		if test.CreatorID != creatorID {
			return domain.Forbidden("only the test creator may host a competition")
		}
		if test.IsDraft {
			return domain.Conflict("test is still a draft")
		}

		code, err := s.uniqueCode(ctx, tx)
		if err != nil {
			return err
		}
		competition = domain.Competition{
			ID:        uuid.NewString(),
			TestID:    testID,
			CreatorID: creatorID,
			Code:      code,
			Status:    domain.CompetitionWaiting,
			MaxTeams:  maxTeams,
		}
		if err := tx.CreateCompetition(ctx, competition); err != nil {
			return err
		}

		teams = make([]domain.Team, 0, maxTeams)
		for i := 0; i < maxTeams; i++ {
			team := domain.Team{
				ID:            uuid.NewString(),
				CompetitionID: competition.ID,
				Name:          teamName(i),
				Color:         teamPalette[i%len(teamPalette)],
			}
			if err := tx.CreateTeam(ctx, team); err != nil {
				return err
			}
			teams = append(teams, team)
		}
		return nil
	})
	if err != nil {
		return domain.Competition{}, nil, err
	}
	return competition, teams, nil
}

// JoinByCode registers a participant (guest when userID is nil) in a WAITING
// competition and announces the join to the room.
func (s *CompetitionService) JoinByCode(ctx context.Context, code, displayName string, userID *string) (domain.Participant, CompetitionSnapshot, error) {
	if displayName == "" {
		return domain.Participant{}, CompetitionSnapshot{}, domain.Invalid("display name is required")
	}

	var (
		participant domain.Participant
		snapshot    CompetitionSnapshot
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		competition, err := tx.GetCompetitionByCode(ctx, code)
		if err != nil {
			return err
		}
		if competition.Status != domain.CompetitionWaiting {
			return domain.Conflict("competition is no longer open for joining")
		}

		participant = domain.Participant{
			ID:            uuid.NewString(),
			CompetitionID: competition.ID,
			UserID:        userID,
			DisplayName:   displayName,
			JoinedAt:      s.now(),
		}
		if err := tx.CreateParticipant(ctx, participant); err != nil {
			return err
		}
		snapshot, err = s.snapshot(ctx, tx, competition.ID)
		return err
	})
	if err != nil {
		return domain.Participant{}, CompetitionSnapshot{}, err
	}

	room := s.rooms.GetOrCreate(snapshot.Competition.Code)
	room.Publish(Event{Type: EventParticipantJoined, Payload: participant})
	room.Publish(Event{Type: EventCompetitionUpdated, Payload: snapshot})
	return participant, snapshot, nil
}

// SelectTeam reassigns a participant's team. Only permitted while WAITING.
func (s *CompetitionService) SelectTeam(ctx context.Context, participantID, teamID string) (CompetitionSnapshot, error) {
	return s.updateWaiting(ctx, participantID, func(ctx context.Context, tx Tx, p domain.Participant) error {
		team, err := tx.GetTeam(ctx, teamID)
		if err != nil {
			return err
		}
		if team.CompetitionID != p.CompetitionID {
			return domain.Invalid("team belongs to a different competition")
		}
		p.TeamID = &team.ID
		return tx.UpdateParticipant(ctx, p)
	})
}

// SelectPlayer marks the team's sole answering player. The participant must
// already belong to that team. Only permitted while WAITING.
func (s *CompetitionService) SelectPlayer(ctx context.Context, teamID, participantID string) (CompetitionSnapshot, error) {
	return s.updateWaiting(ctx, participantID, func(ctx context.Context, tx Tx, p domain.Participant) error {
		team, err := tx.GetTeam(ctx, teamID)
		if err != nil {
			return err
		}
		if team.CompetitionID != p.CompetitionID {
			return domain.Invalid("team belongs to a different competition")
		}
		if p.TeamID == nil || *p.TeamID != team.ID {
			return domain.Invalid("participant is not on this team")
		}
		team.SelectedPlayerID = &p.ID
		return tx.UpdateTeam(ctx, team)
	})
}

// Start flips a WAITING competition to IN_PROGRESS. Readiness (two or more
// teams, each populated and with a selected player) is re-validated inside
// the same transaction that flips the status, so a late SelectTeam or
// SelectPlayer cannot race past the gate. A fresh practice attempt is created
// for every ready team and linked to it before the transaction commits.
func (s *CompetitionService) Start(ctx context.Context, creatorID, competitionID string) (CompetitionSnapshot, error) {
	var (
		snapshot    CompetitionSnapshot
		firstByTeam []Event
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		competition, err := tx.GetCompetition(ctx, competitionID)
		if err != nil {
			return err
		}
		if competition.CreatorID != creatorID {
			return domain.Forbidden("only the competition creator may start it")
		}
		if competition.Status != domain.CompetitionWaiting {
			return domain.Conflict("competition is not waiting to start")
		}
		competition.Status = domain.CompetitionStarting

		teams, err := tx.GetTeams(ctx, competitionID)
		if err != nil {
			return err
		}
		participants, err := tx.GetParticipants(ctx, competitionID)
		if err != nil {
			return err
		}

		questions, err := tx.GetQuestions(ctx, competition.TestID)
		if err != nil {
			return err
		}
		if len(questions) == 0 {
			return domain.Conflict("test has no questions")
		}

		now := s.now()
		ready := 0
		for _, team := range teams {
			if !teamReady(team, participants) {
				continue
			}
			ready++

			attempt := domain.Attempt{
				ID:        uuid.NewString(),
				TestID:    competition.TestID,
				UserID:    *team.SelectedPlayerID,
				Mode:      domain.ModePractice,
				Status:    domain.AttemptInProgress,
				StartTime: now,
			}
			if err := tx.CreateAttempt(ctx, attempt); err != nil {
				return err
			}
			team.AttemptID = &attempt.ID
			if err := tx.UpdateTeam(ctx, team); err != nil {
				return err
			}
			firstByTeam = append(firstByTeam, Event{Type: EventCurrentQuestion, Payload: teamQuestion{
				TeamID:   team.ID,
				Index:    0,
				Total:    len(questions),
				Question: NewQuestionView(questions[0]),
			}})
		}
		if ready < 2 {
			return domain.Conflict("need at least two teams with members and a selected player")
		}

		competition.Status = domain.CompetitionInProgress
		competition.StartedAt = &now
		if err := tx.UpdateCompetition(ctx, competition); err != nil {
			return err
		}
		snapshot, err = s.snapshot(ctx, tx, competitionID)
		return err
	})
	if err != nil {
		return CompetitionSnapshot{}, err
	}

	// competitionUpdated carries the readiness snapshot that gated the start
	// and must reach clients before competitionStarted.
	room := s.rooms.GetOrCreate(snapshot.Competition.Code)
	room.Publish(Event{Type: EventCompetitionUpdated, Payload: snapshot})
	room.Publish(Event{Type: EventCompetitionStarted, Payload: snapshot.Competition})
	for _, ev := range firstByTeam {
		room.Publish(ev)
	}
	return snapshot, nil
}

// Cancel abandons a competition that never started.
func (s *CompetitionService) Cancel(ctx context.Context, creatorID, competitionID string) error {
	var code string
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		competition, err := tx.GetCompetition(ctx, competitionID)
		if err != nil {
			return err
		}
		if competition.CreatorID != creatorID {
			return domain.Forbidden("only the competition creator may cancel it")
		}
		if competition.Status != domain.CompetitionWaiting {
			return domain.Conflict("only a waiting competition can be cancelled")
		}
		competition.Status = domain.CompetitionCancelled
		code = competition.Code
		return tx.UpdateCompetition(ctx, competition)
	})
	if err != nil {
		return err
	}
	if room, ok := s.rooms.Get(code); ok {
		room.Publish(Event{Type: EventCompetitionUpdated, Payload: CompetitionSnapshot{Competition: domain.Competition{ID: competitionID, Code: code, Status: domain.CompetitionCancelled}}})
	}
	return nil
}

// SubmitAnswer accepts one answer from a team's selected player. The
// "already answered" check and the insert are atomic: a second submission for
// the same (attempt, question) pair fails with Conflict. Correct answers add
// one point to the team, regardless of question weight.
func (s *CompetitionService) SubmitAnswer(ctx context.Context, participantID, questionID string, selected []string, userAnswer string) (AnswerOutcome, error) {
	if questionID == "" {
		return AnswerOutcome{}, domain.Invalid("questionId is required")
	}

	var (
		outcome     AnswerOutcome
		leaderboard Leaderboard
		nextEv      *Event
		code        string
		displayName string
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		participant, err := tx.GetParticipant(ctx, participantID)
		if err != nil {
			return err
		}
		displayName = participant.DisplayName
		competition, err := tx.GetCompetition(ctx, participant.CompetitionID)
		if err != nil {
			return err
		}
		code = competition.Code
		if competition.Status != domain.CompetitionInProgress {
			return domain.Conflict("competition is not in progress")
		}
		if participant.TeamID == nil {
			return domain.Conflict("participant has no team")
		}
		team, err := tx.GetTeam(ctx, *participant.TeamID)
		if err != nil {
			return err
		}
		if team.SelectedPlayerID == nil || *team.SelectedPlayerID != participant.ID {
			return domain.Forbidden("only the selected player may answer for the team")
		}
		if team.AttemptID == nil {
			return domain.Conflict("team has no bound attempt")
		}
		attempt, err := tx.GetAttempt(ctx, *team.AttemptID)
		if err != nil {
			return err
		}
		if attempt.Status != domain.AttemptInProgress {
			return domain.Conflict("team already finished")
		}

		content, err := s.content.GetTestContent(ctx, competition.TestID)
		if err != nil {
			return err
		}
		var question *domain.Question
		for i := range content.Questions {
			if content.Questions[i].ID == questionID {
				question = &content.Questions[i]
				break
			}
		}
		if question == nil {
			return domain.NotFound("question")
		}

		verdict := grading.Evaluate(*question, selected, userAnswer)
		status := domain.AnswerChecked
		if verdict == nil {
			// Open questions never gate live play; they simply score nothing.
			status = domain.AnswerPending
		}
		if err := tx.CreateAnswer(ctx, domain.AttemptAnswer{
			ID:              uuid.NewString(),
			AttemptID:       attempt.ID,
			QuestionID:      questionID,
			SelectedAnswers: selected,
			UserAnswer:      userAnswer,
			IsCorrect:       verdict,
			Status:          status,
		}); err != nil {
			return err
		}

		now := s.now()
		correct := verdict != nil && *verdict
		if correct {
			team.Score++
		}

		answers, err := tx.GetAnswers(ctx, attempt.ID)
		if err != nil {
			return err
		}
		done := len(answers) >= len(content.Questions)
		if done {
			attempt.Status = domain.AttemptCompleted
			attempt.EndTime = &now
			if err := tx.UpdateAttempt(ctx, attempt); err != nil {
				return err
			}
			team.CompletedAt = &now
		} else {
			next := nextUnanswered(content.Questions, answers)
			nextEv = &Event{Type: EventCurrentQuestion, Payload: teamQuestion{
				TeamID:   team.ID,
				Index:    len(answers),
				Total:    len(content.Questions),
				Question: NewQuestionView(*next),
			}}
		}
		if err := tx.UpdateTeam(ctx, team); err != nil {
			return err
		}

		teams, err := tx.GetTeams(ctx, competition.ID)
		if err != nil {
			return err
		}
		finished := allTeamsFinished(teams)
		if finished {
			competition.Status = domain.CompetitionCompleted
			competition.EndedAt = &now
			if err := tx.UpdateCompetition(ctx, competition); err != nil {
				return err
			}
			// Final ranks are frozen onto the teams at completion.
			for i, entry := range rankTeams(teams) {
				t, err := tx.GetTeam(ctx, entry.TeamID)
				if err != nil {
					return err
				}
				t.Position = i + 1
				if err := tx.UpdateTeam(ctx, t); err != nil {
					return err
				}
				teams[indexOfTeam(teams, t.ID)] = t
			}
		}

		outcome = AnswerOutcome{
			QuestionID:           questionID,
			Correct:              correct,
			TeamScore:            team.Score,
			AttemptCompleted:     done,
			CompetitionCompleted: finished,
		}
		leaderboard = s.buildLeaderboard(competition.ID, teams)
		return nil
	})
	if err != nil {
		return AnswerOutcome{}, err
	}

	room := s.rooms.GetOrCreate(code)
	room.Publish(Event{Type: EventAnswerResult, Payload: struct {
		Participant string `json:"participant"`
		AnswerOutcome
	}{displayName, outcome}})
	room.Publish(Event{Type: EventLeaderboardUpdated, Payload: leaderboard})
	if nextEv != nil {
		room.Publish(*nextEv)
	}
	if outcome.CompetitionCompleted {
		room.Publish(Event{Type: EventCompetitionCompleted, Payload: leaderboard})
	}
	return outcome, nil
}

// Leaderboard returns the current team standings.
func (s *CompetitionService) Leaderboard(ctx context.Context, competitionID string) (Leaderboard, error) {
	teams, err := s.store.GetTeams(ctx, competitionID)
	if err != nil {
		return Leaderboard{}, err
	}
	return s.buildLeaderboard(competitionID, teams), nil
}

// TeamMessage relays free text to the sender's team. Nothing is persisted.
func (s *CompetitionService) TeamMessage(ctx context.Context, participantID, text string) error {
	if text == "" {
		return domain.Invalid("message text is required")
	}
	participant, err := s.store.GetParticipant(ctx, participantID)
	if err != nil {
		return err
	}
	if participant.TeamID == nil {
		return domain.Conflict("participant has no team")
	}
	competition, err := s.store.GetCompetition(ctx, participant.CompetitionID)
	if err != nil {
		return err
	}
	room := s.rooms.GetOrCreate(competition.Code)
	room.Publish(Event{Type: EventTeamMessage, Payload: teamChat{
		TeamID: *participant.TeamID,
		From:   participant.DisplayName,
		Text:   text,
	}})
	return nil
}

// Subscribe attaches a listener to a competition's room. The cancel function
// detaches it and drops the room once the last listener leaves.
func (s *CompetitionService) Subscribe(code string) (<-chan Event, func()) {
	room := s.rooms.GetOrCreate(code)
	ch, cancel := room.Subscribe()
	return ch, func() {
		cancel()
		s.rooms.DeleteIfEmpty(code)
	}
}

// Snapshot returns the current room-wide state by join code.
func (s *CompetitionService) Snapshot(ctx context.Context, code string) (CompetitionSnapshot, error) {
	var snapshot CompetitionSnapshot
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		competition, err := tx.GetCompetitionByCode(ctx, code)
		if err != nil {
			return err
		}
		snapshot, err = s.snapshot(ctx, tx, competition.ID)
		return err
	})
	return snapshot, err
}

func (s *CompetitionService) snapshot(ctx context.Context, tx Tx, competitionID string) (CompetitionSnapshot, error) {
	competition, err := tx.GetCompetition(ctx, competitionID)
	if err != nil {
		return CompetitionSnapshot{}, err
	}
	teams, err := tx.GetTeams(ctx, competitionID)
	if err != nil {
		return CompetitionSnapshot{}, err
	}
	participants, err := tx.GetParticipants(ctx, competitionID)
	if err != nil {
		return CompetitionSnapshot{}, err
	}
	return CompetitionSnapshot{Competition: competition, Teams: teams, Participants: participants}, nil
}

func (s *CompetitionService) updateWaiting(ctx context.Context, participantID string, mutate func(ctx context.Context, tx Tx, p domain.Participant) error) (CompetitionSnapshot, error) {
	var snapshot CompetitionSnapshot
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		participant, err := tx.GetParticipant(ctx, participantID)
		if err != nil {
			return err
		}
		competition, err := tx.GetCompetition(ctx, participant.CompetitionID)
		if err != nil {
			return err
		}
		if competition.Status != domain.CompetitionWaiting {
			return domain.Conflict("competition has already started")
		}
		if err := mutate(ctx, tx, participant); err != nil {
			return err
		}
		snapshot, err = s.snapshot(ctx, tx, competition.ID)
		return err
	})
	if err != nil {
		return CompetitionSnapshot{}, err
	}
	s.rooms.GetOrCreate(snapshot.Competition.Code).Publish(Event{Type: EventCompetitionUpdated, Payload: snapshot})
	return snapshot, nil
}

func (s *CompetitionService) buildLeaderboard(competitionID string, teams []domain.Team) Leaderboard {
	entries := rankTeams(teams)
	for i := range entries {
		entries[i].Position = i + 1
	}
	return Leaderboard{CompetitionID: competitionID, Entries: entries, UpdatedAt: s.now()}
}

// rankTeams orders by score descending, ties broken by earlier completion;
// teams that never completed sort last, then by name.
func rankTeams(teams []domain.Team) []LeaderboardEntry {
	sorted := make([]domain.Team, len(teams))
	copy(sorted, teams)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		switch {
		case a.CompletedAt != nil && b.CompletedAt != nil && !a.CompletedAt.Equal(*b.CompletedAt):
			return a.CompletedAt.Before(*b.CompletedAt)
		case a.CompletedAt != nil && b.CompletedAt == nil:
			return true
		case a.CompletedAt == nil && b.CompletedAt != nil:
			return false
		}
		return a.Name < b.Name
	})

	entries := make([]LeaderboardEntry, 0, len(sorted))
	for _, t := range sorted {
		entries = append(entries, LeaderboardEntry{
			TeamID:    t.ID,
			Name:      t.Name,
			Color:     t.Color,
			Score:     t.Score,
			Completed: t.CompletedAt != nil,
		})
	}
	return entries
}

func teamReady(team domain.Team, participants []domain.Participant) bool {
	if team.SelectedPlayerID == nil {
		return false
	}
	selectedOnTeam := false
	members := 0
	for _, p := range participants {
		if p.TeamID == nil || *p.TeamID != team.ID {
			continue
		}
		members++
		if p.ID == *team.SelectedPlayerID {
			selectedOnTeam = true
		}
	}
	return members > 0 && selectedOnTeam
}

func allTeamsFinished(teams []domain.Team) bool {
	bound := 0
	for _, t := range teams {
		if t.AttemptID == nil {
			continue
		}
		bound++
		if t.CompletedAt == nil {
			return false
		}
	}
	return bound > 0
}

func indexOfTeam(teams []domain.Team, id string) int {
	for i := range teams {
		if teams[i].ID == id {
			return i
		}
	}
	return -1
}

// uniqueCode draws join codes until one is free. The store's unique
// constraint on code still backs this against a concurrent create.
func (s *CompetitionService) uniqueCode(ctx context.Context, tx Tx) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		_, err = tx.GetCompetitionByCode(ctx, code)
		if err == nil {
			continue
		}
		if errors.Is(err, domain.ErrNotFound) {
			return code, nil
		}
		return "", err
	}
	return "", domain.Conflict("could not allocate a unique join code")
}

func randomCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

func teamName(i int) string {
	return "Team " + string(rune('A'+i%26))
}
