package postgres

import (
	"time"

	"github.com/jasa1aw/eduBack/internal/domain"
	"github.com/uptrace/bun"
)

type testRecord struct {
	bun.BaseModel `bun:"table:tests,alias:t"`

	ID          string `bun:"id,pk"`
	CreatorID   string `bun:"creator_id"`
	Title       string `bun:"title"`
	IsDraft     bool   `bun:"is_draft"`
	ShowAnswers bool   `bun:"show_answers"`
	ExamMode    bool   `bun:"exam_mode"`
	TimeLimit   int    `bun:"time_limit"`
	MaxAttempts int    `bun:"max_attempts"`
}

func (r testRecord) toDomain() domain.Test {
	return domain.Test{
		ID:          r.ID,
		CreatorID:   r.CreatorID,
		Title:       r.Title,
		IsDraft:     r.IsDraft,
		ShowAnswers: r.ShowAnswers,
		ExamMode:    r.ExamMode,
		TimeLimit:   r.TimeLimit,
		MaxAttempts: r.MaxAttempts,
	}
}

type questionRecord struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID             string   `bun:"id,pk"`
	TestID         string   `bun:"test_id"`
	Title          string   `bun:"title"`
	Type           string   `bun:"type"`
	Options        []string `bun:"options,array"`
	CorrectAnswers []string `bun:"correct_answers,array"`
	Weight         int      `bun:"weight"`
	Explanation    string   `bun:"explanation"`
	Image          string   `bun:"image"`
	Ordinal        int      `bun:"ordinal"`
}

func (r questionRecord) toDomain() domain.Question {
	return domain.Question{
		ID:             r.ID,
		TestID:         r.TestID,
		Title:          r.Title,
		Type:           domain.QuestionType(r.Type),
		Options:        r.Options,
		CorrectAnswers: r.CorrectAnswers,
		Weight:         r.Weight,
		Explanation:    r.Explanation,
		Image:          r.Image,
	}
}

type attemptRecord struct {
	bun.BaseModel `bun:"table:attempts,alias:a"`

	ID        string     `bun:"id,pk"`
	TestID    string     `bun:"test_id"`
	UserID    string     `bun:"user_id"`
	Mode      string     `bun:"mode"`
	Status    string     `bun:"status"`
	StartTime time.Time  `bun:"start_time"`
	EndTime   *time.Time `bun:"end_time"`
}

func attemptToRecord(a domain.Attempt) attemptRecord {
	return attemptRecord{
		ID:        a.ID,
		TestID:    a.TestID,
		UserID:    a.UserID,
		Mode:      string(a.Mode),
		Status:    string(a.Status),
		StartTime: a.StartTime,
		EndTime:   a.EndTime,
	}
}

func (r attemptRecord) toDomain() domain.Attempt {
	return domain.Attempt{
		ID:        r.ID,
		TestID:    r.TestID,
		UserID:    r.UserID,
		Mode:      domain.AttemptMode(r.Mode),
		Status:    domain.AttemptStatus(r.Status),
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
	}
}

type answerRecord struct {
	bun.BaseModel `bun:"table:attempt_answers,alias:aa"`

	ID              string   `bun:"id,pk"`
	AttemptID       string   `bun:"attempt_id"`
	QuestionID      string   `bun:"question_id"`
	SelectedAnswers []string `bun:"selected_answers,array"`
	UserAnswer      string   `bun:"user_answer"`
	IsCorrect       *bool    `bun:"is_correct"`
	Status          string   `bun:"status"`
}

func answerToRecord(a domain.AttemptAnswer) answerRecord {
	return answerRecord{
		ID:              a.ID,
		AttemptID:       a.AttemptID,
		QuestionID:      a.QuestionID,
		SelectedAnswers: a.SelectedAnswers,
		UserAnswer:      a.UserAnswer,
		IsCorrect:       a.IsCorrect,
		Status:          string(a.Status),
	}
}

func (r answerRecord) toDomain() domain.AttemptAnswer {
	return domain.AttemptAnswer{
		ID:              r.ID,
		AttemptID:       r.AttemptID,
		QuestionID:      r.QuestionID,
		SelectedAnswers: r.SelectedAnswers,
		UserAnswer:      r.UserAnswer,
		IsCorrect:       r.IsCorrect,
		Status:          domain.AnswerStatus(r.Status),
	}
}

type resultRecord struct {
	bun.BaseModel `bun:"table:results,alias:r"`

	ID        string    `bun:"id,pk"`
	AttemptID string    `bun:"attempt_id"`
	Score     int       `bun:"score"`
	UpdatedAt time.Time `bun:"updated_at"`
}

func (r resultRecord) toDomain() domain.Result {
	return domain.Result{ID: r.ID, AttemptID: r.AttemptID, Score: r.Score, UpdatedAt: r.UpdatedAt}
}

type competitionRecord struct {
	bun.BaseModel `bun:"table:competitions,alias:c"`

	ID        string     `bun:"id,pk"`
	TestID    string     `bun:"test_id"`
	CreatorID string     `bun:"creator_id"`
	Code      string     `bun:"code"`
	Status    string     `bun:"status"`
	MaxTeams  int        `bun:"max_teams"`
	StartedAt *time.Time `bun:"started_at"`
	EndedAt   *time.Time `bun:"ended_at"`
}

func competitionToRecord(c domain.Competition) competitionRecord {
	return competitionRecord{
		ID:        c.ID,
		TestID:    c.TestID,
		CreatorID: c.CreatorID,
		Code:      c.Code,
		Status:    string(c.Status),
		MaxTeams:  c.MaxTeams,
		StartedAt: c.StartedAt,
		EndedAt:   c.EndedAt,
	}
}

func (r competitionRecord) toDomain() domain.Competition {
	return domain.Competition{
		ID:        r.ID,
		TestID:    r.TestID,
		CreatorID: r.CreatorID,
		Code:      r.Code,
		Status:    domain.CompetitionStatus(r.Status),
		MaxTeams:  r.MaxTeams,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
	}
}

type teamRecord struct {
	bun.BaseModel `bun:"table:teams,alias:tm"`

	ID               string     `bun:"id,pk"`
	CompetitionID    string     `bun:"competition_id"`
	Name             string     `bun:"name"`
	Color            string     `bun:"color"`
	Score            int        `bun:"score"`
	Position         int        `bun:"position"`
	SelectedPlayerID *string    `bun:"selected_player_id"`
	AttemptID        *string    `bun:"attempt_id"`
	CompletedAt      *time.Time `bun:"completed_at"`
}

func teamToRecord(t domain.Team) teamRecord {
	return teamRecord{
		ID:               t.ID,
		CompetitionID:    t.CompetitionID,
		Name:             t.Name,
		Color:            t.Color,
		Score:            t.Score,
		Position:         t.Position,
		SelectedPlayerID: t.SelectedPlayerID,
		AttemptID:        t.AttemptID,
		CompletedAt:      t.CompletedAt,
	}
}

func (r teamRecord) toDomain() domain.Team {
	return domain.Team{
		ID:               r.ID,
		CompetitionID:    r.CompetitionID,
		Name:             r.Name,
		Color:            r.Color,
		Score:            r.Score,
		Position:         r.Position,
		SelectedPlayerID: r.SelectedPlayerID,
		AttemptID:        r.AttemptID,
		CompletedAt:      r.CompletedAt,
	}
}

type participantRecord struct {
	bun.BaseModel `bun:"table:participants,alias:p"`

	ID            string    `bun:"id,pk"`
	CompetitionID string    `bun:"competition_id"`
	UserID        *string   `bun:"user_id"`
	DisplayName   string    `bun:"display_name"`
	TeamID        *string   `bun:"team_id"`
	JoinedAt      time.Time `bun:"joined_at"`
}

func participantToRecord(p domain.Participant) participantRecord {
	return participantRecord{
		ID:            p.ID,
		CompetitionID: p.CompetitionID,
		UserID:        p.UserID,
		DisplayName:   p.DisplayName,
		TeamID:        p.TeamID,
		JoinedAt:      p.JoinedAt,
	}
}

func (r participantRecord) toDomain() domain.Participant {
	return domain.Participant{
		ID:            r.ID,
		CompetitionID: r.CompetitionID,
		UserID:        r.UserID,
		DisplayName:   r.DisplayName,
		TeamID:        r.TeamID,
		JoinedAt:      r.JoinedAt,
	}
}
