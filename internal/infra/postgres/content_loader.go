package postgres

import (
	"context"
	"fmt"

	"github.com/jasa1aw/eduBack/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// TestContentLoader reads published test content from Postgres. It feeds the
// TTL caches on the competition answer path, so it deliberately bypasses the
// transactional store.
type TestContentLoader struct {
	pool *pgxpool.Pool
}

func NewTestContentLoader(pool *pgxpool.Pool) *TestContentLoader {
	return &TestContentLoader{pool: pool}
}

func (l *TestContentLoader) LoadTestContent(ctx context.Context, testID string) (domain.TestContent, error) {
	var content domain.TestContent
	err := l.pool.QueryRow(ctx,
		`SELECT id, creator_id, title, is_draft, show_answers, exam_mode, time_limit, max_attempts
		 FROM tests WHERE id=$1`, testID).
		Scan(&content.Test.ID, &content.Test.CreatorID, &content.Test.Title,
			&content.Test.IsDraft, &content.Test.ShowAnswers, &content.Test.ExamMode,
			&content.Test.TimeLimit, &content.Test.MaxAttempts)
	if err != nil {
		return domain.TestContent{}, fmt.Errorf("load test: %w", err)
	}

	rows, err := l.pool.Query(ctx,
		`SELECT id, test_id, title, type, options, correct_answers, weight, explanation, image
		 FROM questions WHERE test_id=$1 ORDER BY ordinal`, testID)
	if err != nil {
		return domain.TestContent{}, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var q domain.Question
		var qtype string
		if err := rows.Scan(&q.ID, &q.TestID, &q.Title, &qtype, &q.Options,
			&q.CorrectAnswers, &q.Weight, &q.Explanation, &q.Image); err != nil {
			return domain.TestContent{}, fmt.Errorf("scan question: %w", err)
		}
		q.Type = domain.QuestionType(qtype)
		content.Questions = append(content.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return domain.TestContent{}, fmt.Errorf("read questions: %w", err)
	}
	return content, nil
}
