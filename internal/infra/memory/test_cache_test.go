package memory

import (
	"context"
	"testing"
	"time"

	"github.com/jasa1aw/eduBack/internal/domain"
)

func TestTestCacheCaches(t *testing.T) {
	loader := &countingLoader{
		ContentLoader: NewStaticContentLoader(map[string]domain.TestContent{
			"test-1": sampleContent(),
		}),
	}
	cache := NewTestCache(loader, time.Minute)

	if _, err := cache.GetTestContent(context.Background(), "test-1"); err != nil {
		t.Fatalf("get content: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := cache.GetTestContent(context.Background(), "test-1"); err != nil {
		t.Fatalf("get content 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestTestCacheExpires(t *testing.T) {
	loader := &countingLoader{
		ContentLoader: NewStaticContentLoader(map[string]domain.TestContent{
			"test-1": sampleContent(),
		}),
	}
	cache := NewTestCache(loader, time.Minute)

	now := time.Date(2025, 3, 18, 10, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return now }

	_, _ = cache.GetTestContent(context.Background(), "test-1")
	// Jitter extends the TTL by at most 10%.
	now = now.Add(2 * time.Minute)
	_, _ = cache.GetTestContent(context.Background(), "test-1")
	if loader.calls != 2 {
		t.Fatalf("expected reload after expiry, loader calls %d", loader.calls)
	}
}

func TestTestCacheMiss(t *testing.T) {
	cache := NewTestCache(NewStaticContentLoader(nil), time.Minute)
	if _, err := cache.GetTestContent(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unknown test")
	}
}

type countingLoader struct {
	ContentLoader
	calls int
}

func (l *countingLoader) LoadTestContent(ctx context.Context, testID string) (domain.TestContent, error) {
	l.calls++
	return l.ContentLoader.LoadTestContent(ctx, testID)
}

func sampleContent() domain.TestContent {
	return domain.TestContent{
		Test: domain.Test{ID: "test-1", CreatorID: "teacher-1", Title: "Geography warm-up"},
		Questions: []domain.Question{
			{
				ID:             "q1",
				TestID:         "test-1",
				Title:          "Which of these are EU capitals?",
				Type:           domain.MultipleChoice,
				Options:        []string{"Paris", "Oslo", "Vienna"},
				CorrectAnswers: []string{"Paris", "Vienna"},
			},
		},
	}
}
