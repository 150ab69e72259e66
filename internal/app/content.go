package app

import (
	"context"

	"github.com/jasa1aw/eduBack/internal/domain"
)

// TestContentSource serves published test content on the competition hot path.
// Implementations cache aggressively; test content is immutable once a
// competition has started, so staleness is bounded by the cache TTL.
type TestContentSource interface {
	GetTestContent(ctx context.Context, testID string) (domain.TestContent, error)
}

// StoreContentSource reads content straight from the store, bypassing any
// cache. Used where authoritative reads are required or no cache is wired.
type StoreContentSource struct {
	store Store
}

func NewStoreContentSource(store Store) *StoreContentSource {
	return &StoreContentSource{store: store}
}

func (s *StoreContentSource) GetTestContent(ctx context.Context, testID string) (domain.TestContent, error) {
	test, err := s.store.GetTest(ctx, testID)
	if err != nil {
		return domain.TestContent{}, err
	}
	questions, err := s.store.GetQuestions(ctx, testID)
	if err != nil {
		return domain.TestContent{}, err
	}
	return domain.TestContent{Test: test, Questions: questions}, nil
}
