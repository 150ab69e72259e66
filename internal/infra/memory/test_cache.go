package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/jasa1aw/eduBack/internal/domain"
	"golang.org/x/sync/singleflight"
)

// ContentLoader fetches published test content from a backing store.
type ContentLoader interface {
	LoadTestContent(ctx context.Context, testID string) (domain.TestContent, error)
}

// TestCache caches test content with TTL to keep the competition answer path
// off the database. Concurrent misses for the same test collapse into one
// loader call.
type TestCache struct {
	loader ContentLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedContent
}

type cachedContent struct {
	content   domain.TestContent
	expiresAt time.Time
}

func NewTestCache(loader ContentLoader, ttl time.Duration) *TestCache {
	return &TestCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedContent),
	}
}

func (c *TestCache) GetTestContent(ctx context.Context, testID string) (domain.TestContent, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[testID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.content, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(testID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[testID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.content, nil
		}
		c.mu.RUnlock()

		content, err := c.loader.LoadTestContent(ctx, testID)
		if err != nil {
			return domain.TestContent{}, err
		}

		c.mu.Lock()
		c.cache[testID] = cachedContent{
			content:   content,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return content, nil
	})
	if err != nil {
		return domain.TestContent{}, err
	}
	return result.(domain.TestContent), nil
}

func (c *TestCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticContentLoader serves content from a fixed map (tests/demos).
type StaticContentLoader struct {
	contents map[string]domain.TestContent
}

func NewStaticContentLoader(contents map[string]domain.TestContent) *StaticContentLoader {
	return &StaticContentLoader{contents: contents}
}

func (l *StaticContentLoader) LoadTestContent(_ context.Context, testID string) (domain.TestContent, error) {
	if content, ok := l.contents[testID]; ok {
		return content, nil
	}
	return domain.TestContent{}, domain.NotFound("test")
}
