// Package redis holds the Redis-backed content cache and room registry.
package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/jasa1aw/eduBack/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ContentLoader fetches published test content from a backing store.
type ContentLoader interface {
	LoadTestContent(ctx context.Context, testID string) (domain.TestContent, error)
}

// TestCache caches test content as one JSON document per test:
// SET test:{testID}:content {json} EX ttl. Misses collapse through
// singleflight and fall back to the loader.
type TestCache struct {
	client *redis.Client
	loader ContentLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewTestCache(client *redis.Client, loader ContentLoader, ttl time.Duration) *TestCache {
	return &TestCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *TestCache) GetTestContent(ctx context.Context, testID string) (domain.TestContent, error) {
	key := c.key(testID)

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var content domain.TestContent
		if err := json.Unmarshal(raw, &content); err == nil {
			return content, nil
		}
		// Unreadable entries are dropped and reloaded.
		_ = c.client.Del(ctx, key).Err()
	}

	result, err, _ := c.sf.Do(testID, func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
			var content domain.TestContent
			if err := json.Unmarshal(raw, &content); err == nil {
				return content, nil
			}
		}

		content, err := c.loader.LoadTestContent(ctx, testID)
		if err != nil {
			return domain.TestContent{}, err
		}

		if raw, err := json.Marshal(content); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return content, nil
	})
	if err != nil {
		return domain.TestContent{}, err
	}
	return result.(domain.TestContent), nil
}

func (c *TestCache) key(testID string) string {
	return "test:" + testID + ":content"
}

func (c *TestCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
