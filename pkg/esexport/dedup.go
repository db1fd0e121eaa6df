package esexport

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupCache records (index, documentID) pairs that have already been
// shipped, so a redelivered event from an at-least-once producer doesn't
// get re-sent. This is best-effort: a cache miss during a race simply
// means the document is sent again, which Elasticsearch's own _id-keyed
// indexing makes idempotent anyway.
type DedupCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewDedupCache wraps an existing Redis client. A zero or negative ttl
// defaults to 10 minutes.
func NewDedupCache(rdb *redis.Client, ttl time.Duration) *DedupCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &DedupCache{rdb: rdb, ttl: ttl}
}

// Seen reports whether (index, id) was marked within the TTL window.
func (c *DedupCache) Seen(ctx context.Context, index, id string) (bool, error) {
	n, err := c.rdb.Exists(ctx, dedupKey(index, id)).Result()
	if err != nil {
		return false, fmt.Errorf("dedup exists: %w", err)
	}
	return n > 0, nil
}

// Mark records (index, id) as sent.
func (c *DedupCache) Mark(ctx context.Context, index, id string) error {
	if err := c.rdb.Set(ctx, dedupKey(index, id), 1, c.ttl).Err(); err != nil {
		return fmt.Errorf("dedup set: %w", err)
	}
	return nil
}

func dedupKey(index, id string) string {
	return "esexport:dedup:" + index + ":" + id
}
