package cache

import (
	"context"
	"time"
)

// Store is the key/value backend behind the recommendation cache. Pattern
// deletion is part of the contract so per-user invalidation does not depend
// on a secondary key index.
type Store interface {
	// Get returns found=false on a miss.
	Get(ctx context.Context, key string) (val []byte, found bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeleteMatching removes every key matching a glob pattern (*, ?, [..]).
	DeleteMatching(ctx context.Context, pattern string) error
	// Clear removes every key owned by this store.
	Clear(ctx context.Context) error
}
