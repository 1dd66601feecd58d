package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/actuallystonmai/movie-recommender/internal/domain"
)

// Cache stores ranked recommendation lists keyed by (user, requested count).
type Cache struct {
	store Store
}

func NewCache(store Store) *Cache {
	return &Cache{store: store}
}

func buildKey(userID int64, limit int) string {
	return fmt.Sprintf("rec:user:%d:limit:%d", userID, limit)
}

func userPattern(userID int64) string {
	return fmt.Sprintf("rec:user:%d:limit:*", userID)
}

// Get recommendations from cache
func (c *Cache) Get(ctx context.Context, userID int64, limit int) ([]domain.ScoredRecommendation, bool, error) {
	key := buildKey(userID, limit)
	val, found, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get recommendations from cache: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	var recs []domain.ScoredRecommendation
	if err := json.Unmarshal(val, &recs); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal recommendations %s: %w", key, err)
	}
	return recs, true, nil
}

// Store recommendations in cache. Lists longer than limit are truncated.
func (c *Cache) Set(ctx context.Context, userID int64, limit int, recs []domain.ScoredRecommendation, ttl time.Duration) error {
	if len(recs) > limit {
		recs = recs[:limit]
	}
	val, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("failed to marshal recommendations: %w", err)
	}

	if err := c.store.Set(ctx, buildKey(userID, limit), val, ttl); err != nil {
		return fmt.Errorf("failed to set recommendations in cache: %w", err)
	}
	return nil
}

// Delete drops a single cached list.
func (c *Cache) Delete(ctx context.Context, userID int64, limit int) error {
	return c.store.Delete(ctx, buildKey(userID, limit))
}

// Clear user cache: used when feedback changes
func (c *Cache) ClearUserCache(ctx context.Context, userID int64) error {
	return c.store.DeleteMatching(ctx, userPattern(userID))
}

// ClearAll drops every cached list, used after a retrain.
func (c *Cache) ClearAll(ctx context.Context) error {
	return c.store.Clear(ctx)
}
