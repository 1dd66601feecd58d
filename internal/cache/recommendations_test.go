package cache

import (
	"context"
	"testing"
	"time"

	"github.com/actuallystonmai/movie-recommender/internal/domain"
)

func sampleRecs(n int) []domain.ScoredRecommendation {
	year := 1999
	recs := make([]domain.ScoredRecommendation, n)
	for i := range recs {
		recs[i] = domain.ScoredRecommendation{ItemID: int64(i + 1), Score: float64(n - i), Title: "Movie", Genres: "Drama", Year: &year}
	}
	return recs
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewCache(NewMemoryStore())

	if _, found, err := c.Get(ctx, 1, 5); err != nil || found {
		t.Fatalf("expected miss, got found=%v err=%v", found, err)
	}

	if err := c.Set(ctx, 1, 5, sampleRecs(3), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, found, err := c.Get(ctx, 1, 5)
	if err != nil || !found {
		t.Fatalf("expected hit, got found=%v err=%v", found, err)
	}
	if len(got) != 3 || got[0].ItemID != 1 || *got[0].Year != 1999 {
		t.Errorf("unexpected cached value: %+v", got)
	}
}

func TestCacheSetTruncatesToLimit(t *testing.T) {
	ctx := context.Background()
	c := NewCache(NewMemoryStore())

	if err := c.Set(ctx, 1, 2, sampleRecs(5), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, _, _ := c.Get(ctx, 1, 2)
	if len(got) != 2 {
		t.Errorf("expected 2 entries, got %d", len(got))
	}
}

func TestClearUserCacheRemovesAllLimits(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c := NewCache(store)

	for _, limit := range []int{5, 10, 20} {
		_ = c.Set(ctx, 7, limit, sampleRecs(1), time.Minute)
	}
	_ = c.Set(ctx, 70, 5, sampleRecs(1), time.Minute)

	if err := c.ClearUserCache(ctx, 7); err != nil {
		t.Fatalf("clear: %v", err)
	}
	for _, limit := range []int{5, 10, 20} {
		if _, found, _ := c.Get(ctx, 7, limit); found {
			t.Errorf("limit %d still cached for user 7", limit)
		}
	}
	if _, found, _ := c.Get(ctx, 70, 5); !found {
		t.Error("user 70 should not be affected")
	}
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c := NewCache(store)
	_ = c.Set(ctx, 1, 5, sampleRecs(1), time.Minute)
	_ = c.Set(ctx, 2, 5, sampleRecs(1), time.Minute)

	if err := c.ClearAll(ctx); err != nil {
		t.Fatalf("clear all: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("expected empty store, got %d entries", store.Len())
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	_ = store.Set(ctx, "k", []byte("v"), time.Minute)
	if _, found, _ := store.Get(ctx, "k"); !found {
		t.Fatal("expected hit before expiry")
	}

	now = now.Add(2 * time.Minute)
	if _, found, _ := store.Get(ctx, "k"); found {
		t.Error("expected miss after expiry")
	}
}

func TestMemoryStoreConcurrentClear(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			_ = store.Set(ctx, buildKey(int64(i), 5), []byte("x"), time.Minute)
			_, _, _ = store.Get(ctx, buildKey(int64(i), 5))
		}
	}()
	for i := 0; i < 100; i++ {
		_ = store.Clear(ctx)
	}
	<-done
}
