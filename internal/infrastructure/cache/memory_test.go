package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealscout/backend/internal/domain"
)

// fakeClock is a manually advanced time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(t *testing.T) (*MemoryCache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(Config{})
	c.now = clock.Now
	t.Cleanup(c.Close)
	return c, clock
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	t.Run("string", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "k", "value", time.Minute))
		got, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "value", got)
	})

	t.Run("deal result is normalized to generic JSON", func(t *testing.T) {
		result := &domain.DealResult{
			MatchFound: true,
			Reference:  domain.ReferenceProduct{Title: "Brand X Widget", Price: 10},
			Deals: []domain.ScoredOffer{{
				CandidateOffer: domain.CandidateOffer{Title: "Brand X Widget", Price: 7, Merchant: "Shop"},
				TextSimilarity: 100,
			}},
			Source: "search",
		}
		require.NoError(t, c.Set(ctx, "deals:brand x widget:1000", result, time.Minute))

		got, err := c.Get(ctx, "deals:brand x widget:1000")
		require.NoError(t, err)

		m, ok := got.(map[string]interface{})
		require.True(t, ok, "got %T", got)
		assert.Equal(t, true, m["match_found"])
		deals, ok := m["best_deals"].([]interface{})
		require.True(t, ok)
		require.Len(t, deals, 1)
		assert.Equal(t, 7.0, deals[0].(map[string]interface{})["price"])
	})

	t.Run("unmarshalable value", func(t *testing.T) {
		err := c.Set(ctx, "bad", make(chan int), time.Minute)
		assert.Error(t, err)
		_, err = c.Get(ctx, "bad")
		assert.True(t, errors.Is(err, domain.ErrCacheMiss))
	})
}

func TestMemoryCache_Expiry(t *testing.T) {
	c, clock := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "deals:a:100", "a", 15*time.Minute))

	clock.Advance(14 * time.Minute)
	exists, err := c.Exists(ctx, "deals:a:100")
	require.NoError(t, err)
	assert.True(t, exists)

	clock.Advance(2 * time.Minute)
	exists, err = c.Exists(ctx, "deals:a:100")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = c.Get(ctx, "deals:a:100")
	assert.Equal(t, domain.ErrCacheMiss, err)

	// Expired entries linger until removed
	assert.Equal(t, 1, c.Size())
	assert.Equal(t, 1, c.removeExpired())
	assert.Equal(t, 0, c.Size())
}

func TestMemoryCache_Get_CacheMiss(t *testing.T) {
	c, _ := newTestCache(t)

	_, err := c.Get(context.Background(), "non-existent-key")
	if err != domain.ErrCacheMiss {
		t.Errorf("Get() error = %v, want %v", err, domain.ErrCacheMiss)
	}
}

func TestMemoryCache_DeleteAndClear(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("k%d", i), i, time.Minute))
	}
	assert.Equal(t, 5, c.Size())

	require.NoError(t, c.Delete(ctx, "k0"))
	assert.Equal(t, 4, c.Size())
	_, err := c.Get(ctx, "k0")
	assert.Equal(t, domain.ErrCacheMiss, err)

	c.Clear()
	assert.Equal(t, 0, c.Size())
	_, err = c.Get(ctx, "k1")
	assert.Equal(t, domain.ErrCacheMiss, err)
}

func TestMemoryCache_SweeperEvicts(t *testing.T) {
	c := NewMemoryCache(Config{CleanupInterval: 5 * time.Millisecond})
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", "v", time.Millisecond))
	require.NoError(t, c.Set(ctx, "long", "v", time.Hour))

	assert.Eventually(t, func() bool { return c.Size() == 1 }, time.Second, 5*time.Millisecond)

	exists, _ := c.Exists(ctx, "long")
	assert.True(t, exists)
}

func TestMemoryCache_CloseIsIdempotent(t *testing.T) {
	c := NewMemoryCache(Config{})
	c.Close()
	c.Close()

	// Still usable after Close
	require.NoError(t, c.Set(context.Background(), "k", 1, time.Minute))
	got, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)
}

func TestMemoryCache_Concurrent(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", id)
			if err := c.Set(ctx, key, id, time.Minute); err != nil {
				t.Errorf("Concurrent Set() error = %v", err)
			}
			if _, err := c.Get(ctx, key); err != nil {
				t.Errorf("Concurrent Get() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, c.Size())
}
