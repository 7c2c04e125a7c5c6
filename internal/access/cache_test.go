package access

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*DecisionCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewDecisionCache(client, time.Minute), mr
}

func TestDecisionCachePutGet(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	_, found := cache.Get(ctx, 1, 1, nil)
	require.False(t, found)

	cache.Put(ctx, 1, 1, nil, true)
	verdict, found := cache.Get(ctx, 1, 1, nil)
	require.True(t, found)
	require.True(t, verdict)

	// Negative verdicts cache too.
	cache.Put(ctx, 1, 1, sectionPtr(305), false)
	verdict, found = cache.Get(ctx, 1, 1, sectionPtr(305))
	require.True(t, found)
	require.False(t, verdict)
}

func TestDecisionCacheSectionAndWildcardAreDistinct(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.Put(ctx, 1, 1, nil, true)
	_, found := cache.Get(ctx, 1, 1, sectionPtr(305))
	require.False(t, found, "a module-level verdict must not answer a section check")
}

func TestDecisionCacheInvalidateRoles(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.Put(ctx, 1, 1, nil, true)
	cache.Put(ctx, 2, 1, nil, true)

	require.NoError(t, cache.InvalidateRoles(ctx, 1))

	_, found := cache.Get(ctx, 1, 1, nil)
	require.False(t, found)
	verdict, found := cache.Get(ctx, 2, 1, nil)
	require.True(t, found)
	require.True(t, verdict, "other roles keep their cached verdicts")
}

func TestDecisionCacheExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	cache.Put(ctx, 1, 1, nil, true)
	mr.FastForward(2 * time.Minute)

	_, found := cache.Get(ctx, 1, 1, nil)
	require.False(t, found)
}

func TestDecisionCacheNilIsSafe(t *testing.T) {
	var cache *DecisionCache
	ctx := context.Background()

	_, found := cache.Get(ctx, 1, 1, nil)
	require.False(t, found)
	cache.Put(ctx, 1, 1, nil, true)
	require.NoError(t, cache.InvalidateRoles(ctx, 1))
}
