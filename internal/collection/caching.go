package collection

import (
	"context"
	"time"

	"github.com/stwalsh4118/airwave/internal/cache"
	"github.com/stwalsh4118/airwave/internal/schedule"
)

// CachingResolver memoizes the chronological member list of each collection
// and derives shuffled orders locally, so one cache entry serves every seed.
type CachingResolver struct {
	next  Resolver
	cache cache.Cache
	ttl   time.Duration
}

// NewCachingResolver wraps next with a cache
func NewCachingResolver(next Resolver, c cache.Cache, ttl time.Duration) *CachingResolver {
	return &CachingResolver{next: next, cache: c, ttl: ttl}
}

func cacheKey(name string) string {
	return "collection:" + name
}

// ResolveCollection implements Resolver
func (r *CachingResolver) ResolveCollection(ctx context.Context, name string, order schedule.Order, seed int64) ([]MediaItem, error) {
	if items, ok := cache.GetJSON[[]MediaItem](ctx, r.cache, cacheKey(name)); ok {
		return Arrange(items, order, seed), nil
	}

	items, err := r.next.ResolveCollection(ctx, name, schedule.OrderChronological, 0)
	if err != nil {
		return nil, err
	}

	// Failing to cache is not fatal; the next call falls through again.
	_ = cache.SetJSON(ctx, r.cache, cacheKey(name), items, r.ttl)

	return Arrange(items, order, seed), nil
}

// Invalidate drops cached membership for the named collections
func (r *CachingResolver) Invalidate(ctx context.Context, names ...string) {
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = cacheKey(n)
	}
	r.cache.Delete(ctx, keys...)
}
