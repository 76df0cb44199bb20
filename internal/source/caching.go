package source

import (
	"context"
	"time"

	"github.com/stwalsh4118/airwave/internal/cache"
	"github.com/stwalsh4118/airwave/internal/metrics"
	"github.com/stwalsh4118/airwave/internal/models"
)

// expirySlack is subtracted from a stream's expiry so cached URLs are never
// handed out just before they stop working
const expirySlack = 5 * time.Minute

// Caching memoizes resolutions until the stream URL expires or ttl passes
type Caching struct {
	next  Resolver
	cache cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewCaching wraps next with a cache
func NewCaching(next Resolver, c cache.Cache, ttl time.Duration) *Caching {
	return &Caching{next: next, cache: c, ttl: ttl, now: time.Now}
}

func sourceKey(kind models.SourceKind, sourceURL string) string {
	return "source:" + string(kind) + ":" + sourceURL
}

// Resolve implements Resolver
func (c *Caching) Resolve(ctx context.Context, kind models.SourceKind, sourceURL string) (*Resolved, error) {
	key := sourceKey(kind, sourceURL)
	if res, ok := cache.GetJSON[*Resolved](ctx, c.cache, key); ok && res != nil {
		if res.ExpiresAt.IsZero() || c.now().Before(res.ExpiresAt.Add(-expirySlack)) {
			metrics.RecordSourceResolution(string(kind), "cached", 0)
			return res, nil
		}
	}

	res, err := c.next.Resolve(ctx, kind, sourceURL)
	if err != nil {
		return nil, err
	}

	ttl := c.ttl
	if !res.ExpiresAt.IsZero() {
		until := res.ExpiresAt.Sub(c.now()) - expirySlack
		if until <= 0 {
			return res, nil
		}
		if ttl <= 0 || until < ttl {
			ttl = until
		}
	}
	_ = cache.SetJSON(ctx, c.cache, key, res, ttl)
	return res, nil
}

// Invalidate drops a cached resolution
func (c *Caching) Invalidate(ctx context.Context, kind models.SourceKind, sourceURL string) {
	c.cache.Delete(ctx, sourceKey(kind, sourceURL))
}
