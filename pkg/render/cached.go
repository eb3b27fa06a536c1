package render

import (
	"context"
	"time"

	"github.com/matzehuels/modgraph/pkg/cache"
	"github.com/matzehuels/modgraph/pkg/observability"
)

// Cached wraps next with a cache lookup keyed by the hash of the source.
// Cache failures degrade to calling next; they never fail a render. Failed
// and cancelled renders are not stored.
func Cached(next Func, c cache.Cache, keyer cache.Keyer, opts cache.RenderKeyOpts, ttl time.Duration) Func {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if opts.Format == "" {
		opts.Format = "svg"
	}

	return func(ctx context.Context, source string) ([]byte, error) {
		key := keyer.RenderKey(cache.Hash([]byte(source)), opts)

		if data, hit, err := c.Get(ctx, key); err == nil && hit {
			observability.Cache().OnCacheHit(ctx, "render")
			return data, nil
		}
		observability.Cache().OnCacheMiss(ctx, "render")

		img, err := next(ctx, source)
		if err != nil {
			return nil, err
		}
		if ctx.Err() == nil {
			if err := c.Set(ctx, key, img, ttl); err == nil {
				observability.Cache().OnCacheSet(ctx, "render", len(img))
			}
		}
		return img, nil
	}
}
