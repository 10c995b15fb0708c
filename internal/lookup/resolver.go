package lookup

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Resolver memoizes author lookups per title. Repeated titles are answered
// from the cache without touching the API or the throttle, so only real
// requests pay the pacing cost.
type Resolver struct {
	client   AuthorClient
	throttle *Throttle
	cache    map[string]string
	log      *zap.Logger
}

// NewResolver creates a resolver over the given client, spacing API calls by
// interval.
func NewResolver(client AuthorClient, interval time.Duration, log *zap.Logger) *Resolver {
	return &Resolver{
		client:   client,
		throttle: NewThrottle(interval),
		cache:    make(map[string]string),
		log:      log,
	}
}

// Resolve returns the author names for a title. Lookup failures degrade to
// the AuthorLookupError sentinel, which is cached like any other answer; the
// only error returned is context cancellation.
func (r *Resolver) Resolve(ctx context.Context, title string) (string, error) {
	if authors, ok := r.cache[title]; ok {
		return authors, nil
	}

	if err := r.throttle.Wait(ctx); err != nil {
		return "", err
	}

	authors, err := r.client.AuthorsByTitle(ctx, title)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		r.log.Warn("author lookup failed",
			zap.String("title", title),
			zap.Error(err))
		authors = AuthorLookupError
	}

	r.cache[title] = authors
	return authors, nil
}

// CacheSize reports how many distinct titles have been resolved.
func (r *Resolver) CacheSize() int {
	return len(r.cache)
}
