package pricing

import (
	"context"
	"errors"
	"time"

	"spendlens/internal/cache"
)

type cachedAnswer struct {
	quote   Quote
	unknown bool
}

// Cached remembers answers from the wrapped Lookup, including ErrPriceUnknown.
// Failures are never cached.
type Cached struct {
	next  Lookup
	store *cache.LRUCache[cachedAnswer]
}

// NewCached keeps up to size answers for ttl.
func NewCached(next Lookup, size int, ttl time.Duration) *Cached {
	return &Cached{next: next, store: cache.NewLRUCache[cachedAnswer](size, ttl)}
}

// Store exposes the underlying cache so a cache.Janitor can sweep it.
func (c *Cached) Store() cache.Cleaner {
	return c.store
}

func (c *Cached) Stats() cache.Stats {
	return c.store.Stats()
}

func (c *Cached) Lookup(ctx context.Context, vendor, category string) (Quote, error) {
	key := Key(vendor, category)
	if a, ok := c.store.Get(key); ok {
		if a.unknown {
			return Quote{}, ErrPriceUnknown
		}
		return a.quote, nil
	}

	quote, err := c.next.Lookup(ctx, vendor, category)
	switch {
	case err == nil:
		c.store.Set(key, cachedAnswer{quote: quote})
	case errors.Is(err, ErrPriceUnknown):
		c.store.Set(key, cachedAnswer{unknown: true})
	}
	return quote, err
}
