// Package cache holds small in-process caches with expiry.
package cache

import (
	"context"
	"log/slog"
	"time"

	"spendlens/internal/log"
)

// Cache is a keyed store of values that may expire.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is implemented by caches that can drop expired entries on demand.
type Cleaner interface {
	CleanExpired() int
}

// Janitor periodically sweeps registered caches until its context ends.
type Janitor struct {
	caches []Cleaner
	logger *log.Logger
	done   chan struct{}
}

func NewJanitor(logger *log.Logger, caches ...Cleaner) *Janitor {
	return &Janitor{
		caches: caches,
		logger: logger.OrDefault().WithComponent(log.ComponentCache),
		done:   make(chan struct{}),
	}
}

// Run sweeps every interval and returns when ctx is cancelled.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) {
	defer close(j.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := j.Sweep(); n > 0 {
				j.logger.LogFields(ctx, slog.LevelDebug, "Expired cache entries removed", log.NewFields().
					With("removed", n))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Sweep cleans all caches once and returns how many entries were removed.
func (j *Janitor) Sweep() int {
	total := 0
	for _, c := range j.caches {
		total += c.CleanExpired()
	}
	return total
}

// Done is closed after Run returns.
func (j *Janitor) Done() <-chan struct{} {
	return j.done
}
