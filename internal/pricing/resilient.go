package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"spendlens/internal/log"
)

// ErrCircuitOpen is returned without calling the source while the breaker is open.
var ErrCircuitOpen = errors.New("price lookup circuit breaker is open")

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

type ResilientConfig struct {
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// MaxAttempts includes the first call.
	MaxAttempts int
	// BaseBackoff doubles after each failed attempt up to MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// FailureThreshold consecutive failures open the breaker for OpenTimeout.
	FailureThreshold int
	OpenTimeout      time.Duration
}

func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		Timeout:          3 * time.Second,
		MaxAttempts:      3,
		BaseBackoff:      200 * time.Millisecond,
		MaxBackoff:       2 * time.Second,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// Resilient wraps a Lookup with per-attempt timeouts, bounded retries with
// exponential backoff, and a circuit breaker shared by all callers.
// ErrPriceUnknown is an answer and is returned without retrying.
type Resilient struct {
	next   Lookup
	config ResilientConfig
	logger *log.Logger

	mu          sync.Mutex
	state       int32
	failures    int
	lastFailure time.Time
	probing     bool

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewResilient(next Lookup, config ResilientConfig, logger *log.Logger) *Resilient {
	def := DefaultResilientConfig()
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.BaseBackoff <= 0 {
		config.BaseBackoff = def.BaseBackoff
	}
	if config.MaxBackoff < config.BaseBackoff {
		config.MaxBackoff = config.BaseBackoff
	}
	if config.FailureThreshold < 1 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = def.OpenTimeout
	}
	return &Resilient{
		next:   next,
		config: config,
		logger: logger.OrDefault().WithComponent(log.ComponentPricing),
		now:    time.Now,
		sleep:  sleepContext,
	}
}

func (r *Resilient) Lookup(ctx context.Context, vendor, category string) (Quote, error) {
	var lastErr error
	for attempt := 0; attempt < r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Quote{}, err
		}
		probe, ok := r.acquire()
		if !ok {
			return Quote{}, ErrCircuitOpen
		}

		quote, err := r.attempt(ctx, vendor, category)
		if err == nil || errors.Is(err, ErrPriceUnknown) {
			r.recordSuccess()
			return quote, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			if probe {
				r.releaseProbe()
			}
			return Quote{}, ctxErr
		}

		lastErr = err
		r.recordFailure()
		r.logger.LogFields(ctx, slog.LevelDebug, "Price lookup attempt failed", log.NewFields().
			WithVendor(vendor, category).
			WithOperation(log.OpLookup).
			With(log.FieldAttempt, attempt+1).
			WithError(err))

		if attempt+1 < r.config.MaxAttempts {
			if err := r.sleep(ctx, r.backoff(attempt)); err != nil {
				return Quote{}, err
			}
		}
	}
	return Quote{}, fmt.Errorf("lookup %s after %d attempts: %w", vendor, r.config.MaxAttempts, lastErr)
}

func (r *Resilient) attempt(ctx context.Context, vendor, category string) (Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()
	return r.next.Lookup(ctx, vendor, category)
}

// backoff returns the wait after the given zero-based failed attempt.
func (r *Resilient) backoff(attempt int) time.Duration {
	d := r.config.BaseBackoff
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= r.config.MaxBackoff {
			return r.config.MaxBackoff
		}
	}
	return d
}

// acquire reports whether a call may go through. An open breaker whose
// timeout has elapsed moves to half-open; while half-open exactly one caller
// holds the trial call and everyone else is refused until it settles.
func (r *Resilient) acquire() (probe, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case StateClosed:
		return false, true
	case StateOpen:
		if r.now().Sub(r.lastFailure) <= r.config.OpenTimeout {
			return false, false
		}
		r.state = StateHalfOpen
	}
	if r.probing {
		return false, false
	}
	r.probing = true
	return true, true
}

// releaseProbe frees the trial slot when the trial ended without a verdict.
func (r *Resilient) releaseProbe() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probing = false
}

func (r *Resilient) recordSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = 0
	r.probing = false
	r.state = StateClosed
}

func (r *Resilient) recordFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
	r.probing = false
	r.lastFailure = r.now()
	if r.state == StateHalfOpen || r.failures >= r.config.FailureThreshold {
		if r.state != StateOpen {
			r.logger.Warn("Price lookup circuit breaker opened", log.FieldAttempt, r.failures)
		}
		r.state = StateOpen
	}
}

// State returns the breaker state.
func (r *Resilient) State() int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
