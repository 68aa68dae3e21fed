package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quotagate/quotagate/internal/core"
)

// DefaultWindow is the trailing window used when none is configured.
const DefaultWindow = time.Minute

// RateLimiter admits batches of permits so that no trailing window ever holds
// more than the configured quota. It is safe for concurrent use.
type RateLimiter struct {
	limit  int
	window time.Duration

	clock    func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	observer Observer

	mu     sync.Mutex
	issued window
}

// Option customizes a RateLimiter.
type Option func(*RateLimiter)

// WithClock replaces the wall clock.
func WithClock(clock func() time.Time) Option {
	return func(r *RateLimiter) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithSleep replaces the suspend primitive. The function must return a
// non-nil error when ctx ends before d elapses.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *RateLimiter) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// WithObserver registers an observer for wait and admission events.
func WithObserver(observer Observer) Option {
	return func(r *RateLimiter) {
		if observer != nil {
			r.observer = observer
		}
	}
}

// New creates a limiter allowing limit permits per window. A zero window
// selects DefaultWindow.
func New(limit int, window time.Duration, opts ...Option) (*RateLimiter, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: quota must be positive, got %d", ErrInvalidConfiguration, limit)
	}
	if window < 0 {
		return nil, fmt.Errorf("%w: window must not be negative, got %s", ErrInvalidConfiguration, window)
	}
	if window == 0 {
		window = DefaultWindow
	}

	r := &RateLimiter{
		limit:    limit,
		window:   window,
		clock:    time.Now,
		sleep:    sleepContext,
		observer: NopObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Limit returns the quota.
func (r *RateLimiter) Limit() int { return r.limit }

// Window returns the trailing window duration.
func (r *RateLimiter) Window() time.Duration { return r.window }

// Admit blocks until permits more units fit in the trailing window, records
// them, and returns. It fails fast with ErrInvalidArgument when the batch can
// never fit and with ErrCancelled when ctx ends first.
func (r *RateLimiter) Admit(ctx context.Context, permits int) error {
	if permits <= 0 || permits > r.limit {
		return fmt.Errorf("%w: requested %d permits, quota is %d", ErrInvalidArgument, permits, r.limit)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return cancelled(ctx, err)
	}

	var waited time.Duration
	for {
		r.mu.Lock()
		now := r.clock()
		r.issued.prune(now, r.window)
		if r.issued.total+permits <= r.limit {
			r.issued.push(entry{at: now, permits: permits})
			r.mu.Unlock()

			r.observer.Admitted(core.Admission{Permits: permits, AdmittedAt: now, Waited: waited})
			return nil
		}
		wait := r.waitLocked(now, permits)
		r.mu.Unlock()

		r.observer.Waiting(permits, wait)
		if err := r.sleep(ctx, wait); err != nil {
			return cancelled(ctx, err)
		}
		waited += wait
	}
}

// waitLocked returns how long until enough of the oldest permits expire for
// the batch to fit. Callers hold r.mu.
func (r *RateLimiter) waitLocked(now time.Time, permits int) time.Duration {
	excess := r.issued.total + permits - r.limit
	oldest, ok := r.issued.releaseAt(excess)
	if !ok {
		return 0
	}
	wait := oldest.Add(r.window).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// Usage reports current capacity after pruning expired entries.
func (r *RateLimiter) Usage() core.Usage {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	r.issued.prune(now, r.window)

	usage := core.Usage{
		Limit:     r.limit,
		Window:    r.window,
		InUse:     r.issued.total,
		Available: r.limit - r.issued.total,
		Entries:   r.issued.len(),
	}
	if r.issued.len() > 0 {
		usage.NextExpiry = r.issued.front().at.Add(r.window).Sub(now)
	}
	return usage
}

func cancelled(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); cause != nil {
		err = cause
	}
	return fmt.Errorf("%w: %w", ErrCancelled, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
