package harness

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/quotagate/quotagate/internal/core"
)

// Stress runs concurrent workers with random batch sizes and jitter
// against one limiter.
type Stress struct {
	Limiter   Admitter
	Recorder  *Recorder
	Workers   int
	Rounds    int
	MaxBatch  int
	MaxJitter time.Duration
	Seed      int64
	RunID     string
	Clock     func() time.Time
}

// Run starts every worker and waits for all of them. The first worker error
// cancels the rest; the partial report is returned with that error.
func (s *Stress) Run(ctx context.Context) (*core.RunReport, error) {
	if s == nil || s.Limiter == nil {
		return nil, errors.New("stress limiter is not configured")
	}
	if s.Workers <= 0 || s.Rounds <= 0 {
		return nil, fmt.Errorf("workers and rounds must be positive, got %d and %d", s.Workers, s.Rounds)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	clock := s.Clock
	if clock == nil {
		clock = time.Now
	}
	maxBatch := min(max(1, s.MaxBatch), s.Limiter.Limit())
	seed := s.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	report := &core.RunReport{
		RunID:     s.RunID,
		Source:    "stress",
		Limit:     s.Limiter.Limit(),
		Window:    s.Limiter.Window(),
		StartedAt: clock(),
		Steps:     make([]core.Step, s.Workers),
	}
	defer finish(report, s.Recorder, clock)

	p := pool.New().
		WithMaxGoroutines(s.Workers).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()

	for w := range s.Workers {
		step := &report.Steps[w]
		step.Label = fmt.Sprintf("worker %d", w+1)
		rng := rand.New(rand.NewSource(seed + int64(w)))

		p.Go(func(ctx context.Context) error {
			started := clock()
			defer func() { step.Elapsed = clock().Sub(started) }()

			for range s.Rounds {
				if s.MaxJitter > 0 {
					if err := sleepContext(ctx, time.Duration(rng.Int63n(int64(s.MaxJitter)))); err != nil {
						return err
					}
				}

				permits := 1 + rng.Intn(maxBatch)
				waitStart := clock()
				if err := s.Limiter.Admit(ctx, permits); err != nil {
					step.Failed++
					return fmt.Errorf("%s: %w", step.Label, err)
				}
				step.Waited += clock().Sub(waitStart)
				step.Batches++
				step.Requested += permits
			}
			return nil
		})
	}

	return report, p.Wait()
}
