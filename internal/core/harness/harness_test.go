package harness

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quotagate/quotagate/internal/core/engine"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newManualLimiter(t *testing.T, limit int, window time.Duration) (*engine.RateLimiter, *manualClock, *Recorder) {
	t.Helper()
	clk := &manualClock{now: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)}
	rec := &Recorder{}
	limiter, err := engine.New(limit, window,
		engine.WithClock(clk.Now),
		engine.WithSleep(func(ctx context.Context, d time.Duration) error {
			clk.Advance(d)
			return ctx.Err()
		}),
		engine.WithObserver(rec),
	)
	require.NoError(t, err)
	return limiter, clk, rec
}

func TestDefaultScript(t *testing.T) {
	script := DefaultScript(6)
	require.Len(t, script, 4)
	require.Equal(t, []int{3}, script[0].Batches)
	require.Equal(t, []int{4}, script[1].Batches)
	require.Equal(t, []int{1, 1, 1}, script[2].Batches)
	require.Equal(t, []int{7}, script[3].Batches)

	tiny := DefaultScript(1)
	require.Equal(t, []int{1}, tiny[0].Batches)
	require.Equal(t, []int{1}, tiny[1].Batches)
}

func TestDemoReplaysScenario(t *testing.T) {
	limiter, clk, rec := newManualLimiter(t, 6, time.Minute)

	var batches []int
	demo := &Demo{
		Limiter:  limiter,
		Recorder: rec,
		RunID:    "run-1",
		Clock:    clk.Now,
		Call: func(ctx context.Context, id int) error {
			clk.Advance(100 * time.Millisecond)
			return nil
		},
		OnBatch: func(_ string, permits int) { batches = append(batches, permits) },
	}

	report, err := demo.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int{3, 4, 1, 1, 1, 7}, batches)

	require.Len(t, report.Steps, 4)
	require.Zero(t, report.Steps[0].Waited, "3 permits fit immediately")
	require.Equal(t, 59700*time.Millisecond, report.Steps[1].Waited, "4 more wait for the first batch to expire")
	require.Equal(t, 59400*time.Millisecond, report.Steps[2].Waited, "third single waits for the 4-permit batch")
	require.Equal(t, 1, report.Steps[3].Failed)
	require.Len(t, report.Rejected, 1)

	require.Len(t, report.Admissions, 5)
	require.Equal(t, 10, report.TotalPermits())
	require.Empty(t, report.Violations)
	require.Equal(t, "demo", report.Source)
	require.Equal(t, 120100*time.Millisecond, report.Duration)
}

func TestDemoStopsOnCancellation(t *testing.T) {
	limiter, err := engine.New(2, time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	report, err := (&Demo{Limiter: limiter, Script: []Phase{{Label: "fill", Batches: []int{2, 1}}}}).Run(ctx)
	require.ErrorIs(t, err, engine.ErrCancelled)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, report.Steps, 1)
	require.Equal(t, 1, report.Steps[0].Batches)
}

func TestDemoRequiresLimiter(t *testing.T) {
	_, err := (&Demo{}).Run(context.Background())
	require.Error(t, err)
}

func TestStressNeverOvershoots(t *testing.T) {
	if testing.Short() {
		t.Skip("real-clock stress run")
	}

	rec := &Recorder{}
	limiter, err := engine.New(4, 30*time.Millisecond, engine.WithObserver(rec))
	require.NoError(t, err)

	stress := &Stress{
		Limiter:   limiter,
		Recorder:  rec,
		Workers:   6,
		Rounds:    5,
		MaxBatch:  3,
		MaxJitter: 2 * time.Millisecond,
		Seed:      42,
	}
	report, err := stress.Run(context.Background())
	require.NoError(t, err)

	batches := 0
	for _, step := range report.Steps {
		batches += step.Batches
	}
	require.Equal(t, 30, batches)
	require.Len(t, report.Admissions, 30)
	require.Empty(t, report.Violations)
}

func TestStressValidatesShape(t *testing.T) {
	limiter, err := engine.New(4, time.Second)
	require.NoError(t, err)

	_, err = (&Stress{Limiter: limiter, Workers: 0, Rounds: 1}).Run(context.Background())
	require.Error(t, err)
}

func TestStressReportsCancellation(t *testing.T) {
	limiter, err := engine.New(1, time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	report, err := (&Stress{Limiter: limiter, Workers: 2, Rounds: 3, MaxBatch: 1}).Run(ctx)
	require.ErrorIs(t, err, engine.ErrCancelled)
	require.NotNil(t, report)
}
