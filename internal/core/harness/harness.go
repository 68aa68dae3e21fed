// Package harness drives a rate limiter the way an outbound API client
// would: admit a batch, then make the calls. It backs the demo and stress
// commands and reports what was admitted and when.
package harness

import (
	"context"
	"sync"
	"time"

	"github.com/quotagate/quotagate/internal/core"
)

// Admitter is the limiter surface a run needs.
type Admitter interface {
	Admit(ctx context.Context, permits int) error
	Limit() int
	Window() time.Duration
}

// Call performs one outbound call after its permit was admitted.
type Call func(ctx context.Context, id int) error

// Recorder collects admissions reported by the limiter. It satisfies
// engine.Observer and is safe for concurrent use.
type Recorder struct {
	mu         sync.Mutex
	admissions []core.Admission
}

// Waiting is a no-op; waits are reflected in the admission's Waited field.
func (r *Recorder) Waiting(int, time.Duration) {}

// Admitted appends admission to the log.
func (r *Recorder) Admitted(admission core.Admission) {
	r.mu.Lock()
	r.admissions = append(r.admissions, admission)
	r.mu.Unlock()
}

// Admissions returns a copy of the log in arrival order.
func (r *Recorder) Admissions() []core.Admission {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Admission(nil), r.admissions...)
}

// DelayCall returns a Call that takes d to complete, standing in for a real
// API round trip.
func DelayCall(d time.Duration) Call {
	return func(ctx context.Context, _ int) error {
		return sleepContext(ctx, d)
	}
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

func finish(report *core.RunReport, recorder *Recorder, clock func() time.Time) {
	report.Duration = clock().Sub(report.StartedAt)
	report.Admissions = recorder.Admissions()
	report.Violations = core.VerifyWindow(report.Admissions, report.Limit, report.Window)
}
