package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quotagate/quotagate/internal/core"
	"github.com/quotagate/quotagate/internal/core/engine"
)

// Phase is one scripted step: its batches are admitted in order, each
// followed by one call per permit.
type Phase struct {
	Label   string
	Batches []int
}

// DefaultScript scales the classic quota-6 walkthrough to limit: half the
// quota at once, enough more to overflow the window, three single
// requests, then one batch larger than the quota.
func DefaultScript(limit int) []Phase {
	first := max(1, limit/2)
	second := min(limit, limit-first+1)
	return []Phase{
		{Label: fmt.Sprintf("%d together", first), Batches: []int{first}},
		{Label: fmt.Sprintf("%d more", second), Batches: []int{second}},
		{Label: "3 one by one", Batches: []int{1, 1, 1}},
		{Label: fmt.Sprintf("%d at once", limit+1), Batches: []int{limit + 1}},
	}
}

// Demo replays a script against one limiter.
type Demo struct {
	Limiter  Admitter
	Recorder *Recorder
	Script   []Phase
	Call     Call
	RunID    string
	Clock    func() time.Time

	// OnBatch is called before each batch is admitted.
	OnBatch func(phase string, permits int)
}

// Run executes the script. Oversized batches are reported as rejected and
// the run continues; any other admission or call error stops the run and
// returns the partial report.
func (d *Demo) Run(ctx context.Context) (*core.RunReport, error) {
	if d == nil || d.Limiter == nil {
		return nil, errors.New("demo limiter is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	clock := d.Clock
	if clock == nil {
		clock = time.Now
	}
	call := d.Call
	if call == nil {
		call = DelayCall(0)
	}
	script := d.Script
	if len(script) == 0 {
		script = DefaultScript(d.Limiter.Limit())
	}

	report := &core.RunReport{
		RunID:     d.RunID,
		Source:    "demo",
		Limit:     d.Limiter.Limit(),
		Window:    d.Limiter.Window(),
		StartedAt: clock(),
	}
	defer finish(report, d.Recorder, clock)

	callID := 0
	for _, phase := range script {
		step := core.Step{Label: phase.Label}
		started := clock()

		for _, permits := range phase.Batches {
			if d.OnBatch != nil {
				d.OnBatch(phase.Label, permits)
			}

			waitStart := clock()
			err := d.Limiter.Admit(ctx, permits)
			step.Waited += clock().Sub(waitStart)
			if errors.Is(err, engine.ErrInvalidArgument) {
				step.Failed++
				report.Rejected = append(report.Rejected, fmt.Sprintf("%d permits: %v", permits, err))
				continue
			}
			if err != nil {
				step.Elapsed = clock().Sub(started)
				report.Steps = append(report.Steps, step)
				return report, err
			}

			step.Batches++
			step.Requested += permits
			for range permits {
				callID++
				if err := call(ctx, callID); err != nil {
					step.Elapsed = clock().Sub(started)
					report.Steps = append(report.Steps, step)
					return report, fmt.Errorf("call %d: %w", callID, err)
				}
			}
		}

		step.Elapsed = clock().Sub(started)
		report.Steps = append(report.Steps, step)
	}

	return report, nil
}
