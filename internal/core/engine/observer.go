package engine

import (
	"time"

	"github.com/quotagate/quotagate/internal/core"
)

// Observer receives limiter events. Calls happen outside the limiter lock and
// may arrive concurrently from different callers.
type Observer interface {
	// Waiting is called before the caller is suspended for wait.
	Waiting(permits int, wait time.Duration)
	// Admitted is called once a batch has been granted.
	Admitted(admission core.Admission)
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) Waiting(int, time.Duration) {}

func (NopObserver) Admitted(core.Admission) {}

// MultiObserver fans events out to every observer in order.
type MultiObserver []Observer

func (m MultiObserver) Waiting(permits int, wait time.Duration) {
	for _, o := range m {
		if o != nil {
			o.Waiting(permits, wait)
		}
	}
}

func (m MultiObserver) Admitted(admission core.Admission) {
	for _, o := range m {
		if o != nil {
			o.Admitted(admission)
		}
	}
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnWaiting  func(permits int, wait time.Duration)
	OnAdmitted func(admission core.Admission)
}

func (f ObserverFuncs) Waiting(permits int, wait time.Duration) {
	if f.OnWaiting != nil {
		f.OnWaiting(permits, wait)
	}
}

func (f ObserverFuncs) Admitted(admission core.Admission) {
	if f.OnAdmitted != nil {
		f.OnAdmitted(admission)
	}
}
