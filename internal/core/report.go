package core

import (
	"sort"
	"time"
)

// Step summarizes one scripted phase of a run, or one worker in a stress run.
type Step struct {
	Label     string        `json:"label" yaml:"label"`
	Batches   int           `json:"batches" yaml:"batches"`
	Requested int           `json:"requested" yaml:"requested"`
	Waited    time.Duration `json:"waited" yaml:"waited"`
	Elapsed   time.Duration `json:"elapsed" yaml:"elapsed"`
	Failed    int           `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// Violation marks a trailing window that held more permits than the limit.
type Violation struct {
	WindowEnd time.Time `json:"window_end" yaml:"window_end"`
	Permits   int       `json:"permits" yaml:"permits"`
}

// RunReport is the result of a demo or stress run against one limiter.
type RunReport struct {
	RunID      string        `json:"run_id" yaml:"run_id"`
	Source     string        `json:"source" yaml:"source"`
	Limit      int           `json:"limit" yaml:"limit"`
	Window     time.Duration `json:"window" yaml:"window"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	Steps      []Step        `json:"steps" yaml:"steps"`
	Admissions []Admission   `json:"admissions,omitempty" yaml:"admissions,omitempty"`
	Rejected   []string      `json:"rejected,omitempty" yaml:"rejected,omitempty"`
	Violations []Violation   `json:"violations,omitempty" yaml:"violations,omitempty"`
}

// TotalPermits sums the permits of every admission in the report.
func (r *RunReport) TotalPermits() int {
	total := 0
	for _, a := range r.Admissions {
		total += a.Permits
	}
	return total
}

// MaxWait is the longest single admission wait in the report.
func (r *RunReport) MaxWait() time.Duration {
	var longest time.Duration
	for _, a := range r.Admissions {
		if a.Waited > longest {
			longest = a.Waited
		}
	}
	return longest
}

// VerifyWindow checks every trailing window ending at an admission and
// returns those holding more than limit permits. An admission exactly one
// window old no longer counts.
func VerifyWindow(admissions []Admission, limit int, window time.Duration) []Violation {
	sorted := append([]Admission(nil), admissions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AdmittedAt.Before(sorted[j].AdmittedAt)
	})

	var violations []Violation
	start, total := 0, 0
	for i := 0; i < len(sorted); {
		end := sorted[i].AdmittedAt
		// Admissions sharing a timestamp land in the same window.
		for i < len(sorted) && sorted[i].AdmittedAt.Equal(end) {
			total += sorted[i].Permits
			i++
		}
		for start < i && !sorted[start].AdmittedAt.Add(window).After(end) {
			total -= sorted[start].Permits
			start++
		}
		if total > limit {
			violations = append(violations, Violation{WindowEnd: end, Permits: total})
		}
	}
	return violations
}
