package metrics

import (
	"strconv"
	"time"

	"github.com/quotagate/quotagate/internal/core"
	"github.com/quotagate/quotagate/internal/observability"
)

// Limiter metric names
const (
	LimiterAdmissionsTotal = "limiter_admissions_total"
	LimiterPermitsTotal    = "limiter_permits_total"
	LimiterWaitsTotal      = "limiter_waits_total"
	LimiterWaitDuration    = "limiter_wait_duration_ms"
	LimiterAdmitLatency    = "limiter_admit_latency_ms"
	LimiterPermitsInUse    = "limiter_permits_in_use"
	LimiterRejectionsTotal = "limiter_rejections_total"
)

// LimiterObserver emits telemetry for limiter events. It satisfies
// engine.Observer. The source label distinguishes callers (serve, demo, stress).
type LimiterObserver struct {
	Source string
}

// Waiting records a computed wait before the caller is suspended.
func (o LimiterObserver) Waiting(permits int, wait time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}
	labels := map[string]string{
		"source":  o.source(),
		"permits": strconv.Itoa(permits),
	}
	_ = observability.TelemetrySystem.Counter(LimiterWaitsTotal, 1, labels)
	_ = observability.TelemetrySystem.Histogram(LimiterWaitDuration, wait, map[string]string{"source": o.source()})
}

// Admitted records a granted batch.
func (o LimiterObserver) Admitted(admission core.Admission) {
	if observability.TelemetrySystem == nil {
		return
	}
	labels := map[string]string{"source": o.source()}
	_ = observability.TelemetrySystem.Counter(LimiterAdmissionsTotal, 1, labels)
	_ = observability.TelemetrySystem.Counter(LimiterPermitsTotal, float64(admission.Permits), labels)
	_ = observability.TelemetrySystem.Histogram(LimiterAdmitLatency, admission.Waited, labels)
}

// SetPermitsInUse records the current window usage.
func SetPermitsInUse(usage core.Usage) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			LimiterPermitsInUse,
			float64(usage.InUse),
			map[string]string{"limit": strconv.Itoa(usage.Limit)},
		)
	}
}

// RecordRejection records an admission that failed with the given reason
// (invalid_argument, cancelled, deadline_exceeded).
func RecordRejection(reason string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			LimiterRejectionsTotal,
			1,
			map[string]string{"reason": reason},
		)
	}
}

func (o LimiterObserver) source() string {
	if o.Source == "" {
		return "unknown"
	}
	return o.Source
}
