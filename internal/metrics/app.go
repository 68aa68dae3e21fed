package metrics

import (
	"time"

	"github.com/quotagate/quotagate/internal/observability"
)

// Process and run metric names.
const (
	RunsTotal           = "quotagate_runs_total"
	ActiveWaiters       = "quotagate_active_waiters"
	HealthCheckTotal    = "quotagate_health_check_total"
	HealthCheckDuration = "quotagate_health_check_duration_ms"
	ServerStartTime     = "quotagate_server_start_time_seconds"
)

// RecordRun counts a finished demo or stress run. A run that overshot a
// window counts as a failure.
func RecordRun(source string, ok bool) {
	status := "success"
	if !ok {
		status = "failure"
	}
	counter(RunsTotal, map[string]string{"source": source, "status": status})
}

// SetActiveWaiters reports admit requests currently blocked in the limiter.
func SetActiveWaiters(count int64) {
	gauge(ActiveWaiters, float64(count), nil)
}

// RecordHealthCheck records one check run with its resulting status
// (healthy, degraded, unhealthy or timeout).
func RecordHealthCheck(check, status string, duration time.Duration) {
	counter(HealthCheckTotal, map[string]string{"check": check, "status": status})
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Histogram(HealthCheckDuration, duration, map[string]string{"check": check})
	}
}

// SetServerStartTime records when serve started, as Unix seconds.
func SetServerStartTime(unix int64) {
	gauge(ServerStartTime, float64(unix), nil)
}

func counter(name string, tags map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Counter(name, 1, tags)
	}
}

func gauge(name string, value float64, tags map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Gauge(name, value, tags)
	}
}
