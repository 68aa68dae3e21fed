package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	gferrors "github.com/fulmenhq/gofulmen/errors"

	apperrors "github.com/quotagate/quotagate/internal/errors"
	"github.com/quotagate/quotagate/internal/metrics"
)

// Check and aggregate statuses.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusTimeout   = "timeout"
)

// ErrDegraded marks a check failure that leaves admissions working, such as
// a missing metrics exporter. Checkers wrap it with %w.
var ErrDegraded = errors.New("degraded")

// Scope selects which registered checks a health endpoint runs.
type Scope string

const (
	ScopeAll     Scope = "aggregate"
	ScopeLive    Scope = "live"
	ScopeReady   Scope = "ready"
	ScopeStartup Scope = "startup"
)

var scopeTimeouts = map[Scope]time.Duration{
	ScopeAll:     5 * time.Second,
	ScopeLive:    2 * time.Second,
	ScopeReady:   5 * time.Second,
	ScopeStartup: 3 * time.Second,
}

// HealthResponse is the body of every successful health response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Scope     Scope             `json:"scope"`
	Version   string            `json:"version,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthChecker is implemented by components that can report their health.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

type registeredCheck struct {
	name          string
	checker       HealthChecker
	readinessOnly bool
}

// HealthManager runs registered checks for the health endpoints.
// Readiness-only checks (shutdown draining) are skipped by the liveness and
// startup endpoints: a draining server is still alive.
type HealthManager struct {
	mu      sync.RWMutex
	checks  []registeredCheck
	version string
	clock   func() time.Time
}

// NewHealthManager creates a manager that reports version.
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{version: version, clock: time.Now}
}

// RegisterChecker adds a check run by every scope. Re-registering a name
// replaces the previous checker.
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.register(registeredCheck{name: name, checker: checker})
}

// RegisterReadinessChecker adds a check run only for the aggregate and
// readiness endpoints.
func (hm *HealthManager) RegisterReadinessChecker(name string, checker HealthChecker) {
	hm.register(registeredCheck{name: name, checker: checker, readinessOnly: true})
}

func (hm *HealthManager) register(check registeredCheck) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	for i := range hm.checks {
		if hm.checks[i].name == check.name {
			hm.checks[i] = check
			return
		}
	}
	hm.checks = append(hm.checks, check)
}

// Check runs the checks that apply to scope and returns the aggregate status
// with per-check results.
func (hm *HealthManager) Check(ctx context.Context, scope Scope) (string, map[string]string) {
	hm.mu.RLock()
	checks := make([]registeredCheck, 0, len(hm.checks))
	for _, check := range hm.checks {
		if check.readinessOnly && (scope == ScopeLive || scope == ScopeStartup) {
			continue
		}
		checks = append(checks, check)
	}
	hm.mu.RUnlock()

	results := make(map[string]string, len(checks))
	for _, check := range checks {
		if ctx.Err() != nil {
			results[check.name] = StatusTimeout
			continue
		}
		started := hm.clock()
		status := checkStatus(ctx, check.checker.CheckHealth(ctx))
		metrics.RecordHealthCheck(check.name, status, hm.clock().Sub(started))
		results[check.name] = status
	}
	return overallStatus(results), results
}

func checkStatus(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return StatusHealthy
	case errors.Is(err, ErrDegraded):
		return StatusDegraded
	case ctx.Err() != nil:
		return StatusTimeout
	default:
		return StatusUnhealthy
	}
}

func overallStatus(results map[string]string) string {
	status := StatusHealthy
	for _, result := range results {
		switch result {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded, StatusTimeout:
			status = StatusDegraded
		}
	}
	return status
}

// Handler serves the health endpoint for scope. An unhealthy result is a 503
// SERVICE_UNAVAILABLE envelope listing the failing checks; degraded still
// answers 200. Checks ignore request cancellation so readiness still
// reports after the server's base context is cancelled.
func (hm *HealthManager) Handler(scope Scope) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), scopeTimeouts[scope])
		defer cancel()

		status, checks := hm.Check(ctx, scope)
		if status == StatusUnhealthy {
			apperrors.RespondWithError(w, r, unhealthyEnvelope(scope, status, checks))
			return
		}

		writeJSON(w, http.StatusOK, HealthResponse{
			Status:    status,
			Scope:     scope,
			Version:   hm.version,
			Timestamp: hm.clock().UTC(),
			Checks:    checks,
		})
	}
}

func unhealthyEnvelope(scope Scope, status string, checks map[string]string) *gferrors.ErrorEnvelope {
	envelope := apperrors.NewServiceUnavailableError(string(scope) + " health check failed")

	details := map[string]interface{}{"scope": string(scope), "status": status}
	if len(checks) > 0 {
		details["checks"] = checks
	}
	envelope = envelope.WithDetails(details)

	var failing []string
	for name, result := range checks {
		if result != StatusHealthy {
			failing = append(failing, name)
		}
	}
	sort.Strings(failing)
	if len(failing) > 0 {
		if updated, err := envelope.WithContext(map[string]interface{}{"unhealthy_checks": failing}); err == nil {
			envelope = updated
		}
	}
	return envelope
}

var (
	globalHealthMu      sync.RWMutex
	globalHealthManager *HealthManager
)

// InitHealthManager installs the process-wide health manager.
func InitHealthManager(version string) {
	globalHealthMu.Lock()
	defer globalHealthMu.Unlock()
	globalHealthManager = NewHealthManager(version)
}

// GetHealthManager returns the process-wide health manager, or nil.
func GetHealthManager() *HealthManager {
	globalHealthMu.RLock()
	defer globalHealthMu.RUnlock()
	return globalHealthManager
}

// ScopeHandler serves scope from the process-wide manager, resolved per
// request so routes can be mounted before InitHealthManager runs.
func ScopeHandler(scope Scope) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hm := GetHealthManager()
		if hm == nil {
			apperrors.RespondWithError(w, r, unhealthyEnvelope(scope, "unknown", nil))
			return
		}
		hm.Handler(scope)(w, r)
	}
}
