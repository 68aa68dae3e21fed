package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/quotagate/quotagate/internal/errors"
	"github.com/quotagate/quotagate/internal/observability"
)

func serveHealth(hm *HealthManager, scope Scope) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	hm.Handler(scope)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	return rec
}

func decodeHealth(t *testing.T, rec *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	return resp
}

func decodeUnhealthy(t *testing.T, rec *httptest.ResponseRecorder) apperrors.HTTPErrorDetail {
	t.Helper()
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d: %s", rec.Code, rec.Body.String())
	}
	var body apperrors.HTTPErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if body.Error.Code != "SERVICE_UNAVAILABLE" {
		t.Fatalf("expected SERVICE_UNAVAILABLE, got %s", body.Error.Code)
	}
	return body.Error
}

func withoutTelemetry(t *testing.T) {
	t.Helper()
	originalSystem, originalExporter := observability.TelemetrySystem, observability.PrometheusExporter
	t.Cleanup(func() {
		observability.TelemetrySystem, observability.PrometheusExporter = originalSystem, originalExporter
	})
	observability.TelemetrySystem, observability.PrometheusExporter = nil, nil
}

func TestHealthReportsLimiterState(t *testing.T) {
	hm := NewHealthManager("1.2.3")
	hm.RegisterChecker("limiter", NewLimiterHandlers(&stubLimiter{}, 0))

	resp := decodeHealth(t, serveHealth(hm, ScopeAll))
	if resp.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %s", resp.Status)
	}
	if resp.Version != "1.2.3" || resp.Scope != ScopeAll {
		t.Fatalf("unexpected response metadata: %+v", resp)
	}
	if resp.Checks["limiter"] != StatusHealthy {
		t.Fatalf("expected limiter check healthy, got %q", resp.Checks["limiter"])
	}

	hm.RegisterChecker("limiter", NewLimiterHandlers(nil, 0))
	detail := decodeUnhealthy(t, serveHealth(hm, ScopeReady))
	checks, ok := detail.Details["checks"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected checks in details, got %#v", detail.Details)
	}
	if checks["limiter"] != StatusUnhealthy {
		t.Fatalf("expected limiter unhealthy, got %v", checks["limiter"])
	}
	if detail.Details["scope"] != string(ScopeReady) {
		t.Fatalf("expected ready scope in details, got %v", detail.Details["scope"])
	}
}

func TestHealthShutdownDrainsReadinessOnly(t *testing.T) {
	base, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	hm := NewHealthManager("dev")
	hm.RegisterChecker("limiter", NewLimiterHandlers(&stubLimiter{}, 0))
	hm.RegisterReadinessChecker("shutdown", ShutdownChecker{Base: base})

	if resp := decodeHealth(t, serveHealth(hm, ScopeReady)); resp.Checks["shutdown"] != StatusHealthy {
		t.Fatalf("expected shutdown check healthy before cancel, got %+v", resp.Checks)
	}

	cancelBase()

	decodeUnhealthy(t, serveHealth(hm, ScopeReady))
	decodeUnhealthy(t, serveHealth(hm, ScopeAll))

	for _, scope := range []Scope{ScopeLive, ScopeStartup} {
		resp := decodeHealth(t, serveHealth(hm, scope))
		if _, ran := resp.Checks["shutdown"]; ran {
			t.Fatalf("%s must not run the shutdown check", scope)
		}
		if resp.Status != StatusHealthy {
			t.Fatalf("expected %s healthy while draining, got %s", scope, resp.Status)
		}
	}
}

func TestHealthTelemetryDegradesWithoutFailing(t *testing.T) {
	withoutTelemetry(t)

	hm := NewHealthManager("dev")
	hm.RegisterChecker("limiter", NewLimiterHandlers(&stubLimiter{}, 0))
	hm.RegisterChecker("telemetry", TelemetryChecker{})

	resp := decodeHealth(t, serveHealth(hm, ScopeAll))
	if resp.Status != StatusDegraded {
		t.Fatalf("expected degraded, got %s", resp.Status)
	}
	if resp.Checks["telemetry"] != StatusDegraded || resp.Checks["limiter"] != StatusHealthy {
		t.Fatalf("unexpected checks: %+v", resp.Checks)
	}
}

func TestHealthCheckAfterDeadlineTimesOut(t *testing.T) {
	hm := NewHealthManager("dev")
	hm.RegisterChecker("limiter", NewLimiterHandlers(&stubLimiter{}, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status, checks := hm.Check(ctx, ScopeAll)
	if status != StatusDegraded || checks["limiter"] != StatusTimeout {
		t.Fatalf("expected degraded with limiter timeout, got %s %+v", status, checks)
	}
}

func TestScopeHandlerWithoutManager(t *testing.T) {
	globalHealthMu.Lock()
	original := globalHealthManager
	globalHealthManager = nil
	globalHealthMu.Unlock()
	t.Cleanup(func() {
		globalHealthMu.Lock()
		globalHealthManager = original
		globalHealthMu.Unlock()
	})

	rec := httptest.NewRecorder()
	ScopeHandler(ScopeLive)(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	decodeUnhealthy(t, rec)

	InitHealthManager("9.9.9")
	rec = httptest.NewRecorder()
	ScopeHandler(ScopeLive)(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp := decodeHealth(t, rec); resp.Version != "9.9.9" {
		t.Fatalf("expected global manager version, got %q", resp.Version)
	}
}
