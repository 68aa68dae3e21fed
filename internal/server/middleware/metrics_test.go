package middleware_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotagate/quotagate/internal/core/engine"
	"github.com/quotagate/quotagate/internal/observability"
	"github.com/quotagate/quotagate/internal/server/handlers"
	"github.com/quotagate/quotagate/internal/server/middleware"
)

func installCollector(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: collector})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = original })

	return collector
}

// newLimiterRouter mounts the admission routes behind the production
// middleware order.
func newLimiterRouter(t *testing.T, limit int) http.Handler {
	t.Helper()

	limiter, err := engine.New(limit, time.Hour)
	require.NoError(t, err)
	h := handlers.NewLimiterHandlers(limiter, 0)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestMetrics)
	r.Use(middleware.Recovery)
	r.Post("/v1/admit", h.Admit)
	r.Get("/v1/usage", h.Usage)
	return r
}

func admit(ctx context.Context, router http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/admit", strings.NewReader(body)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// requestCounts tallies http_requests_total by "endpoint status".
func requestCounts(collector *telemetrytesting.FakeCollector) map[string]int {
	counts := make(map[string]int)
	for _, m := range collector.GetMetricsByName(middleware.RequestsTotalName) {
		counts[m.Tags["endpoint"]+" "+m.Tags["status"]]++
	}
	return counts
}

func TestRequestMetricsLabelsAdmissionOutcomes(t *testing.T) {
	collector := installCollector(t)
	router := newLimiterRouter(t, 2)

	rec := admit(context.Background(), router, `{"permits":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/usage", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = admit(context.Background(), router, `{"permits":9}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, "batch larger than the quota")

	rec = admit(context.Background(), router, `{"permits":1,"timeout":"20ms"}`)
	require.Equal(t, http.StatusGatewayTimeout, rec.Code, "quota exhausted until the window slides")

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	rec = admit(cancelled, router, `{"permits":1}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code, "caller went away")

	assert.Equal(t, map[string]int{
		"/v1/admit 200": 1,
		"/v1/usage 200": 1,
		"/v1/admit 400": 1,
		"/v1/admit 504": 1,
		"/v1/admit 503": 1,
	}, requestCounts(collector))

	errorTypes := make(map[string]string)
	for _, m := range collector.GetMetricsByName(middleware.RequestErrorsName) {
		assert.Equal(t, "/v1/admit", m.Tags["endpoint"])
		errorTypes[m.Tags["status"]] = m.Tags["error_type"]
	}
	assert.Equal(t, map[string]string{
		"400": "client_error",
		"503": "server_error",
		"504": "server_error",
	}, errorTypes)

	assert.Equal(t, 5, collector.CountMetricsByName(middleware.RequestDurationName))
	assert.Equal(t, 5, collector.CountMetricsByName(middleware.ResponseSizeName))
}

func TestRequestMetricsUnknownRouteLabel(t *testing.T) {
	collector := installCollector(t)
	router := newLimiterRouter(t, 1)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/v1/buckets/%d", i), nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}

	assert.Equal(t, map[string]int{"/unknown 404": 3}, requestCounts(collector),
		"raw paths must not become metric labels")
}

func TestRequestMetricsRecordsRequestSize(t *testing.T) {
	collector := installCollector(t)
	router := newLimiterRouter(t, 4)

	body := `{"permits":1}`
	rec := admit(context.Background(), router, body)
	require.Equal(t, http.StatusOK, rec.Code)

	sizes := collector.GetMetricsByName(middleware.RequestSizeName)
	require.Len(t, sizes, 1)
	assert.Equal(t, float64(len(body)), sizes[0].Value)
	assert.Equal(t, "/v1/admit", sizes[0].Tags["endpoint"])
}

func TestRequestMetricsWithTelemetryDisabled(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = original })

	rec := admit(context.Background(), newLimiterRouter(t, 1), `{"permits":1}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}
