package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/quotagate/quotagate/internal/observability"
)

// HTTP metric names emitted by RequestMetrics.
const (
	RequestsTotalName    = "http_requests_total"
	RequestDurationName  = "http_request_duration_ms"
	RequestSizeName      = "http_request_size_bytes"
	ResponseSizeName     = "http_response_size_bytes"
	RequestErrorsName    = "http_errors_total"
	unknownEndpointLabel = "/unknown"
	healthEndpointsLabel = "/health/*"
)

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// getEndpointPattern labels r by its chi route pattern so raw paths never
// reach metric tags.
func getEndpointPattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}

	switch path := r.URL.Path; path {
	case "/health", "/health/live", "/health/ready", "/health/startup":
		return healthEndpointsLabel
	case "/v1/admit", "/v1/usage", "/version", "/metrics", "/":
		return path
	default:
		return unknownEndpointLabel
	}
}

// RequestMetrics records count, latency, sizes and errors per route. It must
// sit inside the chi router so the route pattern is resolved by the time the
// handler returns.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if observability.TelemetrySystem == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		emitRequestMetrics(r, rec, time.Since(start))
	})
}

func emitRequestMetrics(r *http.Request, rec *statusRecorder, duration time.Duration) {
	telemetry := observability.TelemetrySystem
	endpoint := getEndpointPattern(r)
	status := strconv.Itoa(rec.status)

	requestSize := r.ContentLength
	if requestSize < 0 {
		requestSize = 0
	}

	tags := map[string]string{"method": r.Method, "endpoint": endpoint, "status": status}
	_ = telemetry.Counter(RequestsTotalName, 1, tags)
	_ = telemetry.Histogram(RequestDurationName, duration, tags)

	sizeTags := map[string]string{"method": r.Method, "endpoint": endpoint}
	_ = telemetry.Gauge(RequestSizeName, float64(requestSize), sizeTags)
	_ = telemetry.Gauge(ResponseSizeName, float64(rec.written), sizeTags)

	if rec.status >= http.StatusBadRequest {
		errorType := "client_error"
		if rec.status >= http.StatusInternalServerError {
			errorType = "server_error"
		}
		_ = telemetry.Counter(RequestErrorsName, 1, map[string]string{
			"method":     r.Method,
			"endpoint":   endpoint,
			"status":     status,
			"error_type": errorType,
		})
	}

	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("HTTP request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("endpoint", endpoint),
			zap.Int("status", rec.status),
			zap.Duration("duration", duration),
			zap.Int64("request_size", requestSize),
			zap.Int64("response_size", rec.written),
			zap.String("requestID", GetRequestID(r.Context())),
		)
	}
}
