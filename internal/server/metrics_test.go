package server

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/fulmenhq/gofulmen/telemetry/exporters"
	"github.com/spf13/viper"

	apperrors "github.com/quotagate/quotagate/internal/errors"
	"github.com/quotagate/quotagate/internal/observability"
)

// fakeExporter serves body on /metrics and points the proxy at it. Each
// scrape's Accept header is sent on the returned channel.
func fakeExporter(t *testing.T, body string) <-chan string {
	t.Helper()
	if observability.GetMetricsPort() != 0 {
		t.Skip("exporter already initialized in this process")
	}

	accept := make(chan string, 1)
	exporter := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case accept <- r.Header.Get("Accept"):
		default:
		}
		w.Header().Set("Content-Type", prometheusTextContent)
		w.Header().Set("Connection", "close")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(exporter.Close)

	_, port, err := net.SplitHostPort(strings.TrimPrefix(exporter.URL, "http://"))
	if err != nil {
		t.Fatalf("split exporter address: %v", err)
	}
	portNum, _ := strconv.Atoi(port)
	viper.Set("metrics.port", portNum)
	t.Cleanup(func() { viper.Set("metrics.port", 0) })

	observability.PrometheusExporter = exporters.NewPrometheusExporter("quotagate_test", ":0")
	t.Cleanup(func() { observability.PrometheusExporter = nil })

	return accept
}

func TestMetricsRouteProxiesExporter(t *testing.T) {
	accept := fakeExporter(t, "# HELP limiter_admissions_total Admitted batches\nlimiter_admissions_total{source=\"serve\"} 3\n")
	srv := newTestServer(t, 5)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept", "text/plain")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("expected text/plain content type, got %s", ct)
	}
	if rec.Header().Get("Connection") != "" {
		t.Fatal("expected hop-by-hop headers to be dropped")
	}
	if got := <-accept; got != "text/plain" {
		t.Fatalf("expected Accept to be forwarded, got %q", got)
	}
	if !strings.Contains(rec.Body.String(), `limiter_admissions_total{source="serve"} 3`) {
		t.Fatalf("expected exporter body, got: %s", rec.Body.String())
	}
}

func TestMetricsRouteWithoutExporter(t *testing.T) {
	observability.PrometheusExporter = nil
	srv := newTestServer(t, 5)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
	var body apperrors.HTTPErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Error.Code != apperrors.CodeServiceUnavailable {
		t.Fatalf("expected %s, got %s", apperrors.CodeServiceUnavailable, body.Error.Code)
	}
}

func TestMetricsRouteReportsUnreachableExporter(t *testing.T) {
	if observability.GetMetricsPort() != 0 {
		t.Skip("exporter already initialized in this process")
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	viper.Set("metrics.port", port)
	t.Cleanup(func() { viper.Set("metrics.port", 0) })
	observability.PrometheusExporter = exporters.NewPrometheusExporter("quotagate_test", ":0")
	t.Cleanup(func() { observability.PrometheusExporter = nil })

	rec := httptest.NewRecorder()
	newTestServer(t, 5).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d: %s", rec.Code, rec.Body.String())
	}
	var body apperrors.HTTPErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Error.Details["metrics_url"] != "http://127.0.0.1:"+strconv.Itoa(port)+"/metrics" {
		t.Fatalf("expected metrics_url in details, got %v", body.Error.Details)
	}
}
