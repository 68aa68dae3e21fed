package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	apperrors "github.com/quotagate/quotagate/internal/errors"
	"github.com/quotagate/quotagate/internal/observability"
)

const (
	defaultMetricsPort    = 9090
	prometheusTextContent = "text/plain; version=0.0.4"
)

var metricsProxyClient = &http.Client{Timeout: 5 * time.Second}

// Not forwarded from the exporter response.
var hopByHopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// MetricsHandler proxies the Prometheus exporter so limiter metrics can be
// scraped from the main listener next to /v1/usage.
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if observability.PrometheusExporter == nil {
		HandleError(w, r, apperrors.NewServiceUnavailableError("Metrics exporter not initialized"))
		return
	}

	target := fmt.Sprintf("http://127.0.0.1:%d/metrics", exporterPort())
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		HandleError(w, r, proxyError(apperrors.CodeInternal, "Unable to construct metrics request", target, err))
		return
	}
	if accept := r.Header.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := metricsProxyClient.Do(req)
	if err != nil {
		HandleError(w, r, proxyError(apperrors.CodeServiceUnavailable, "Prometheus exporter unavailable", target, err))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	copyEndToEndHeaders(w.Header(), resp.Header)
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", prometheusTextContent)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil && observability.ServerLogger != nil {
		observability.ServerLogger.Warn("Failed to write metrics response", zap.Error(err))
	}
}

func copyEndToEndHeaders(dst, src http.Header) {
	for key, values := range src {
		if hopByHopHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

// exporterPort prefers the port the exporter actually bound, then config.
func exporterPort() int {
	if port := observability.GetMetricsPort(); port != 0 {
		return port
	}
	if port := viper.GetInt("metrics.port"); port != 0 {
		return port
	}
	return defaultMetricsPort
}

func proxyError(code, message, target string, cause error) *gferrors.ErrorEnvelope {
	envelope := gferrors.NewErrorEnvelope(code, message)
	if withCtx, err := envelope.WithContext(map[string]interface{}{
		"metrics_url":    target,
		"original_error": cause.Error(),
	}); err == nil {
		envelope = withCtx
	}
	return envelope
}
