package errors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/quotagate/quotagate/internal/metrics"
	"github.com/quotagate/quotagate/internal/observability"
)

// HTTPErrorDetail is the error body returned to callers.
type HTTPErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// HTTPErrorResponse is the JSON shape of every error response.
type HTTPErrorResponse struct {
	Error HTTPErrorDetail `json:"error"`
}

// EnsureEnvelope returns err as an envelope. Limiter errors get their
// mapped code; anything else becomes INTERNAL_ERROR.
func EnsureEnvelope(err error) *gferrors.ErrorEnvelope {
	if err == nil {
		envelope, _ := gferrors.NewErrorEnvelope(CodeInternal, "unexpected nil error").WithSeverity(gferrors.SeverityCritical)
		return envelope
	}

	var envelope *gferrors.ErrorEnvelope
	if errors.As(err, &envelope) && envelope != nil {
		return envelope
	}
	if isLimiterError(err) {
		return FromLimiterError(context.Background(), err)
	}

	envelope = withContextValue(gferrors.NewErrorEnvelope(CodeInternal, "unexpected error"), "wrapped_error", err)
	if withSeverity, sevErr := envelope.WithSeverity(gferrors.SeverityHigh); sevErr == nil {
		envelope = withSeverity
	}
	return envelope
}

// RespondWithError writes err as a JSON envelope, logs it, and counts it
// against the matched route.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	if w == nil {
		return
	}

	var envelope *gferrors.ErrorEnvelope
	if r != nil && isLimiterError(err) {
		envelope = FromLimiterError(r.Context(), err)
	} else {
		envelope = EnsureEnvelope(err)
	}

	if envelope.CorrelationID == "" {
		id := ""
		if r != nil {
			id = requestID(r.Context())
		}
		if id == "" {
			id = "fallback-" + gferrors.GenerateCorrelationID()
		}
		envelope = envelope.WithCorrelationID(id)
	}

	status := HTTPStatus(envelope)
	logHTTPError(envelope, status)
	metrics.RecordError(envelope.Code, status)
	if r != nil {
		metrics.RecordErrorByEndpoint(routePattern(r), envelope.Code)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{Error: HTTPErrorDetail{
		Code:      envelope.Code,
		Message:   envelope.Message,
		Details:   responseDetails(envelope),
		RequestID: envelope.CorrelationID,
	}})
}

// responseDetails merges envelope details with context; details win on
// key collisions.
func responseDetails(envelope *gferrors.ErrorEnvelope) map[string]interface{} {
	if len(envelope.Details) == 0 && len(envelope.Context) == 0 {
		return nil
	}
	merged := make(map[string]interface{}, len(envelope.Details)+len(envelope.Context))
	for key, value := range envelope.Context {
		merged[key] = value
	}
	for key, value := range envelope.Details {
		merged[key] = value
	}
	return merged
}

func logHTTPError(envelope *gferrors.ErrorEnvelope, status int) {
	logger := observability.ServerLogger
	if logger == nil {
		return
	}

	fields := make([]zap.Field, 0, len(envelope.Context)+4)
	fields = append(fields,
		zap.String("error_code", envelope.Code),
		zap.Int("http_status", status),
		zap.String("request_id", envelope.CorrelationID))
	if envelope.Severity != "" {
		fields = append(fields, zap.String("severity", string(envelope.Severity)))
	}
	for key, value := range envelope.Context {
		fields = append(fields, zap.Any(key, value))
	}

	switch envelope.Severity {
	case gferrors.SeverityCritical, gferrors.SeverityHigh:
		logger.Error(envelope.Message, fields...)
	case gferrors.SeverityMedium:
		logger.Warn(envelope.Message, fields...)
	default:
		logger.Info(envelope.Message, fields...)
	}
}

// routePattern returns the matched chi route, or "/unknown" for requests
// that matched none.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "/unknown"
}
