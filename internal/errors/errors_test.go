package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotagate/quotagate/internal/core/engine"
	"github.com/quotagate/quotagate/internal/server/middleware"
)

func TestFromLimiterError(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDContextKey, "req-123")

	tests := []struct {
		name   string
		err    error
		code   string
		status int
		reason string
	}{
		{
			name:   "invalid argument",
			err:    fmt.Errorf("%w: requested 7 permits, quota is 6", engine.ErrInvalidArgument),
			code:   "INVALID_INPUT",
			status: http.StatusBadRequest,
			reason: "invalid_argument",
		},
		{
			name:   "deadline",
			err:    fmt.Errorf("%w: %w", engine.ErrCancelled, context.DeadlineExceeded),
			code:   "TIMEOUT",
			status: http.StatusGatewayTimeout,
			reason: "deadline_exceeded",
		},
		{
			name:   "cancelled",
			err:    fmt.Errorf("%w: %w", engine.ErrCancelled, context.Canceled),
			code:   "SERVICE_UNAVAILABLE",
			status: http.StatusServiceUnavailable,
			reason: "cancelled",
		},
		{
			name:   "configuration",
			err:    fmt.Errorf("%w: quota must be positive", engine.ErrInvalidConfiguration),
			code:   "CONFIG_INVALID",
			status: http.StatusInternalServerError,
			reason: "internal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envelope := FromLimiterError(ctx, tt.err)
			require.NotNil(t, envelope)
			assert.Equal(t, tt.code, envelope.Code)
			assert.Equal(t, "req-123", envelope.CorrelationID)
			assert.Equal(t, tt.status, HTTPStatus(envelope))
			assert.Equal(t, tt.reason, RejectionReason(tt.err))
		})
	}

	assert.Nil(t, FromLimiterError(ctx, nil))
}

func TestEnsureEnvelopeMapsLimiterErrors(t *testing.T) {
	envelope := EnsureEnvelope(fmt.Errorf("%w: bad batch", engine.ErrInvalidArgument))
	assert.Equal(t, "INVALID_INPUT", envelope.Code)

	envelope = EnsureEnvelope(fmt.Errorf("boom"))
	assert.Equal(t, "INTERNAL_ERROR", envelope.Code)

	original := NewNotFoundError("missing")
	assert.Same(t, original, EnsureEnvelope(original))
}

func TestRespondWithErrorWritesEnvelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/admit", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDContextKey, "req-456"))
	rec := httptest.NewRecorder()

	RespondWithError(rec, req, fmt.Errorf("%w: requested 0 permits", engine.ErrInvalidArgument))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "INVALID_INPUT", body.Error.Code)
	assert.Equal(t, "req-456", body.Error.RequestID)
	assert.Contains(t, body.Error.Details["wrapped_error"], "requested 0 permits")
}
