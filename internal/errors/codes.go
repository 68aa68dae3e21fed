// Package errors builds gofulmen error envelopes for quotagate and renders
// them as HTTP responses.
package errors

import (
	"context"
	"net/http"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/google/uuid"

	"github.com/quotagate/quotagate/internal/server/middleware"
)

// Envelope codes. Each maps to one HTTP status in statusByCode.
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeTimeout            = "TIMEOUT"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeConfigInvalid      = "CONFIG_INVALID"
	CodeDatabase           = "DATABASE_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

var statusByCode = map[string]int{
	CodeInvalidInput:       http.StatusBadRequest,
	CodeNotFound:           http.StatusNotFound,
	CodeMethodNotAllowed:   http.StatusMethodNotAllowed,
	CodeTimeout:            http.StatusGatewayTimeout,
	CodeServiceUnavailable: http.StatusServiceUnavailable,
}

// HTTPStatus returns the response status for envelope. Unknown codes and a
// nil envelope are 500.
func HTTPStatus(envelope *gferrors.ErrorEnvelope) int {
	if envelope == nil {
		return http.StatusInternalServerError
	}
	if status, ok := statusByCode[envelope.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func NewInvalidInputError(message string) *gferrors.ErrorEnvelope {
	return gferrors.NewErrorEnvelope(CodeInvalidInput, message)
}

func NewNotFoundError(message string) *gferrors.ErrorEnvelope {
	return gferrors.NewErrorEnvelope(CodeNotFound, message)
}

func NewMethodNotAllowedError(message string) *gferrors.ErrorEnvelope {
	return gferrors.NewErrorEnvelope(CodeMethodNotAllowed, message)
}

func NewServiceUnavailableError(message string) *gferrors.ErrorEnvelope {
	return gferrors.NewErrorEnvelope(CodeServiceUnavailable, message)
}

func NewConfigInvalidError(message string) *gferrors.ErrorEnvelope {
	return gferrors.NewErrorEnvelope(CodeConfigInvalid, message)
}

// The Wrap helpers record err as wrapped_error context and stamp the request
// ID from ctx as both correlation and trace ID.

func WrapInvalidInput(ctx context.Context, err error, message string) *gferrors.ErrorEnvelope {
	return wrap(ctx, CodeInvalidInput, err, message)
}

func WrapInternal(ctx context.Context, err error, message string) *gferrors.ErrorEnvelope {
	return wrap(ctx, CodeInternal, err, message)
}

func WrapDatabaseError(ctx context.Context, err error, message string) *gferrors.ErrorEnvelope {
	return wrap(ctx, CodeDatabase, err, message)
}

func WrapTimeout(ctx context.Context, err error, message string) *gferrors.ErrorEnvelope {
	return wrap(ctx, CodeTimeout, err, message)
}

func WrapServiceUnavailable(ctx context.Context, err error, message string) *gferrors.ErrorEnvelope {
	return wrap(ctx, CodeServiceUnavailable, err, message)
}

func WrapConfigInvalid(ctx context.Context, err error, message string) *gferrors.ErrorEnvelope {
	return wrap(ctx, CodeConfigInvalid, err, message)
}

func wrap(ctx context.Context, code string, err error, message string) *gferrors.ErrorEnvelope {
	id := requestID(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	envelope := gferrors.NewErrorEnvelope(code, message).WithCorrelationID(id).WithTraceID(id)
	return withContextValue(envelope, "wrapped_error", err)
}

func requestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	return middleware.GetRequestID(ctx)
}

func withContextValue(envelope *gferrors.ErrorEnvelope, key string, err error) *gferrors.ErrorEnvelope {
	if envelope == nil || err == nil {
		return envelope
	}
	if updated, updateErr := envelope.WithContext(map[string]interface{}{key: err.Error()}); updateErr == nil {
		return updated
	}
	return envelope
}
