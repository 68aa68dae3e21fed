package errors

import (
	"context"
	"errors"

	gferrors "github.com/fulmenhq/gofulmen/errors"

	"github.com/quotagate/quotagate/internal/core/engine"
)

// FromLimiterError converts an engine error into an envelope. A caller
// deadline is TIMEOUT; any other cancellation is SERVICE_UNAVAILABLE.
func FromLimiterError(ctx context.Context, err error) *gferrors.ErrorEnvelope {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, engine.ErrInvalidArgument):
		return WrapInvalidInput(ctx, err, "invalid permit request")
	case errors.Is(err, engine.ErrCancelled) && errors.Is(err, context.DeadlineExceeded):
		return WrapTimeout(ctx, err, "deadline exceeded while waiting for permits")
	case errors.Is(err, engine.ErrCancelled):
		return WrapServiceUnavailable(ctx, err, "permit wait cancelled")
	case errors.Is(err, engine.ErrInvalidConfiguration):
		return WrapConfigInvalid(ctx, err, "invalid rate limiter configuration")
	default:
		return WrapInternal(ctx, err, "rate limiter failure")
	}
}

func isLimiterError(err error) bool {
	return errors.Is(err, engine.ErrInvalidArgument) ||
		errors.Is(err, engine.ErrCancelled) ||
		errors.Is(err, engine.ErrInvalidConfiguration)
}

// RejectionReason labels a failed admit for the rejections metric.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, engine.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	case errors.Is(err, engine.ErrCancelled):
		return "cancelled"
	default:
		return "internal"
	}
}
