package handlers

import (
	"context"
	"fmt"

	apperrors "github.com/quotagate/quotagate/internal/errors"
	"github.com/quotagate/quotagate/internal/observability"
)

// ShutdownChecker fails once Base is cancelled, so readiness drains traffic
// while waiting admits are failed.
type ShutdownChecker struct {
	Base context.Context
}

func (c ShutdownChecker) CheckHealth(ctx context.Context) error {
	if c.Base != nil && c.Base.Err() != nil {
		return apperrors.NewServiceUnavailableError("server is shutting down")
	}
	return nil
}

// TelemetryChecker degrades when metrics were requested but the exporter
// is missing. Admissions keep working without it.
type TelemetryChecker struct{}

func (TelemetryChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return fmt.Errorf("%w: telemetry system not initialized", ErrDegraded)
	}
	return nil
}
