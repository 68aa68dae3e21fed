package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quotagate/quotagate/internal/config"
	"github.com/quotagate/quotagate/internal/core"
	"github.com/quotagate/quotagate/internal/core/engine"
	"github.com/quotagate/quotagate/internal/core/harness"
	errwrap "github.com/quotagate/quotagate/internal/errors"
	"github.com/quotagate/quotagate/internal/metrics"
	"github.com/quotagate/quotagate/internal/observability"
	"github.com/quotagate/quotagate/internal/output"
)

// narrator logs limiter waits and admissions through the CLI logger.
type narrator struct {
	source string
}

func (n narrator) Waiting(permits int, wait time.Duration) {
	observability.CLILogger.Info(fmt.Sprintf("Rate limit reached, waiting %s for %d permit(s)", wait.Round(100*time.Millisecond), permits),
		zap.String("source", n.source),
		zap.Duration("wait", wait))
}

func (n narrator) Admitted(admission core.Admission) {
	observability.CLILogger.Debug("Permits admitted",
		zap.String("source", n.source),
		zap.Int("permits", admission.Permits),
		zap.Duration("waited", admission.Waited))
}

// newRunLimiter builds a limiter whose admissions are recorded for the
// report, counted in metrics and optionally narrated.
func newRunLimiter(limiterCfg config.LimiterConfig, source string, narrate bool) (*engine.RateLimiter, *harness.Recorder, error) {
	recorder := &harness.Recorder{}
	observers := engine.MultiObserver{recorder, metrics.LimiterObserver{Source: source}}
	if narrate {
		observers = append(observers, narrator{source: source})
	}

	limiter, err := limiterCfg.NewLimiter(engine.WithObserver(observers))
	if err != nil {
		return nil, nil, err
	}
	return limiter, recorder, nil
}

func newRunID() string {
	return uuid.NewString()
}

// journalReport appends every admission in report to the journal.
func journalReport(ctx context.Context, storeCfg config.StoreConfig, report *core.RunReport) (int, error) {
	if report == nil || len(report.Admissions) == 0 {
		return 0, nil
	}

	db, err := openStore(ctx, storeCfg)
	if err != nil {
		return 0, errwrap.WrapDatabaseError(ctx, err, "failed to open admission journal")
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup

	for i, admission := range report.Admissions {
		if _, err := db.RecordAdmission(ctx, report.RunID, report.Source, admission); err != nil {
			return i, errwrap.WrapDatabaseError(ctx, err, "failed to journal admission")
		}
	}
	return len(report.Admissions), nil
}

// writeReport renders report to the sink selected by the output flags.
func writeReport(format output.Format, path string, report *core.RunReport) error {
	rendered, err := output.NewFormatter(format).FormatReport(report)
	if err != nil {
		return err
	}

	sink, err := openSink(path)
	if err != nil {
		return err
	}
	defer func() { _ = sink.Close() }()

	_, err = fmt.Fprintln(sink, rendered)
	return err
}
