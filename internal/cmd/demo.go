package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/quotagate/quotagate/internal/core/harness"
	errwrap "github.com/quotagate/quotagate/internal/errors"
	"github.com/quotagate/quotagate/internal/metrics"
	"github.com/quotagate/quotagate/internal/observability"
)

var demoJournal bool

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Replay the scripted rate limiting walkthrough",
	Long: `Replay a scripted walkthrough against a fresh limiter:

  1. half the quota at once (admitted immediately)
  2. enough more to overflow the window (waits for the first batch to expire)
  3. three single requests
  4. one batch larger than the quota (rejected)

Each admitted permit is followed by a simulated API call. With the default
quota of 6 per minute the run takes about two minutes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return errwrap.WrapInvalidInput(cmd.Context(), err, "invalid output format")
		}
		outPath, err := resolveSinkPath(cmd, "demo", format)
		if err != nil {
			return err
		}

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}

		limiter, recorder, err := newRunLimiter(cfg.Demo.Limiter(), "demo", true)
		if err != nil {
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "invalid demo quota")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := observability.CLILogger
		logger.Info(fmt.Sprintf("Rate limiter demo: %d permits per %s", limiter.Limit(), limiter.Window()),
			zap.Duration("call_delay", cfg.Demo.CallDelay))

		callDelay := harness.DelayCall(cfg.Demo.CallDelay)
		demo := &harness.Demo{
			Limiter:  limiter,
			Recorder: recorder,
			RunID:    newRunID(),
			Call: func(ctx context.Context, id int) error {
				if err := callDelay(ctx, id); err != nil {
					return err
				}
				logger.Info(fmt.Sprintf("  API call %d done", id))
				return nil
			},
			OnBatch: func(phase string, permits int) {
				logger.Info(fmt.Sprintf("%s: requesting %d permit(s)", phase, permits))
			},
		}

		report, runErr := demo.Run(ctx)
		metrics.RecordRun("demo", runErr == nil && len(report.Violations) == 0)

		if report != nil {
			if demoJournal {
				written, err := journalReport(context.WithoutCancel(ctx), cfg.Store, report)
				if err != nil {
					logger.Warn("Failed to journal admissions", zap.Int("written", written), zap.Error(err))
				} else {
					logger.Info("Admissions journaled", zap.String("run_id", report.RunID), zap.Int("rows", written))
				}
			}
			if err := writeReport(format, outPath, report); err != nil {
				return err
			}
		}

		if runErr != nil {
			return errwrap.WrapServiceUnavailable(ctx, runErr, "demo interrupted")
		}
		if len(report.Violations) > 0 {
			return errors.Join(errInvariantViolated, fmt.Errorf("%d window(s) over quota", len(report.Violations)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().Int("quota", 6, "permits per window")
	demoCmd.Flags().Duration("window", time.Minute, "trailing window length")
	demoCmd.Flags().Duration("call-delay", 100*time.Millisecond, "simulated duration of each API call")
	demoCmd.Flags().BoolVar(&demoJournal, "journal", false, "record admissions in the journal")
	addOutputFlags(demoCmd, "table|json|yaml")

	_ = viper.BindPFlag("demo.quota", demoCmd.Flags().Lookup("quota"))
	_ = viper.BindPFlag("demo.window", demoCmd.Flags().Lookup("window"))
	_ = viper.BindPFlag("demo.call_delay", demoCmd.Flags().Lookup("call-delay"))
}
