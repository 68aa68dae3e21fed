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

var (
	stressSeed    int64
	stressJournal bool
)

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Hammer one limiter with concurrent workers and verify the window",
	Long: `Run concurrent workers, each admitting random batch sizes after random
jitter, against one limiter built from the limiter config section. Every
trailing window of the admission log is then checked against the quota.

Exits non-zero if any window held more permits than the quota. Use a short
limiter window (e.g. QUOTAGATE_LIMITER_WINDOW=200ms) for quick runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return errwrap.WrapInvalidInput(cmd.Context(), err, "invalid output format")
		}
		outPath, err := resolveSinkPath(cmd, "stress", format)
		if err != nil {
			return err
		}

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}

		limiter, recorder, err := newRunLimiter(cfg.Limiter, "stress", verbose)
		if err != nil {
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "invalid limiter configuration")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := observability.CLILogger
		logger.Info("Starting stress run",
			zap.Int("limit", limiter.Limit()),
			zap.Duration("window", limiter.Window()),
			zap.Int("workers", cfg.Stress.Workers),
			zap.Int("rounds", cfg.Stress.Rounds),
			zap.Int("max_batch", cfg.Stress.MaxBatch))

		run := &harness.Stress{
			Limiter:   limiter,
			Recorder:  recorder,
			Workers:   cfg.Stress.Workers,
			Rounds:    cfg.Stress.Rounds,
			MaxBatch:  cfg.Stress.MaxBatch,
			MaxJitter: cfg.Stress.MaxJitter,
			Seed:      stressSeed,
			RunID:     newRunID(),
		}
		report, runErr := run.Run(ctx)
		if report == nil {
			return errwrap.WrapInvalidInput(cmd.Context(), runErr, "invalid stress settings")
		}
		metrics.RecordRun("stress", runErr == nil && len(report.Violations) == 0)

		if stressJournal {
			written, err := journalReport(context.WithoutCancel(ctx), cfg.Store, report)
			if err != nil {
				logger.Warn("Failed to journal admissions", zap.Int("written", written), zap.Error(err))
			}
		}
		if err := writeReport(format, outPath, report); err != nil {
			return err
		}

		if runErr != nil {
			return errwrap.WrapServiceUnavailable(ctx, runErr, "stress run interrupted")
		}
		if len(report.Violations) > 0 {
			return errors.Join(errInvariantViolated, fmt.Errorf("%d window(s) over quota", len(report.Violations)))
		}
		logger.Info("Trailing window invariant held",
			zap.Int("admissions", len(report.Admissions)),
			zap.Int("permits", report.TotalPermits()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stressCmd)

	stressCmd.Flags().Int("workers", 8, "concurrent workers")
	stressCmd.Flags().Int("rounds", 10, "batches per worker")
	stressCmd.Flags().Int("max-batch", 3, "largest batch a worker requests")
	stressCmd.Flags().Duration("max-jitter", 20*time.Millisecond, "largest pause before each batch")
	stressCmd.Flags().Int64Var(&stressSeed, "seed", 0, "random seed (0 picks one from the clock)")
	stressCmd.Flags().BoolVar(&stressJournal, "journal", false, "record admissions in the journal")
	addOutputFlags(stressCmd, "table|json|yaml")

	_ = viper.BindPFlag("stress.workers", stressCmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("stress.rounds", stressCmd.Flags().Lookup("rounds"))
	_ = viper.BindPFlag("stress.max_batch", stressCmd.Flags().Lookup("max-batch"))
	_ = viper.BindPFlag("stress.max_jitter", stressCmd.Flags().Lookup("max-jitter"))
}
