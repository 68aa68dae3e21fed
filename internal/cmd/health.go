package cmd

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/quotagate/quotagate/internal/errors"
	"github.com/quotagate/quotagate/internal/observability"
)

var healthCheckJournal bool

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long: `Verify the application can start: version info, configuration, a limiter
built from the limiter section and, with --journal, the admission journal.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		if logger == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", errwrap.NewConfigInvalidError("Logger not initialized"))
			return
		}
		logger.Info("Running health check...")

		if versionInfo.Version == "" {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		logger.Info("✅ Version information available", zap.String("version", versionInfo.Version))

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			ExitWithCode(logger, ExitCodeFor(err), "Configuration invalid", err)
			return
		}
		logger.Info("✅ Configuration loaded")

		limiter, err := cfg.Limiter.NewLimiter()
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Limiter configuration invalid", err)
			return
		}
		usage := limiter.Usage()
		logger.Info("✅ Limiter ready",
			zap.Int("limit", usage.Limit),
			zap.Duration("window", usage.Window))

		if healthCheckJournal {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			db, err := openStore(ctx, cfg.Store)
			if err != nil {
				ExitWithCode(logger, foundry.ExitFileNotFound, "Admission journal unavailable", err)
				return
			}
			_ = db.Close()
			logger.Info("✅ Admission journal reachable", zap.String("driver", db.Driver()))
		}

		logger.Info("")
		logger.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().BoolVar(&healthCheckJournal, "journal", false, "also open and migrate the admission journal")
}
