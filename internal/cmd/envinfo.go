package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/quotagate/quotagate/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display version, runtime and effective limiter configuration.",
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		version := crucible.GetVersion()
		identity := GetAppIdentity()

		logger.Info("Application:")
		logger.Info("  Name:       " + identity.BinaryName)
		logger.Info("  Version:    " + versionInfo.Version)
		logger.Info("  Commit:     " + versionInfo.Commit)
		logger.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		logger.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		logger.Info(fmt.Sprintf("  Go:         %s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH))
		logger.Info("")

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			logger.Warn("Config load failed", zap.Error(err))
			return
		}

		configFile := viper.ConfigFileUsed()
		if configFile == "" {
			configFile = "(none)"
		}

		logger.Info("Limiter:")
		logger.Info(fmt.Sprintf("  Quota:      %d per %s", cfg.Limiter.MaxRequests, cfg.Limiter.Window))
		if cfg.Limiter.Margin > 0 {
			logger.Info(fmt.Sprintf("  Effective:  %d (margin %.2f)", cfg.Limiter.EffectiveLimit(), cfg.Limiter.Margin))
		}
		logger.Info("")

		logger.Info("Configuration:")
		logger.Info("  Config File: " + configFile)
		logger.Info(fmt.Sprintf("  Server:      %s:%d", cfg.Server.Host, cfg.Server.Port))
		logger.Info("  Log Level:   " + cfg.Logging.Level)
		if strings.TrimSpace(cfg.Store.URL) != "" {
			logger.Info("  Journal URL: " + cfg.Store.URL)
		} else {
			logger.Info("  Journal:     " + cfg.Store.Path)
		}
		logger.Info(fmt.Sprintf("  Metrics:     %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port))
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
