package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/quotagate/quotagate/internal/config"
	"github.com/quotagate/quotagate/internal/core/engine"
	errwrap "github.com/quotagate/quotagate/internal/errors"
	"github.com/quotagate/quotagate/internal/metrics"
	"github.com/quotagate/quotagate/internal/observability"
	"github.com/quotagate/quotagate/internal/server"
	"github.com/quotagate/quotagate/internal/server/handlers"
)

const defaultShutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the rate limiter over HTTP",
	Long: `Serve one shared rate limiter over HTTP.

POST /v1/admit blocks until the requested permits fit in the trailing window.
GET /v1/usage reports current window usage.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: cancel waiting admits, then shut down
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: re-read the config file (limiter settings require a restart)`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	identity := GetAppIdentity()
	namespace := identity.TelemetryNamespace()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	observability.InitServerLogger(identity.BinaryName, cfg.Logging.Level, cfg.Logging.Profile, namespace)
	log := observability.ServerLogger

	if cfg.Metrics.Enabled {
		if err := observability.InitMetrics(identity.BinaryName, cfg.Metrics.Port, namespace); err != nil {
			log.Error("Failed to initialize metrics", zap.Error(err))
			return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
		}
	}

	limiter, err := cfg.Limiter.NewLimiter(engine.WithObserver(metrics.LimiterObserver{Source: "serve"}))
	if err != nil {
		return errwrap.WrapConfigInvalid(ctx, err, "invalid limiter configuration")
	}

	log.Info("Starting quotagate",
		zap.String("version", versionInfo.Version),
		zap.String("addr", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Int("limit", limiter.Limit()),
		zap.Duration("window", limiter.Window()))

	// base outlives every request; cancelling it fails waiting admits
	// with ErrCancelled before the listener closes.
	base, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	if cfg.Health.Enabled {
		registerHealthChecks(base, cfg.Metrics.Enabled)
	}

	srv := server.New(cfg.Server.Host, cfg.Server.Port, limiter, server.Options{
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		MaxAdmitTimeout: cfg.Server.MaxAdmitTimeout,
	})
	handlers.SetAppIdentity(identity)

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	installShutdown(srv, limiter, cancelBase, timeout)
	signals.OnReload(reloadConfigFile)
	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		log.Warn("Double-tap force quit unavailable", zap.Error(err))
	}

	metrics.SetServerStartTime(time.Now().Unix())

	done := make(chan error, 2)
	go func() {
		err := srv.Start(base)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	}()
	go func() {
		if err := signals.Listen(ctx); err != nil {
			log.Error("Signal listener stopped", zap.Error(err))
			done <- err
		}
	}()

	if err := <-done; err != nil {
		return errwrap.WrapInternal(ctx, err, "server error")
	}
	return nil
}

// registerHealthChecks installs the process-wide health manager. The server
// adds the limiter check itself.
func registerHealthChecks(base context.Context, withTelemetry bool) {
	handlers.InitHealthManager(versionInfo.Version)
	hm := handlers.GetHealthManager()
	hm.RegisterReadinessChecker("shutdown", handlers.ShutdownChecker{Base: base})
	if withTelemetry {
		hm.RegisterChecker("telemetry", handlers.TelemetryChecker{})
	}
}

// installShutdown registers the shutdown sequence. signals runs handlers in
// reverse order, so waiting admits are cancelled first, then the listener
// closes, then logs are flushed.
func installShutdown(srv *server.Server, limiter *engine.RateLimiter, cancelBase context.CancelFunc, timeout time.Duration) {
	log := observability.ServerLogger

	signals.OnShutdown(func(context.Context) error {
		if err := log.Sync(); err != nil {
			// stderr may already be closed
			log.Warn("Logger sync failed", zap.Error(err))
		}
		return nil
	})
	signals.OnShutdown(func(ctx context.Context) error {
		stopCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := srv.Shutdown(stopCtx); err != nil {
			return errwrap.WrapInternal(ctx, err, "server shutdown failed")
		}
		log.Info("HTTP server stopped")
		return nil
	})
	signals.OnShutdown(func(context.Context) error {
		usage := limiter.Usage()
		log.Info("Cancelling waiting admissions",
			zap.Int("in_use", usage.InUse),
			zap.Int("available", usage.Available))
		cancelBase()
		return nil
	})
}

// reloadConfigFile re-reads the config file on SIGHUP. The limiter is built
// once, so only logging and server settings read later pick up changes.
func reloadConfigFile(ctx context.Context) error {
	log := observability.ServerLogger
	found, err := config.ReadFile(viper.GetViper())
	switch {
	case err != nil:
		log.Error("Config reload failed", zap.String("file", viper.ConfigFileUsed()), zap.Error(err))
		return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
	case !found:
		log.Info("No config file to reload")
	default:
		log.Info("Configuration reloaded; limiter settings apply on restart",
			zap.String("file", viper.ConfigFileUsed()))
	}
	return nil
}
