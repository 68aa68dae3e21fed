package observability

import (
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
)

var (
	// CLILogger serves one-shot commands (demo, stress, journal) with the
	// simple console profile.
	CLILogger *logging.Logger

	// ServerLogger serves `quotagate serve`, the HTTP middleware and the
	// error responder.
	ServerLogger *logging.Logger
)

const profileSimple = "simple"

var logLevels = map[string]string{
	"trace":   "TRACE",
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

// InitCLILogger installs CLILogger. verbose lowers the level to DEBUG.
func InitCLILogger(serviceName string, verbose bool) {
	logger, err := logging.NewCLI(serviceName)
	if err != nil {
		fatal(foundry.ExitConfigInvalid, "Failed to initialize CLI logger", err)
	}
	if verbose {
		logger.SetLevel(logging.DEBUG)
	}
	CLILogger = logger
}

// InitServerLogger installs ServerLogger. profile "simple" writes console
// text; anything else writes structured JSON with the correlation
// middleware. A non-empty namespace becomes a static field.
func InitServerLogger(serviceName, logLevel, profile string, namespace ...string) {
	logger, err := logging.New(serverLoggerConfig(serviceName, logLevel, profile, namespace...))
	if err != nil {
		fatal(foundry.ExitConfigInvalid, "Failed to initialize server logger", err)
	}
	ServerLogger = logger
}

func serverLoggerConfig(serviceName, logLevel, profile string, namespace ...string) *logging.LoggerConfig {
	cfg := &logging.LoggerConfig{
		Profile:      logging.ProfileStructured,
		DefaultLevel: parseLogLevel(logLevel),
		Service:      serviceName,
		Environment:  "production",
		StaticFields: make(map[string]any),
	}
	if len(namespace) > 0 && namespace[0] != "" {
		cfg.StaticFields["namespace"] = namespace[0]
	}

	if strings.EqualFold(strings.TrimSpace(profile), profileSimple) {
		cfg.Profile = logging.ProfileSimple
		cfg.Sinks = []logging.SinkConfig{stderrSink("console")}
		return cfg
	}

	cfg.Sinks = []logging.SinkConfig{stderrSink("json")}
	cfg.Middleware = []logging.MiddlewareConfig{{
		Name:    "correlation",
		Enabled: true,
		Order:   100,
		Config:  map[string]any{},
	}}
	cfg.EnableCaller = true
	cfg.EnableStacktrace = true
	return cfg
}

func stderrSink(format string) logging.SinkConfig {
	return logging.SinkConfig{
		Type:    "console",
		Format:  format,
		Console: &logging.ConsoleSinkConfig{Stream: "stderr"},
	}
}

// parseLogLevel maps a config level to a gofulmen severity name. Unknown
// levels log at INFO.
func parseLogLevel(level string) string {
	if severity, ok := logLevels[strings.ToLower(strings.TrimSpace(level))]; ok {
		return severity
	}
	return "INFO"
}

// fatal reports a logger setup failure on stderr and exits; there is no
// logger to report it through.
func fatal(code foundry.ExitCode, msg string, err error) {
	fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
	if info, ok := foundry.GetExitCodeInfo(code); ok {
		fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
	}
	os.Exit(int(code))
}
