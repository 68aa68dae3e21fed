package cmd

import (
	"context"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/quotagate/quotagate/internal/appid"
	"github.com/quotagate/quotagate/internal/config"
	"github.com/quotagate/quotagate/internal/observability"
)

// buildVersion is stamped into the binary by main through ldflags.
type buildVersion struct {
	Version   string
	Commit    string
	BuildDate string
}

var (
	cfgFile     string
	verbose     bool
	appIdentity *appid.Identity
	versionInfo buildVersion
)

// SetVersionInfo records the ldflags-injected build metadata.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo = buildVersion{Version: version, Commit: commit, BuildDate: buildDate}
}

// GetAppIdentity returns the app identity, falling back to the built-in one
// before initConfig has run.
func GetAppIdentity() *appid.Identity {
	if appIdentity != nil {
		return appIdentity
	}
	identity := appid.Default()
	return &identity
}

var rootCmd = &cobra.Command{
	Short: "Sliding-window rate limiter for a single outbound API quota",
	Long: `Pace batches of outbound calls so that no more than a fixed number of
permits is admitted inside any trailing window.

Use the subcommands to serve the limiter over HTTP, replay the scripted demo,
stress it with concurrent workers, or inspect the admission journal.`,
	SilenceUsage: true,
}

// Execute runs the command tree selected by os.Args.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Keep telemetry quiet until serve initializes the Prometheus exporter.
	observability.DisableMetrics()

	identity := appid.Default()
	rootCmd.Use = identity.BinaryName
	rootCmd.Short = identity.Description

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", fmt.Sprintf("config file (default is $XDG_CONFIG_HOME/%s/config.yaml)", identity.ConfigName))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig wires defaults, the config file and QUOTAGATE_* variables into
// the global viper instance.
func initConfig() {
	identity, err := appid.Get(context.Background())
	if err != nil {
		ExitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to resolve app identity", err)
	}
	appIdentity = identity

	observability.InitCLILogger(identity.BinaryName, verbose)

	v := viper.GetViper()
	config.SetDefaults(v)
	config.ConfigureSources(v, cfgFile)

	found, err := config.ReadFile(v)
	switch {
	case err != nil:
		ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Error reading config file", err)
	case found:
		observability.CLILogger.Debug("Using config file", zap.String("path", v.ConfigFileUsed()))
	default:
		observability.CLILogger.Debug("No config file found, using defaults and environment variables")
	}
}

// loadConfig decodes the global viper state into a validated Config.
func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
