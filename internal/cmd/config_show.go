package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quotagate/quotagate/internal/config"
	"github.com/quotagate/quotagate/internal/output"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file, QUOTAGATE_*
environment variables and flags have been applied. Secrets are redacted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := cmd.Flags().GetString("output-format")
		if err != nil {
			return err
		}
		format, err := output.ParseFormat(value)
		if err != nil {
			return err
		}

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}

		rendered, err := renderConfig(cfg, format)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), rendered)
		return err
	},
}

// renderConfig renders cfg as YAML (the default) or JSON.
func renderConfig(cfg *config.Config, format output.Format) (string, error) {
	redacted := *cfg
	if redacted.Store.AuthToken != "" {
		redacted.Store.AuthToken = "(redacted)"
	}

	if format == output.FormatJSON {
		data, err := json.MarshalIndent(redacted, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil
	}

	data, err := yaml.Marshal(redacted)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func init() {
	configShowCmd.Flags().String("output-format", string(output.FormatYAML), "Output format: yaml|json")
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
