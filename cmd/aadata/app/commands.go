// Package app provides the command line interface of the toolkit.
package app

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ocha-dap/aadatakit/internal/config"
	"github.com/ocha-dap/aadatakit/internal/versions"
	"github.com/ocha-dap/aadatakit/pkg/toolbox"
)

var rootCmd = &cobra.Command{
	Use:               "aadata",
	DisableAutoGenTag: true,
	Short:             "Humanitarian dataset fetch and processing toolkit",
	Long: `aadata fetches versioned artifacts from registered data sources into a
local content-verified cache and applies deterministic transformations to
the cached artifacts.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// NewRootCmd creates the root command for the aadata CLI
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format, required)")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		panic(fmt.Sprintf("failed to bind config flag: %v", err))
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(invalidateCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(provenanceCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		info := versions.GetVersionInfo()
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			return err
		}

		if format == "json" {
			output, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to format version info: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(output))
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "aadata %s (commit %s, built %s, %s, %s)\n",
			info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
		return nil
	},
}

func init() {
	versionCmd.Flags().String("format", "", "Output format (json)")
}

// openToolbox loads the configuration named by --config (or AADATA_CONFIG)
// and assembles a toolbox with the provenance ledger enabled
func openToolbox(cmd *cobra.Command) (*toolbox.Toolbox, error) {
	configPath := viper.GetString("config")
	if configPath == "" {
		return nil, fmt.Errorf("a configuration file is required (--config or %s_CONFIG)", config.EnvPrefix)
	}

	cfg, err := config.Load(config.WithConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logr.FromContextOrDiscard(cmd.Context())
	logger.V(1).Info("configuration loaded", "path", configPath, "sources", len(cfg.Sources))

	return toolbox.New(cfg, toolbox.WithProvenanceLedger())
}
