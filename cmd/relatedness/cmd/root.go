// Package cmd provides the CLI commands for the relatedness core. Per
// spec.md section 6 ("the core is a library"), this is intentionally a
// thin wrapper for manual testing and operator diagnostics, not a product
// surface.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/relatedness-core/internal/logging"
	"github.com/Aman-CERP/relatedness-core/pkg/version"
)

var (
	configPath   string
	debugMode    bool
	vectorDBPath string

	loggingCleanup func()
)

// NewRootCmd creates the root command for the relatedness CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "relatedness",
		Short:   "Work item relatedness core — find semantically related issues",
		Version: version.Version,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			logCfg := logging.DefaultConfig()
			if debugMode {
				logCfg = logging.DebugConfig()
			}
			logger, cleanup, err := logging.Setup(logCfg)
			if err != nil {
				return err
			}
			loggingCleanup = cleanup
			slog.SetDefault(logger)
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if loggingCleanup != nil {
				loggingCleanup()
				loggingCleanup = nil
			}
			return nil
		},
	}
	cmd.SetVersionTemplate("relatedness version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a project directory to load .relatedness.yaml from (default: current directory)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&vectorDBPath, "vector-db-path", "", "Override the persisted index directory")

	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
