// Package cmd implements the CLI commands for mosaic.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"mosaic/internal/version"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "mosaic",
	Short:   "Multiview live stream session manager",
	Version: version.Short(),
	Long: `mosaic manages a grid of live video slots. Each slot plays one channel,
either passed through directly or relayed through a supervised transcoder
process. Slots are created, reassigned, and torn down over a REST API, and
grid arrangements can be saved as named layouts.`,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	// These flags are applied after the config file and environment are read,
	// preserving the priority: CLI flag > env var > config file > default.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., ./configs, /etc/mosaic, $HOME/.mosaic)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (text, json)")
}
