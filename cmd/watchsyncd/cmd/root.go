package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	version = "dev" // Set by build
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "watchsyncd",
	Short: "watchsyncd - session lifecycle service for watchlist sync",
	Long: `watchsyncd manages the platform sessions behind the watchlist-sync
dashboard. It stores sessions captured by the browser extension,
deduplicates them, monitors their health against MarketInOut and
TradingView, and exposes an admin HTTP API for the dashboard.`,
	Version: version,
	// Default to serve command when no subcommand is specified
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "watchsync.yaml", "Path to configuration file")
}
