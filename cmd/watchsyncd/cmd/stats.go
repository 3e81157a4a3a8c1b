package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/finbridge/watchsync/pkg/config"
	"github.com/finbridge/watchsync/pkg/kvs"
	"github.com/finbridge/watchsync/pkg/logging"
	"github.com/finbridge/watchsync/pkg/sessionstore"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print stored session statistics",
	Long: `Open the configured key-value store, tally the stored session
records per platform, and print the result as JSON.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewFileLoader(cfgFile).Load()
	if err != nil {
		return err
	}

	// Quiet logger: only the stats JSON should reach stdout
	logger := logging.NewConsoleLoggerWithWriter("watchsyncd", logging.LevelWarn, false, os.Stderr)

	backend, err := kvs.New(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = backend.Close() }()

	store := sessionstore.New(backend, logger)
	defer store.Close()

	stats, err := store.GetStats(cmd.Context())
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
