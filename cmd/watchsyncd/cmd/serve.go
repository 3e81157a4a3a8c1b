package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/finbridge/watchsync/pkg/config"
	"github.com/finbridge/watchsync/pkg/filewatcher"
	"github.com/finbridge/watchsync/pkg/health"
	"github.com/finbridge/watchsync/pkg/kvs"
	"github.com/finbridge/watchsync/pkg/logging"
	"github.com/finbridge/watchsync/pkg/platform"
	"github.com/finbridge/watchsync/pkg/server"
	"github.com/finbridge/watchsync/pkg/sessionerrors"
	"github.com/finbridge/watchsync/pkg/sessionstore"
	"github.com/finbridge/watchsync/pkg/validator"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the session lifecycle service",
	Long: `Start watchsyncd with the specified configuration.

The server will:
- Load the configuration file
- Open the configured key-value store (memory, LevelDB, or Redis)
- Register the platform clients and start the health monitor
- Serve the admin HTTP API
- Reload the logging level when the config file changes
- Handle graceful shutdown on SIGTERM/SIGINT`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func buildLogger(cfg *config.Config) (*logging.ConsoleLogger, error) {
	var fileCfg *logging.FileRotationConfig
	if cfg.Logging.File != nil && cfg.Logging.File.Path != "" {
		fileCfg = &logging.FileRotationConfig{
			Path:       cfg.Logging.File.Path,
			MaxSizeMB:  cfg.Logging.File.MaxSizeMB,
			MaxBackups: cfg.Logging.File.MaxBackups,
			MaxAge:     cfg.Logging.File.MaxAge,
			Compress:   cfg.Logging.File.Compress,
		}
	}

	return logging.NewLoggerWithFile("watchsyncd", logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Color, fileCfg)
}

func runServe(cmd *cobra.Command, args []string) error {
	loader := config.NewFileLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("Starting watchsyncd", "version", version, "service", cfg.Service.Name)

	if raw, readErr := os.ReadFile(cfgFile); readErr == nil {
		if missing := config.MissingEnvVars(string(raw)); len(missing) > 0 {
			logger.Warn("Config references unset environment variables", "vars", missing)
		}
	}

	backend, err := kvs.New(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = backend.Close() }()

	store := sessionstore.New(backend, logger)
	defer store.Close()

	registry := platform.NewRegistry()
	registry.Register(platform.MarketInOut, platform.NewMarketInOutClient(nil))
	registry.Register(platform.TradingView, platform.NewTradingViewClient(nil))

	monitor := health.NewMonitor(store, registry, cfg.Monitor, logger)
	defer monitor.Close()

	errlog := sessionerrors.NewLog(0, logger, nil)
	val := validator.New(store, monitor, registry, errlog, cfg.Validator, logger)
	srv := server.New(cfg, store, val, monitor, errlog, logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Hot reload: only the logging level is applied live, everything
	// else needs a restart
	watcher, err := filewatcher.New(cfgFile, 100*time.Millisecond)
	if err != nil {
		logger.Warn("Config hot reload disabled", "error", err)
	} else {
		defer func() { _ = watcher.Close() }()

		watcher.Subscribe(func(event filewatcher.Event) {
			if event.Err != nil {
				logger.Warn("Config watcher error", "error", event.Err)
				return
			}
			reloaded, loadErr := loader.Load()
			if loadErr != nil {
				logger.Warn("Ignoring config change, reload failed", "error", loadErr)
				return
			}
			logger.SetLevel(logging.ParseLevel(reloaded.Logging.Level))
			logger.Info("Applied logging level from config change", "level", reloaded.Logging.Level)
		})

		go func() {
			if watchErr := watcher.Run(ctx); watchErr != nil && watchErr != context.Canceled {
				logger.Error("Config watcher stopped", "error", watchErr)
			}
		}()
		logger.Info("Config hot reload enabled", "config_file", cfgFile)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if serveErr := srv.Start(); serveErr != nil && serveErr != http.ErrServerClosed {
			errChan <- serveErr
		} else {
			errChan <- nil
		}
	}()

	select {
	case <-stop:
		logger.Info("Shutdown signal received, stopping server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := <-errChan; err != nil {
			return err
		}
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("Server stopped successfully")
	return nil
}
