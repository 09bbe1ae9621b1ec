/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jfmyers9/loopwatch/internal/browser"
	"github.com/jfmyers9/loopwatch/internal/config"
	"github.com/jfmyers9/loopwatch/internal/daemon"
	"github.com/jfmyers9/loopwatch/internal/session"
	"github.com/jfmyers9/loopwatch/internal/target"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// historyRetention is how long attempts stay in the history database
const historyRetention = 30 * 24 * time.Hour

func addLoopFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("poll-interval", 0, "Seconds between player state queries (overrides config)")
	f.Int("restart-delay", 0, "Seconds to wait between attempts (overrides config)")
	f.Int("wait-timeout", 0, "Seconds to wait for page elements (overrides config)")
	f.Bool("headless", false, "Run the browser without a window (overrides config)")
	f.String("data-dir", "", "Data directory for status and history (default: ~/.local/share/loopwatch)")
	f.String("log-file", "", "Log file path (default: stderr)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("metrics-addr", "", "Serve /metrics and /status on this address (overrides config)")
	f.Bool("no-history", false, "Do not record attempts in the history database")
}

func runLoop(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	t, err := resolveTarget(args, cfg.DefaultURL)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No URL given, playing %s\n", t.URL())
	}

	logFile, _ := cmd.Flags().GetString("log-file")
	logLevel, _ := cmd.Flags().GetString("log-level")
	logger := setupLogger(logFile, logLevel)

	logger.Info().
		Str("version", version).
		Str("target", t.URL()).
		Str("video_id", t.VideoID()).
		Msg("Starting loopwatch")

	// Ensure data directory exists
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	logger.Info().Str("data_dir", cfg.DataDir).Msg("Using data directory")

	historyDB := filepath.Join(cfg.DataDir, "history.db")
	if noHistory, _ := cmd.Flags().GetBool("no-history"); noHistory {
		historyDB = ""
	}

	launcher := browser.NewChromeLauncher(browser.Options{
		ExecPath:   cfg.Browser.ExecPath,
		Headless:   cfg.Browser.Headless,
		ExtraFlags: cfg.Browser.ExtraFlags,
	}, logger)

	d, err := daemon.New(daemon.Config{
		Session: session.Config{
			WaitTimeout:  cfg.WaitTimeoutDuration(),
			PollInterval: cfg.PollIntervalDuration(),
		},
		RestartDelay:     cfg.RestartDelayDuration(),
		StateFile:        statusPath(cfg),
		HistoryDB:        historyDB,
		HistoryRetention: historyRetention,
		MetricsAddr:      cfg.Metrics.Addr,
	}, launcher, logger)
	if err != nil {
		return fmt.Errorf("failed to create loop: %w", err)
	}

	// Blocks until shutdown signal
	runErr := d.Run(t)

	if err := d.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
	}

	if runErr != nil {
		return fmt.Errorf("loop error: %w", runErr)
	}

	logger.Info().Msg("Stopped")
	return nil
}

// applyFlags overrides config values with flags given on the command line
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()

	if f.Changed("poll-interval") {
		cfg.PollInterval, _ = f.GetInt("poll-interval")
	}
	if f.Changed("restart-delay") {
		cfg.RestartDelay, _ = f.GetInt("restart-delay")
	}
	if f.Changed("wait-timeout") {
		cfg.WaitTimeout, _ = f.GetInt("wait-timeout")
	}
	if f.Changed("headless") {
		cfg.Browser.Headless, _ = f.GetBool("headless")
	}
	if f.Changed("data-dir") {
		cfg.DataDir, _ = f.GetString("data-dir")
	}
	if f.Changed("metrics-addr") {
		cfg.Metrics.Addr, _ = f.GetString("metrics-addr")
	}
}

// resolveTarget returns the address to loop. The built-in default is used
// verbatim; anything the user supplies, including a configured default, is
// validated.
func resolveTarget(args []string, defaultURL string) (target.Target, error) {
	raw := defaultURL
	if len(args) > 0 {
		raw = args[0]
	}

	if raw == "" || raw == target.DefaultURL {
		return target.Default(), nil
	}

	t, err := target.Parse(raw)
	if err != nil {
		return target.Target{}, fmt.Errorf("%w: %s", err, raw)
	}
	return t, nil
}

// statusPath is where a running loop publishes its live status
func statusPath(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "status.json")
}

// setupLogger creates a logger with the specified configuration
func setupLogger(logFile, logLevel string) zerolog.Logger {
	// Parse log level
	level := zerolog.InfoLevel
	switch logLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	// Set up output
	var output *os.File
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			output = os.Stderr
		} else {
			output = f
		}
	} else {
		output = os.Stderr
	}

	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	// Use pretty console output if logging to stderr
	if output == os.Stderr {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	return logger
}
