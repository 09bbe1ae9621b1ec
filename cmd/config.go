/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jfmyers9/loopwatch/internal/config"
	"github.com/spf13/cobra"
)

// configCmd prints the effective configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Print the configuration loopwatch would run with, after merging
~/.config/loopwatch/config.yaml and LOOPWATCH_* environment variables.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		printConfig(cmd.OutOrStdout(), cfg)
		return nil
	},
}

// configInitCmd writes the current configuration to the config file
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the current settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(config.GetConfigDir(), "config.yaml")

		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := cfg.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().Bool("force", false, "Overwrite an existing config file")
}

func printConfig(w io.Writer, cfg *config.Config) {
	metricsAddr := cfg.Metrics.Addr
	if metricsAddr == "" {
		metricsAddr = "(disabled)"
	}
	execPath := cfg.Browser.ExecPath
	if execPath == "" {
		execPath = "(auto)"
	}

	fmt.Fprintf(w, "default_url:      %s\n", cfg.DefaultURL)
	fmt.Fprintf(w, "poll_interval:    %ds\n", cfg.PollInterval)
	fmt.Fprintf(w, "restart_delay:    %ds\n", cfg.RestartDelay)
	fmt.Fprintf(w, "wait_timeout:     %ds\n", cfg.WaitTimeout)
	fmt.Fprintf(w, "data_dir:         %s\n", cfg.DataDir)
	fmt.Fprintf(w, "browser.exec:     %s\n", execPath)
	fmt.Fprintf(w, "browser.headless: %t\n", cfg.Browser.Headless)
	fmt.Fprintf(w, "browser.flags:    %s\n", strings.Join(cfg.Browser.ExtraFlags, " "))
	fmt.Fprintf(w, "status.format:    %s\n", cfg.Status.OutputFormat)
	fmt.Fprintf(w, "status.width:     %d\n", cfg.Status.OutputWidth)
	fmt.Fprintf(w, "metrics.addr:     %s\n", metricsAddr)
}
