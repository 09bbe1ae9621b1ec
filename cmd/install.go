package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jfmyers9/loopwatch/internal/daemon"
	"github.com/spf13/cobra"
)

// installCmd represents the install command
var installCmd = &cobra.Command{
	Use:   "install [url]",
	Short: "Install the playback loop as a launchd agent",
	Long: `Install the playback loop as a launchd agent that runs automatically on login.

This command will:
  - Generate a launchd plist file that runs loopwatch with the given URL
  - Install it to ~/Library/LaunchAgents/
  - Load the agent with launchctl
  - Start the loop automatically

Without a URL, the agent plays the configured default video.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		// Reject a bad URL now rather than in a crash-looping agent
		var targetURL string
		if len(args) > 0 {
			t, err := resolveTarget(args, "")
			if err != nil {
				return err
			}
			targetURL = t.URL()
		}

		// Get the path to the current executable
		binaryPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}

		// Resolve symlinks to get the actual binary path
		binaryPath, err = filepath.EvalSymlinks(binaryPath)
		if err != nil {
			return fmt.Errorf("failed to resolve executable path: %w", err)
		}

		// Get the log path
		logPath, err := daemon.GetDefaultLogPath()
		if err != nil {
			return fmt.Errorf("failed to get log path: %w", err)
		}

		// Create log directory if it doesn't exist
		if err := os.MkdirAll(logPath, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		// Get home directory for working directory
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		// Generate plist
		config := daemon.PlistConfig{
			BinaryPath:       binaryPath,
			Target:           targetURL,
			LogPath:          logPath,
			WorkingDirectory: home,
		}

		plistContent, err := daemon.GeneratePlist(config)
		if err != nil {
			return fmt.Errorf("failed to generate plist: %w", err)
		}

		// Get plist path
		plistPath, err := daemon.GetPlistPath()
		if err != nil {
			return fmt.Errorf("failed to get plist path: %w", err)
		}

		// Create LaunchAgents directory if it doesn't exist
		launchAgentsDir := filepath.Dir(plistPath)
		if err := os.MkdirAll(launchAgentsDir, 0755); err != nil {
			return fmt.Errorf("failed to create LaunchAgents directory: %w", err)
		}

		// Check if plist already exists
		if _, err := os.Stat(plistPath); err == nil {
			fmt.Fprintln(out, "Agent is already installed, replacing it...")
			// A service that is not loaded fails bootout; that is fine here
			if err := unloadAgent(); err != nil {
				fmt.Fprintf(out, "Warning: %v\n", err)
			}
		}

		// Write plist file
		if err := os.WriteFile(plistPath, []byte(plistContent), 0644); err != nil {
			return fmt.Errorf("failed to write plist file: %w", err)
		}

		fmt.Fprintf(out, "✓ Installed plist to %s\n", plistPath)

		// Load the agent with launchctl
		if err := loadAgent(plistPath); err != nil {
			return fmt.Errorf("failed to load agent: %w", err)
		}

		fmt.Fprintln(out, "✓ Agent loaded and started successfully")
		fmt.Fprintf(out, "✓ Logs will be written to %s\n", logPath)
		fmt.Fprintln(out, "\nThe loop is now running and will start automatically on login.")
		fmt.Fprintln(out, "\nYou can check what it is doing with:")
		fmt.Fprintln(out, "  loopwatch status")
		fmt.Fprintln(out, "\nTo uninstall, run:")
		fmt.Fprintln(out, "  loopwatch uninstall")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}

// guiDomain returns the launchctl domain of the current user's session
func guiDomain() string {
	return fmt.Sprintf("gui/%d", os.Getuid())
}

// loadAgent loads the agent using launchctl
func loadAgent(plistPath string) error {
	cmd := exec.Command("launchctl", "bootstrap", guiDomain(), plistPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if out := strings.TrimSpace(string(output)); out != "" {
			return fmt.Errorf("launchctl bootstrap failed: %s", out)
		}
		return fmt.Errorf("failed to run launchctl bootstrap: %w", err)
	}

	return nil
}

// serviceTarget names the agent's service in the user's gui domain
func serviceTarget() string {
	return fmt.Sprintf("%s/%s", guiDomain(), daemon.LaunchdLabel)
}

// unloadAgent boots the agent's service out of launchd
func unloadAgent() error {
	output, err := exec.Command("launchctl", "bootout", serviceTarget()).CombinedOutput()
	if err != nil {
		if out := strings.TrimSpace(string(output)); out != "" {
			return fmt.Errorf("launchctl bootout failed: %s", out)
		}
		return fmt.Errorf("failed to run launchctl bootout: %w", err)
	}

	return nil
}
