package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/jfmyers9/loopwatch/internal/daemon"
	"github.com/spf13/cobra"
)

// uninstallCmd represents the uninstall command
var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the launchd agent",
	Long: `Stop the launchd agent created by "loopwatch install" and delete its plist
from ~/Library/LaunchAgents/. The status file and session history are kept.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		plistPath, err := daemon.GetPlistPath()
		if err != nil {
			return fmt.Errorf("failed to get plist path: %w", err)
		}
		return removeAgent(cmd.OutOrStdout(), plistPath, unloadAgent)
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}

// removeAgent boots the agent out of launchd and deletes its plist. A failed
// bootout is reported but the plist is removed anyway so the agent does not
// come back on the next login.
func removeAgent(w io.Writer, plistPath string, unload func() error) error {
	if _, err := os.Stat(plistPath); errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(w, "%s is not installed\n", serviceTarget())
		return nil
	}

	fmt.Fprintf(w, "Stopping %s...\n", serviceTarget())
	if err := unload(); err != nil {
		fmt.Fprintf(w, "Warning: %v\n", err)
	} else {
		fmt.Fprintln(w, "✓ Loop stopped")
	}

	if err := os.Remove(plistPath); err != nil {
		return fmt.Errorf("failed to remove plist file: %w", err)
	}
	fmt.Fprintf(w, "✓ Removed %s\n", plistPath)
	fmt.Fprintln(w, "\nThe loop will no longer start on login. Reinstall with:")
	fmt.Fprintln(w, "  loopwatch install [url]")

	return nil
}
