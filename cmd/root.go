/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// rootCmd plays a video in a loop when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "loopwatch [url]",
	Short: "Play a YouTube video in a browser, forever",
	Long: `loopwatch opens a YouTube video in a Chromium browser, switches off the
"autoplay next" toggle, starts playback and waits for the video to end.
It then closes the browser, waits a few seconds and starts over.

The URL must contain youtube.com/watch?v= or youtu.be/. Without one, the
configured default video is played.

Every attempt is recorded in a local history database, and the live status
can be queried with 'loopwatch status', which is handy in tmux status lines.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	Args:          cobra.MaximumNArgs(1),
	RunE:          runLoop,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	addLoopFlags(rootCmd)
}
