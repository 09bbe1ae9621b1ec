/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jfmyers9/loopwatch/internal/config"
	"github.com/jfmyers9/loopwatch/internal/history"
	"github.com/spf13/cobra"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent playback attempts",
	Long: `Print the most recent playback attempts recorded by the loop, newest
first, followed by the number of attempts per outcome.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntP("limit", "n", 20, "Number of attempts to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "history.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Fprintln(cmd.OutOrStdout(), "No history recorded yet")
		return nil
	}

	store, err := history.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	records, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}

	summary, err := store.Summary(ctx)
	if err != nil {
		return err
	}

	total, err := store.Count(ctx)
	if err != nil {
		return err
	}

	printHistory(cmd.OutOrStdout(), records, summary, total)
	return nil
}

// printHistory writes a fixed-width table of attempts and the outcome totals
func printHistory(w io.Writer, records []history.Record, summary []history.OutcomeCount, total int) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No history recorded yet")
		return
	}

	fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
		padToWidth("STARTED", 19),
		padToWidth("OUTCOME", 13),
		padToWidth("DURATION", 9),
		padToWidth("POLLS", 5),
		"VIDEO")

	for _, r := range records {
		fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
			padToWidth(r.StartedAt.Local().Format("2006-01-02 15:04:05"), 19),
			padToWidth(string(r.Outcome), 13),
			padToWidth(formatDuration(r.Duration()), 9),
			padToWidth(fmt.Sprint(r.Polls), 5),
			videoLabel(r))
	}

	fmt.Fprintln(w)
	if total > len(records) {
		fmt.Fprintf(w, "Showing %d of %d attempts\n", len(records), total)
	}
	fmt.Fprintf(w, "%d attempts:", total)
	for _, c := range summary {
		fmt.Fprintf(w, " %s=%d", c.Outcome, c.Count)
	}
	fmt.Fprintln(w)
}

// videoLabel prefers the short video id and falls back to the full address
func videoLabel(r history.Record) string {
	if r.VideoID != "" {
		return r.VideoID
	}
	return r.Target
}

// formatDuration formats a duration as M:SS or H:MM:SS
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
