package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/franz/xwalk-migrate/internal/store"
	"github.com/franz/xwalk-migrate/internal/util"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recorded migration runs",
	Long: `List the runs recorded in the history database, newest first.

With a run ID, show that run in detail, including what happened to each
relocated directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntP("limit", "n", 20, "Number of runs to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	dbPath := GetConfigString("db", "xwm-state.db")
	limit, _ := cmd.Flags().GetInt("limit")

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	out := cmd.OutOrStdout()

	if len(args) == 1 {
		run, err := db.GetRun(args[0])
		if err != nil {
			return fmt.Errorf("failed to get run: %w", err)
		}
		if run == nil {
			return fmt.Errorf("run %s: %w", args[0], util.ErrNotFound)
		}
		printRunDetail(out, run)
		return nil
	}

	runs, err := db.ListRuns(limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		util.WarnLog("No runs recorded in %s. Run 'xwm migrate' first.", dbPath)
		return nil
	}

	for _, run := range runs {
		fmt.Fprintln(out, runLine(run))
	}
	return nil
}

// runLine is the one-line listing form of a run
func runLine(run *store.Run) string {
	line := fmt.Sprintf("%s  %s  %-12s", run.RunID, run.StartedAt.Format(time.RFC3339), run.State)
	if run.WebviewVersion != "" {
		line += fmt.Sprintf("  webview %s (%s)", run.WebviewVersion, run.Layout)
	}
	if run.RecordsMigrated > 0 {
		line += fmt.Sprintf("  %s records", humanize.Comma(int64(run.RecordsMigrated)))
	}
	return line
}

func printRunDetail(w io.Writer, run *store.Run) {
	fmt.Fprintf(w, "Run:              %s\n", run.RunID)
	fmt.Fprintf(w, "Started:          %s (%s)\n", run.StartedAt.Format(time.RFC3339), humanize.Time(run.StartedAt))
	fmt.Fprintf(w, "Duration:         %s\n", run.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "State:            %s\n", run.State)
	if run.LegacyDir != "" {
		fmt.Fprintf(w, "Legacy data:      %s (removed: %t)\n", run.LegacyDir, run.LegacyRemoved)
	}
	if run.WebviewVersion != "" {
		fmt.Fprintf(w, "WebView:          %s (%s layout)\n", run.WebviewVersion, run.Layout)
	}
	fmt.Fprintf(w, "Records migrated: %s\n", humanize.Comma(int64(run.RecordsMigrated)))
	if run.Error != "" {
		fmt.Fprintf(w, "Error:            %s\n", run.Error)
	}

	if len(run.Relocations) == 0 {
		return
	}
	fmt.Fprintln(w, "Directories:")
	for _, r := range run.Relocations {
		if r.Error != "" {
			fmt.Fprintf(w, "  %-10s %s (%s)\n", r.Name, r.Outcome, r.Error)
		} else {
			fmt.Fprintf(w, "  %-10s %s\n", r.Name, r.Outcome)
		}
	}
}
