package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/franz/xwalk-migrate/internal/host"
	"github.com/franz/xwalk-migrate/internal/migrate"
	"github.com/franz/xwalk-migrate/internal/report"
	"github.com/franz/xwalk-migrate/internal/store"
	"github.com/franz/xwalk-migrate/internal/transcode"
	"github.com/franz/xwalk-migrate/internal/util"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// markerName is written next to the files directory when persist-attempt is on
const markerName = ".xwalk-migration-attempted"

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Move Crosswalk data into the system WebView (runs once)",
	Long: `Migrate the embedded Crosswalk engine's data to the system WebView.

This command:
1. Looks for app_xwalkcore/Default under the files directories' parent
2. Asks the package manager for the WebView version to pick the layout
3. Converts local storage (LevelDB from version 79, SQLite before)
4. Renames Cache, Cookies, IndexedDB and databases into place
5. Deletes app_xwalkcore and runs the restart command

Nothing is deleted unless every step succeeded. With --persist-attempt a
marker file stops later runs from trying again.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().Bool("persist-attempt", false, "record the attempt on disk so it is never repeated")
	migrateCmd.Flags().String("restart-command", "", "command that relaunches the host app after success")
	migrateCmd.Flags().String("events-dir", "artifacts", "directory for the JSONL event log and summary report")

	viper.BindPFlag("persist-attempt", migrateCmd.Flags().Lookup("persist-attempt"))
	viper.BindPFlag("restart-command", migrateCmd.Flags().Lookup("restart-command"))
	viper.BindPFlag("events-dir", migrateCmd.Flags().Lookup("events-dir"))
}

func runMigrate(cmd *cobra.Command, args []string) error {
	candidates, err := configuredCandidates()
	if err != nil {
		return err
	}
	origin, err := configuredOrigin()
	if err != nil {
		return err
	}
	primary, fallback := versionSources()

	verbose := GetConfigBool("verbose")
	quiet := GetConfigBool("quiet")

	logLevel := report.LevelInfo
	if quiet {
		logLevel = report.LevelWarning
	} else if verbose {
		logLevel = report.LevelDebug
	}

	eventsDir := GetConfigString("events-dir", "artifacts")
	logger, err := report.NewEventLogger(eventsDir, logLevel)
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		logger = report.NullLogger()
	}
	defer logger.Close()

	if logger.Path() != "" {
		util.InfoLog("Event log: %s", logger.Path())
	}

	markerPath := ""
	if GetConfigBool("persist-attempt") {
		markerPath = filepath.Join(candidates[0], markerName)
	}
	guard := migrate.NewGuard(afero.NewOsFs(), markerPath)

	transcoder := &transcode.Transcoder{}
	var bar *progressbar.ProgressBar
	if !quiet && util.IsTerminal(os.Stderr.Fd()) {
		transcoder.Progress = func(done, total int) {
			if bar == nil {
				bar = newProgressBar(total)
			}
			bar.Set(done)
		}
	}

	migrator := migrate.New(migrate.Config{
		Fs:         afero.NewOsFs(),
		Candidates: candidates,
		Origin:     origin,
		PackageID:  GetConfigString("webview-package", ""),
		Primary:    primary,
		Fallback:   fallback,
		Restarter:  host.NewCommandRestarter(GetConfigString("restart-command", "")),
		Events:     logger,
		Transcoder: transcoder,
	})

	util.InfoLog("=== Migration ===")
	outcome := migrator.Run(guard)
	if bar != nil {
		bar.Finish()
	}

	util.InfoLog("")
	util.InfoLog("Run %s finished in %s: %s", outcome.RunID, outcome.Duration.Round(time.Millisecond), outcome.State)

	if outcome.State != migrate.NotStarted {
		recordRun(GetConfigString("db", "xwm-state.db"), outcome)
	}
	if outcome.State != migrate.NotStarted && outcome.State != migrate.NoLegacyData {
		writeSummary(outcome, eventsDir, logger.Path())
	}

	switch {
	case outcome.State == migrate.Failed:
		return fmt.Errorf("migration failed: %w", outcome.Err)
	case outcome.State == migrate.NotStarted:
		util.WarnLog("%v", outcome.Err)
	case outcome.State == migrate.NoLegacyData:
		util.InfoLog("No Crosswalk data found; nothing to migrate")
	case outcome.Err != nil:
		util.WarnLog("Migrated, but: %v", outcome.Err)
	}
	return nil
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Local storage"),
		progressbar.OptionSetWidth(util.ProgressWidth()),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("records"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// summaryFromOutcome flattens an outcome into the report model
func summaryFromOutcome(o *migrate.Outcome, eventLogPath string) *report.SummaryReport {
	s := &report.SummaryReport{
		GeneratedAt:     time.Now(),
		Duration:        o.Duration,
		RunID:           o.RunID,
		State:           o.State.String(),
		LegacyRemoved:   o.LegacyRemoved,
		RecordsMigrated: o.RecordsMigrated,
		EventLogPath:    eventLogPath,
	}
	if o.Err != nil {
		s.Error = o.Err.Error()
	}
	if o.Location != nil {
		s.LegacyDir = o.Location.LegacyDir
	}
	if o.Layout != nil {
		s.WebviewVersion = o.Layout.Version
		s.Layout = o.Layout.Kind.String()
		s.Backend = o.Layout.Backend.String()
		s.StorePath = o.Layout.StorePath
	}
	if r := o.Relocation; r != nil {
		s.DirectoriesMoved = r.Moved
		s.DirectoriesSkipped = r.Skipped
		s.BytesRelocated = r.Bytes
		if len(r.Failed) > 0 {
			s.DirectoryFailures = make(map[string]string, len(r.Failed))
			for name, err := range r.Failed {
				s.DirectoryFailures[name] = err.Error()
			}
		}
	}
	return s
}

func writeSummary(o *migrate.Outcome, eventsDir, eventLogPath string) {
	timestamp := time.Now().Format("20060102-150405")
	reportPath := filepath.Join(eventsDir, "reports", timestamp, "summary.md")

	if err := report.WriteMarkdownReport(summaryFromOutcome(o, eventLogPath), reportPath); err != nil {
		util.WarnLog("Failed to write summary report: %v", err)
		return
	}
	util.SuccessLog("Summary report saved to: %s", reportPath)
}

// runFromOutcome converts an outcome into a history row
func runFromOutcome(o *migrate.Outcome) *store.Run {
	run := &store.Run{
		RunID:           o.RunID,
		StartedAt:       o.Started,
		Duration:        o.Duration,
		State:           o.State.String(),
		RecordsMigrated: o.RecordsMigrated,
		LegacyRemoved:   o.LegacyRemoved,
	}
	if o.Err != nil {
		run.Error = o.Err.Error()
	}
	if o.Location != nil {
		run.LegacyDir = o.Location.LegacyDir
	}
	if o.Layout != nil {
		run.WebviewVersion = o.Layout.Version
		run.Layout = o.Layout.Kind.String()
	}
	if r := o.Relocation; r != nil {
		for _, name := range r.Moved {
			run.Relocations = append(run.Relocations, store.Relocation{Name: name, Outcome: store.RelocationMoved})
		}
		for _, name := range r.Skipped {
			run.Relocations = append(run.Relocations, store.Relocation{Name: name, Outcome: store.RelocationSkipped})
		}
		for name, err := range r.Failed {
			run.Relocations = append(run.Relocations, store.Relocation{Name: name, Outcome: store.RelocationFailed, Error: err.Error()})
		}
	}
	return run
}

// recordRun appends the outcome to the history database. Failing to do
// so never changes the result of the migration.
func recordRun(dbPath string, o *migrate.Outcome) {
	db, err := store.Open(dbPath)
	if err != nil {
		util.WarnLog("Failed to open history database: %v", err)
		return
	}
	defer db.Close()

	if err := db.InsertRun(runFromOutcome(o)); err != nil {
		util.WarnLog("Failed to record run: %v", err)
		return
	}
	util.DebugLog("Recorded run %s in %s", o.RunID, dbPath)
}
