package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/franz/xwalk-migrate/internal/layout"
	"github.com/franz/xwalk-migrate/internal/legacy"
	"github.com/franz/xwalk-migrate/internal/locate"
	"github.com/franz/xwalk-migrate/internal/store"
	"github.com/franz/xwalk-migrate/internal/transcode"
	"github.com/franz/xwalk-migrate/internal/util"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that a migration could run, without changing anything",
	Long: `Run diagnostic checks before migrating.

This command checks:
- SQLite version (built in)
- Whether Crosswalk data exists and its local storage file is intact
- WebView version lookup and the resulting layout
- Whether the storage root is writable
- Whether the legacy data and the destination share a filesystem
- Whether a previous attempt was recorded
- The run history database and its last run

Nothing is moved or deleted.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	util.InfoLog("=== XWM Doctor - Migration Diagnostics ===")
	util.InfoLog("")

	candidates, err := configuredCandidates()
	if err != nil {
		return err
	}
	origin, err := configuredOrigin()
	if err != nil {
		return err
	}
	primary, fallback := versionSources()
	root := locate.StorageRoot(candidates[0])

	results := []checkResult{checkSQLite()}

	loc, locResult := checkLegacyData(candidates)
	results = append(results, locResult)
	if loc != nil {
		results = append(results, checkLegacyLocalStorage(loc.LegacyDir))
		root = loc.Root
	}

	results = append(results, checkWebviewVersion(primary, fallback, GetConfigString("webview-package", ""), root, origin))
	results = append(results, checkWritable(root))
	if loc != nil {
		results = append(results, checkSameFilesystem(loc.LegacyDir, root))
	}
	results = append(results, checkMarker(filepath.Join(candidates[0], markerName)))
	results = append(results, checkDatabase(GetConfigString("db", "")))

	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("Some checks failed. A migration run now would end in Failed.")
		return fmt.Errorf("diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("Some checks produced warnings. Review them before migrating.")
	} else {
		util.SuccessLog("All checks passed.")
	}

	return nil
}

// checkSQLite verifies the built-in SQLite answers
func checkSQLite() checkResult {
	version := legacy.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}
	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkLegacyData reports where Crosswalk data lives. Finding none is not
// a problem, there is just nothing to do.
func checkLegacyData(candidates []string) (*locate.Location, checkResult) {
	fs := afero.NewOsFs()
	loc, err := locate.Locate(fs, candidates)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, checkResult{
				name:    "Crosswalk data",
				message: "none found (nothing to migrate)",
			}
		}
		return nil, checkResult{
			name:    "Crosswalk data",
			error:   true,
			message: err.Error(),
		}
	}

	size, _ := util.TreeSize(fs, loc.LegacyDir)
	return loc, checkResult{
		name:    "Crosswalk data",
		message: fmt.Sprintf("%s (%s)", loc.LegacyDir, humanize.Bytes(uint64(size))),
	}
}

// checkLegacyLocalStorage opens the local storage file read-only and runs
// an integrity check on it
func checkLegacyLocalStorage(legacyDir string) checkResult {
	path := filepath.Join(legacyDir, layout.LocalStorageDir, transcode.LegacyFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return checkResult{
			name:    "Legacy local storage",
			message: "not present (only directories will be moved)",
		}
	}

	db, err := legacy.Open(path)
	if err != nil {
		return checkResult{
			name:    "Legacy local storage",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", path, err),
		}
	}
	defer db.Close()

	if err := db.CheckIntegrity(); err != nil {
		return checkResult{
			name:    "Legacy local storage",
			error:   true,
			message: err.Error(),
		}
	}

	count, err := db.Count()
	if err != nil {
		return checkResult{
			name:    "Legacy local storage",
			error:   true,
			message: err.Error(),
		}
	}

	return checkResult{
		name:    "Legacy local storage",
		message: fmt.Sprintf("%s records, integrity ok", humanize.Comma(int64(count))),
	}
}

// checkWebviewVersion resolves the destination layout the way migrate would
func checkWebviewVersion(primary, fallback layout.VersionSource, packageID, root string, origin layout.Origin) checkResult {
	resolver := &layout.Resolver{
		Primary:   primary,
		Fallback:  fallback,
		PackageID: packageID,
		Origin:    origin,
	}
	lay, err := resolver.Resolve(root)
	if err != nil {
		return checkResult{
			name:    "WebView version",
			error:   true,
			message: err.Error(),
		}
	}
	return checkResult{
		name:    "WebView version",
		message: fmt.Sprintf("%s (%s layout, local storage at %s)", lay.Version, lay.Kind, lay.StorePath),
	}
}

// checkWritable verifies new entries can be created under the storage root
func checkWritable(root string) checkResult {
	info, err := os.Stat(root)
	if err != nil {
		return checkResult{
			name:    "Storage root",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", root, err),
		}
	}
	if !info.IsDir() {
		return checkResult{
			name:    "Storage root",
			error:   true,
			message: fmt.Sprintf("%s is not a directory", root),
		}
	}

	testFile := filepath.Join(root, ".xwm_write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return checkResult{
			name:    "Storage root",
			error:   true,
			message: fmt.Sprintf("cannot write to %s: %v", root, err),
		}
	}
	f.Close()
	os.Remove(testFile)

	return checkResult{
		name:    "Storage root",
		message: fmt.Sprintf("%s (writable)", root),
	}
}

// checkSameFilesystem warns when renames into the destination would cross
// a mount point and fail
func checkSameFilesystem(legacyDir, root string) checkResult {
	same, err := util.IsSameFilesystem(legacyDir, root)
	if err != nil {
		return checkResult{
			name:    "Filesystem",
			warning: true,
			message: fmt.Sprintf("cannot compare devices: %v", err),
		}
	}
	if !same {
		return checkResult{
			name:    "Filesystem",
			warning: true,
			message: "legacy data is on another filesystem; directory renames will fail",
		}
	}
	return checkResult{
		name:    "Filesystem",
		message: "legacy data and destination share a filesystem",
	}
}

// checkMarker reports a recorded earlier attempt
func checkMarker(markerPath string) checkResult {
	data, err := os.ReadFile(markerPath)
	if err != nil {
		return checkResult{
			name:    "Previous attempt",
			message: "none recorded",
		}
	}
	return checkResult{
		name:    "Previous attempt",
		warning: true,
		message: fmt.Sprintf("recorded at %s; migrate --persist-attempt will not run again", strings.TrimSpace(string(data))),
	}
}

// checkDatabase verifies the run history database and reports the last run
func checkDatabase(dbPath string) checkResult {
	if dbPath == "" {
		return checkResult{
			name:    "History database",
			warning: true,
			message: "no database path specified (use --db flag or config)",
		}
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "History database",
				message: fmt.Sprintf("%s (will be created on first run)", dbPath),
			}
		}
		return checkResult{
			name:    "History database",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", dbPath, err),
		}
	}
	if !info.Mode().IsRegular() {
		return checkResult{
			name:    "History database",
			error:   true,
			message: fmt.Sprintf("%s is not a regular file", dbPath),
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return checkResult{
			name:    "History database",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", dbPath, err),
		}
	}
	defer db.Close()

	if err := db.CheckIntegrity(); err != nil {
		return checkResult{
			name:    "History database",
			error:   true,
			message: fmt.Sprintf("integrity check failed: %v", err),
		}
	}

	count, _ := db.CountRuns()
	last, err := db.LastRun()
	if err != nil || last == nil {
		return checkResult{
			name:    "History database",
			message: fmt.Sprintf("%s (%s, no runs)", dbPath, humanize.Bytes(uint64(info.Size()))),
		}
	}

	msg := fmt.Sprintf("%s (%s, %d runs, last %s ended %s)", dbPath, humanize.Bytes(uint64(info.Size())),
		count, humanize.Time(last.StartedAt), last.State)
	return checkResult{
		name:    "History database",
		warning: last.State == "Failed",
		message: msg,
	}
}
