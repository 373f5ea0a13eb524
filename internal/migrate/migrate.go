// Package migrate drives a one-shot move of Crosswalk data into the
// system WebView's directories.
package migrate

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/franz/xwalk-migrate/internal/host"
	"github.com/franz/xwalk-migrate/internal/layout"
	"github.com/franz/xwalk-migrate/internal/locate"
	"github.com/franz/xwalk-migrate/internal/relocate"
	"github.com/franz/xwalk-migrate/internal/report"
	"github.com/franz/xwalk-migrate/internal/transcode"
	"github.com/franz/xwalk-migrate/internal/util"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Config wires the migrator to its collaborators
type Config struct {
	// Fs is used for locating, relocating and cleanup. The key/value
	// store always lives on the OS filesystem.
	Fs afero.Fs

	// Candidates are files directories, internal storage first
	Candidates []string

	Origin    layout.Origin
	PackageID string
	Primary   layout.VersionSource
	Fallback  layout.VersionSource

	Restarter host.Restarter
	Events    *report.EventLogger

	// Directories relocated unchanged; defaults to relocate.DefaultNames
	Directories []string

	Transcoder *transcode.Transcoder
	Retry      *util.RetryConfig
}

// Migrator runs the state machine for one process
type Migrator struct {
	cfg      Config
	resolver *layout.Resolver
	guard    *Guard // used when Run is given none
	outcome  *Outcome
}

// New fills in defaults for unset collaborators
func New(cfg Config) *Migrator {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Origin == (layout.Origin{}) {
		cfg.Origin = layout.DefaultOrigin
	}
	if cfg.Restarter == nil {
		cfg.Restarter = host.NopRestarter{}
	}
	if cfg.Directories == nil {
		cfg.Directories = relocate.DefaultNames
	}
	if cfg.Transcoder == nil {
		cfg.Transcoder = &transcode.Transcoder{}
	}
	if cfg.Retry == nil {
		cfg.Retry = util.DefaultRetryConfig()
	}

	return &Migrator{
		cfg: cfg,
		resolver: &layout.Resolver{
			Primary:   cfg.Primary,
			Fallback:  cfg.Fallback,
			PackageID: cfg.PackageID,
			Origin:    cfg.Origin,
		},
		guard: NewGuard(cfg.Fs, ""),
	}
}

// Run performs the migration if guard has not been consumed yet. It never
// returns an error to the caller: failures end in the Failed state, leave
// the legacy data where it was, and are described by the Outcome.
//
// A nil guard falls back to one owned by the Migrator, so repeated calls
// on the same Migrator still run at most once.
func (m *Migrator) Run(guard *Guard) *Outcome {
	o := &Outcome{
		RunID:   uuid.NewString(),
		State:   NotStarted,
		Started: time.Now(),
	}
	m.outcome = o
	m.cfg.Events.SetRunID(o.RunID)
	defer func() { o.Duration = time.Since(o.Started) }()

	if guard == nil {
		guard = m.guard
	}
	if err := guard.TryAcquire(); err != nil {
		o.Err = err
		util.InfoLog("Skipping migration: %v", err)
		return o
	}

	m.enter(Locating)
	loc, err := locate.Locate(m.cfg.Fs, m.cfg.Candidates)
	if err != nil {
		m.cfg.Events.LogLocate("", false)
		if errors.Is(err, util.ErrNotFound) {
			util.DebugLog("No Crosswalk data: %v", err)
			m.enter(NoLegacyData)
			return o
		}
		return m.fail(report.EventLocate, "", err)
	}
	o.Location = loc
	m.cfg.Events.LogLocate(loc.LegacyDir, true)
	util.InfoLog("Found Crosswalk data in %s", loc.LegacyDir)

	m.enter(Resolving)
	lay, err := m.resolver.Resolve(loc.Root)
	if err != nil {
		return m.fail(report.EventResolve, loc.Root, err)
	}
	o.Layout = lay
	m.cfg.Events.LogResolve(lay.Version, lay.Kind.String(), lay.Backend.String(), lay.StorePath)
	util.InfoLog("WebView %s: %s layout", lay.Version, lay.Kind)

	m.enter(Migrating)
	legacyDB := filepath.Join(loc.LegacyDir, layout.LocalStorageDir, transcode.LegacyFileName)
	if !util.Exists(m.cfg.Fs, legacyDB) {
		util.DebugLog("No local storage file at %s", legacyDB)
		legacyDB = ""
	}
	if err := m.convertLocalStorage(legacyDB, lay); err != nil {
		return m.fail(report.EventTranscode, legacyDB, err)
	}
	if err := m.relocateDirectories(loc, lay); err != nil {
		return m.fail(report.EventRelocate, loc.LegacyDir, err)
	}
	if err := m.handOverLocalStorage(legacyDB, lay); err != nil {
		return m.fail(report.EventTranscode, legacyDB, err)
	}

	m.enter(Succeeded)
	util.SuccessLog("Migrated %d local storage records and %d directories",
		o.RecordsMigrated, len(o.DirectoriesMoved))

	m.enter(Cleanup)
	m.cleanup(loc)

	err = m.cfg.Restarter.Restart()
	m.cfg.Events.LogRestart(err)
	if err != nil {
		util.WarnLog("Host restart failed: %v", err)
	}
	m.enter(Restarted)

	return o
}

// Outcome returns the result of the last Run, or nil before the first
func (m *Migrator) Outcome() *Outcome {
	return m.outcome
}

func (m *Migrator) enter(next State) {
	o := m.outcome
	util.DebugLog("Migration state: %s -> %s", o.State, next)
	m.cfg.Events.LogState(o.State.String(), next.String())
	o.State = next
	o.Trail = append(o.Trail, next)
}

func (m *Migrator) fail(phase report.EventType, path string, err error) *Outcome {
	o := m.outcome
	o.Err = err
	m.cfg.Events.LogError(phase, path, err)
	util.ErrorLog("Migration failed during %s (%s): %v", phase, path, err)
	util.ErrorLog("Legacy data kept; migration will not be retried by this process")
	m.enter(Failed)
	return o
}

// convertLocalStorage writes the key/value store from the legacy file.
// The legacy file is only read, so a later failure leaves it in place. A
// relational destination is only validated here; the file itself moves in
// handOverLocalStorage once every directory made it.
func (m *Migrator) convertLocalStorage(legacyDB string, lay *layout.Layout) error {
	if legacyDB == "" {
		return nil
	}

	switch lay.Backend {
	case layout.KeyValueLog:
		start := time.Now()
		n, err := m.cfg.Transcoder.Transcode(legacyDB, lay.StorePath, m.cfg.Origin.Prefix())
		m.cfg.Events.LogTranscode(legacyDB, lay.StorePath, n, time.Since(start), err)
		if err != nil {
			return err
		}
		m.recordLocalStorage(n, lay)
		return nil
	case layout.RelationalFile:
		_, err := transcode.CountRelational(legacyDB)
		if err != nil {
			m.cfg.Events.LogTranscode(legacyDB, lay.StorePath, 0, 0, err)
		}
		return err
	}
	return fmt.Errorf("unsupported backend %s: %w", lay.Backend, util.ErrTranscode)
}

// handOverLocalStorage renames the legacy file into a relational
// destination. It runs last so a relocation failure never strands it.
func (m *Migrator) handOverLocalStorage(legacyDB string, lay *layout.Layout) error {
	if legacyDB == "" || lay.Backend != layout.RelationalFile {
		return nil
	}

	start := time.Now()
	n, err := transcode.MoveRelational(m.cfg.Fs, legacyDB, lay.StorePath)
	m.cfg.Events.LogTranscode(legacyDB, lay.StorePath, n, time.Since(start), err)
	if err != nil {
		return err
	}
	m.recordLocalStorage(n, lay)
	return nil
}

func (m *Migrator) recordLocalStorage(n int, lay *layout.Layout) {
	m.outcome.RecordsMigrated = n
	util.InfoLog("Local storage: %s records -> %s", humanize.Comma(int64(n)), lay.StorePath)
}

func (m *Migrator) relocateDirectories(loc *locate.Location, lay *layout.Layout) error {
	result := relocate.Relocate(m.cfg.Fs, loc.LegacyDir, lay.ProfileDir, m.cfg.Directories, m.cfg.Retry)
	m.outcome.Relocation = result
	m.outcome.DirectoriesMoved = result.Moved

	for _, name := range result.Moved {
		m.cfg.Events.LogRelocate(filepath.Join(loc.LegacyDir, name), filepath.Join(lay.ProfileDir, name), nil)
	}
	for name, err := range result.Failed {
		m.cfg.Events.LogRelocate(filepath.Join(loc.LegacyDir, name), filepath.Join(lay.ProfileDir, name), err)
	}

	if len(result.Moved) > 0 {
		util.InfoLog("Relocated %v (%s)", result.Moved, humanize.Bytes(uint64(result.Bytes)))
	}
	return result.Err()
}

// cleanup removes the whole legacy engine tree. A failure here does not
// undo the migration; the error is kept on the outcome.
func (m *Migrator) cleanup(loc *locate.Location) {
	engineDir := loc.EngineDir()
	size, _ := util.TreeSize(m.cfg.Fs, engineDir)

	err := util.RetryableRemoveAll(m.cfg.Fs, engineDir, m.cfg.Retry)
	m.cfg.Events.LogCleanup(engineDir, size, err)
	if err != nil {
		m.outcome.Err = fmt.Errorf("cleanup of %s: %w", engineDir, err)
		util.WarnLog("Failed to remove %s: %v", engineDir, err)
		return
	}

	m.outcome.LegacyRemoved = true
	util.InfoLog("Removed %s (%s)", engineDir, humanize.Bytes(uint64(size)))
}
