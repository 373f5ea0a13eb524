// Package layout decides where, and in which format, the installed system
// WebView expects to find local storage. The decision is a pure function
// of the WebView's major version and is never guessed from what happens
// to exist on disk.
package layout

import (
	"fmt"
	"path/filepath"

	"github.com/franz/xwalk-migrate/internal/util"
)

// WebviewDir is the system WebView data directory under the storage root
const WebviewDir = "app_webview"

// LocalStorageDir is the local storage directory name in both layouts
const LocalStorageDir = "Local Storage"

// NestedMinMajor is the first WebView major version that keeps its data
// under a "Default" profile directory and local storage in LevelDB.
const NestedMinMajor = 79

// Kind is the destination directory shape
type Kind int

const (
	// Flat keeps local storage at app_webview/Local Storage
	Flat Kind = iota
	// Nested keeps local storage at app_webview/Default/Local Storage
	Nested
)

func (k Kind) String() string {
	switch k {
	case Flat:
		return "flat"
	case Nested:
		return "nested"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Backend is the on-disk format of destination local storage
type Backend int

const (
	// RelationalFile is one SQLite file per origin, same format as the legacy engine
	RelationalFile Backend = iota
	// KeyValueLog is a single LevelDB store keyed by origin prefix
	KeyValueLog
)

func (b Backend) String() string {
	switch b {
	case RelationalFile:
		return "relational-file"
	case KeyValueLog:
		return "key-value-log"
	}
	return fmt.Sprintf("Backend(%d)", int(b))
}

// Layout is a resolved destination
type Layout struct {
	Version string
	Major   int
	Kind    Kind
	Backend Backend

	WebviewDir      string // <root>/app_webview
	ProfileDir      string // where Cache, Cookies, IndexedDB, databases live
	LocalStorageDir string
	StorePath       string // SQLite file or LevelDB directory receiving local storage
}

// Resolve maps a WebView version onto the destination layout under appRoot.
func Resolve(version, appRoot string, origin Origin) (*Layout, error) {
	major, err := ParseMajor(version)
	if err != nil {
		return nil, err
	}

	l := &Layout{
		Version:    version,
		Major:      major,
		WebviewDir: filepath.Join(appRoot, WebviewDir),
	}

	if major < NestedMinMajor {
		l.Kind = Flat
		l.Backend = RelationalFile
		l.ProfileDir = l.WebviewDir
		l.LocalStorageDir = filepath.Join(l.ProfileDir, LocalStorageDir)
		l.StorePath = filepath.Join(l.LocalStorageDir, origin.DatabaseFileName())
	} else {
		l.Kind = Nested
		l.Backend = KeyValueLog
		l.ProfileDir = filepath.Join(l.WebviewDir, "Default")
		l.LocalStorageDir = filepath.Join(l.ProfileDir, LocalStorageDir)
		l.StorePath = filepath.Join(l.LocalStorageDir, "leveldb")
	}

	return l, nil
}

// Resolver looks the version up once and hands every caller the same
// Layout for the rest of the run.
type Resolver struct {
	Primary   VersionSource
	Fallback  VersionSource
	PackageID string
	Origin    Origin

	root   string
	layout *Layout
	err    error
}

// Resolve returns the cached layout for appRoot, resolving it on first use.
// Asking for a different root afterwards is a programming error.
func (r *Resolver) Resolve(appRoot string) (*Layout, error) {
	if r.layout != nil || r.err != nil {
		if appRoot != r.root {
			return nil, fmt.Errorf("layout already resolved for %s, not %s: %w",
				r.root, appRoot, util.ErrInvalidConfig)
		}
		return r.layout, r.err
	}

	r.root = appRoot

	packageID := r.PackageID
	if packageID == "" {
		packageID = DefaultPackage
	}

	version, err := Lookup(r.Primary, r.Fallback, packageID)
	if err != nil {
		r.err = err
		return nil, err
	}

	r.layout, r.err = Resolve(version, appRoot, r.Origin)
	if r.err == nil {
		util.DebugLog("WebView %s (major %d): %s layout, %s backend",
			version, r.layout.Major, r.layout.Kind, r.layout.Backend)
	}
	return r.layout, r.err
}
