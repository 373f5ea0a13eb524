// Package locate finds the Crosswalk data left behind by an earlier
// install of the application.
package locate

import (
	"fmt"
	"path/filepath"

	"github.com/franz/xwalk-migrate/internal/util"
	"github.com/spf13/afero"
)

// LegacyEngineDir is the Crosswalk data directory under the storage root
const LegacyEngineDir = "app_xwalkcore"

// LegacyProfile is the profile directory inside LegacyEngineDir
const LegacyProfile = "Default"

// Location is a storage root known to hold legacy data
type Location struct {
	Root      string // app storage root, the parent of "files"
	LegacyDir string // <Root>/app_xwalkcore/Default
}

// EngineDir returns <Root>/app_xwalkcore, the tree removed after a
// successful migration.
func (l *Location) EngineDir() string {
	return filepath.Join(l.Root, LegacyEngineDir)
}

// StorageRoot derives the app storage root from a files directory by
// dropping a trailing "files" segment.
func StorageRoot(filesDir string) string {
	cleaned := filepath.Clean(filesDir)
	if filepath.Base(cleaned) == "files" {
		return filepath.Dir(cleaned)
	}
	return cleaned
}

// Locate tries each candidate files directory in order and returns the
// first whose storage root holds legacy data. Empty candidates are
// skipped. util.ErrNotFound is returned when no candidate qualifies.
func Locate(fs afero.Fs, candidates []string) (*Location, error) {
	for _, filesDir := range candidates {
		if filesDir == "" {
			continue
		}

		root := StorageRoot(filesDir)
		legacyDir := filepath.Join(root, LegacyEngineDir, LegacyProfile)

		isDir, err := afero.IsDir(fs, legacyDir)
		if err == nil && isDir {
			util.DebugLog("Found Crosswalk directory: %s", legacyDir)
			return &Location{Root: root, LegacyDir: legacyDir}, nil
		}
		util.DebugLog("Crosswalk directory not found under %s", root)
	}

	return nil, fmt.Errorf("no %s/%s under %d candidate roots: %w",
		LegacyEngineDir, LegacyProfile, len(candidates), util.ErrNotFound)
}
