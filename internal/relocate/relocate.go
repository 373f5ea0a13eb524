// Package relocate moves legacy directories whose format the destination
// engine reads unchanged (HTTP cache, cookie jars, IndexedDB, WebSQL).
package relocate

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/franz/xwalk-migrate/internal/util"
	"github.com/spf13/afero"
)

// DefaultNames are the legacy profile entries relocated as-is
var DefaultNames = []string{
	"Cache",
	"Cookies",
	"Cookies-journal",
	"IndexedDB",
	"databases",
}

// Result reports each name's outcome independently
type Result struct {
	Moved   []string
	Skipped []string         // absent under the source
	Failed  map[string]error // wraps util.ErrRelocate
	Bytes   int64            // total size of moved entries
}

// Err returns an error summarising the failures, or nil
func (r *Result) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.Failed))
	for name := range r.Failed {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Errorf("%d of %d entries not moved %v: %w",
		len(r.Failed), len(r.Failed)+len(r.Moved), names, util.ErrRelocate)
}

// Relocate renames each name under source to the same name under
// destParent. Absent names are skipped. A failure on one name does not
// stop the others. Transient rename errors are retried per retry; nil
// uses util.DefaultRetryConfig.
func Relocate(fs afero.Fs, source, destParent string, names []string, retry *util.RetryConfig) *Result {
	result := &Result{Failed: map[string]error{}}

	if err := fs.MkdirAll(destParent, 0755); err != nil {
		for _, name := range names {
			if util.Exists(fs, filepath.Join(source, name)) {
				result.Failed[name] = fmt.Errorf("create %s: %w: %w", destParent, util.ErrRelocate, err)
			} else {
				result.Skipped = append(result.Skipped, name)
			}
		}
		return result
	}

	for _, name := range names {
		src := filepath.Join(source, name)
		dst := filepath.Join(destParent, name)

		if !util.Exists(fs, src) {
			util.DebugLog("Relocate: %s not present, skipping", name)
			result.Skipped = append(result.Skipped, name)
			continue
		}

		size, _ := util.TreeSize(fs, src)

		if err := moveOne(fs, src, dst, retry); err != nil {
			result.Failed[name] = err
			util.WarnLog("Relocate: %s: %v", name, err)
			continue
		}

		result.Moved = append(result.Moved, name)
		result.Bytes += size
		util.DebugLog("Relocate: %s -> %s (%s)", src, dst, humanize.Bytes(uint64(size)))
	}

	return result
}

// moveOne renames src to dst. An existing dst is set aside as dst.old and
// only deleted once src is in place; if the rename fails it is put back.
func moveOne(fs afero.Fs, src, dst string, retry *util.RetryConfig) error {
	// The fresh engine may have created an empty twin before migration ran
	aside := ""
	if util.Exists(fs, dst) {
		aside = dst + ".old"
		if err := fs.RemoveAll(aside); err != nil {
			return fmt.Errorf("clear %s: %w: %w", aside, util.ErrRelocate, err)
		}
		if err := fs.Rename(dst, aside); err != nil {
			return fmt.Errorf("set aside %s: %w: %w", dst, util.ErrRelocate, err)
		}
	}

	err := util.Retry(retry, func() error {
		return fs.Rename(src, dst)
	}, fmt.Sprintf("rename(%s)", src))
	if err != nil {
		if aside != "" {
			if backErr := fs.Rename(aside, dst); backErr != nil {
				util.WarnLog("Relocate: failed to restore %s from %s: %v", dst, aside, backErr)
			}
		}
		if same, statErr := util.IsSameFilesystem(src, filepath.Dir(dst)); statErr == nil && !same {
			return fmt.Errorf("rename %s across filesystems: %w: %w", src, util.ErrRelocate, err)
		}
		return fmt.Errorf("rename %s: %w: %w", src, util.ErrRelocate, err)
	}

	if aside != "" {
		util.WarnLog("Relocate: replaced existing %s", dst)
		if err := fs.RemoveAll(aside); err != nil {
			util.WarnLog("Relocate: failed to remove %s: %v", aside, err)
		}
	}
	return nil
}
