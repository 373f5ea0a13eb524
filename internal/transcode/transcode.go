// Package transcode rewrites legacy local storage rows into the format the
// destination WebView reads.
package transcode

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/franz/xwalk-migrate/internal/kvstore"
	"github.com/franz/xwalk-migrate/internal/legacy"
	"github.com/franz/xwalk-migrate/internal/util"
	"github.com/spf13/afero"
)

// LegacyFileName is the Crosswalk local storage file for the file:// origin
const LegacyFileName = "file__0.localstorage"

// Transcoder converts a legacy SQLite local storage file into a LevelDB store
type Transcoder struct {
	// Progress, when set, is called after each row is decoded
	Progress func(done, total int)
}

// Transcode reads every row of the legacy database at legacyDBPath and
// writes its origin-scoped equivalent into a fresh store at storePath.
// Any store already at storePath is deleted first. Either every row is
// written or nothing is: on failure the new store is removed again.
func (t *Transcoder) Transcode(legacyDBPath, storePath, prefix string) (int, error) {
	db, err := legacy.Open(legacyDBPath)
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %w", legacyDBPath, util.ErrLegacySourceUnreadable, err)
	}
	defer db.Close()

	total, err := db.Count()
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %w", legacyDBPath, util.ErrLegacySourceUnreadable, err)
	}

	// Never merge with output from an earlier aborted attempt
	if err := os.RemoveAll(storePath); err != nil {
		return 0, fmt.Errorf("failed to clear stale store %s: %w: %w", storePath, util.ErrTranscode, err)
	}
	if err := os.MkdirAll(filepath.Dir(storePath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w: %w", filepath.Dir(storePath), util.ErrTranscode, err)
	}

	store, err := kvstore.Open(storePath, true)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", util.ErrTranscode, err)
	}

	n, err := t.copyRows(db, store, prefix, total)
	if closeErr := store.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close store: %w: %w", util.ErrTranscode, closeErr)
	}

	if err != nil {
		if rmErr := os.RemoveAll(storePath); rmErr != nil {
			util.WarnLog("Failed to remove incomplete store %s: %v", storePath, rmErr)
		}
		return 0, err
	}

	return n, nil
}

// copyRows decodes all rows into one batch and commits it once, so a bad
// row leaves the store empty.
func (t *Transcoder) copyRows(db *legacy.DB, store *kvstore.Store, prefix string, total int) (int, error) {
	rows, err := db.Rows()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", util.ErrLegacySourceUnreadable, err)
	}
	defer rows.Close()

	batch := &kvstore.Batch{}
	seen := make(map[string]struct{}, total)

	for rows.Next() {
		item, err := rows.Item()
		if err != nil {
			return 0, fmt.Errorf("row %d: %w: %w", len(seen)+1, util.ErrTranscode, err)
		}
		if _, dup := seen[item.Key]; dup {
			return 0, fmt.Errorf("key %q appears twice: %w", item.Key, util.ErrTranscode)
		}
		seen[item.Key] = struct{}{}

		value, err := DecodeUTF16LE(item.Value)
		if err != nil {
			return 0, fmt.Errorf("key %q: %w: %w", item.Key, util.ErrTranscode, err)
		}

		batch.Put(OriginKey(prefix, []byte(item.Key)), OriginValue(value))

		if t.Progress != nil {
			t.Progress(len(seen), total)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", util.ErrTranscode, err)
	}

	if batch.Len() > 0 {
		if err := store.Write(batch); err != nil {
			return 0, fmt.Errorf("%w: %w", util.ErrTranscode, err)
		}
	}

	return batch.Len(), nil
}

// CountRelational opens the legacy database read-only and returns its row
// count, without moving anything.
func CountRelational(legacyDBPath string) (int, error) {
	db, err := legacy.Open(legacyDBPath)
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %w", legacyDBPath, util.ErrLegacySourceUnreadable, err)
	}
	defer db.Close()

	count, err := db.Count()
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %w", legacyDBPath, util.ErrLegacySourceUnreadable, err)
	}
	return count, nil
}

// MoveRelational hands the legacy SQLite file and its journal to a
// destination that still reads the relational format. The file is
// validated and counted first; if the journal cannot follow, the main file
// is moved back so the legacy copy stays whole.
func MoveRelational(fs afero.Fs, legacyDBPath, storePath string) (int, error) {
	count, err := CountRelational(legacyDBPath)
	if err != nil {
		return 0, err
	}

	journal, storeJournal := legacyDBPath+"-journal", storePath+"-journal"

	for _, stale := range []string{storePath, storeJournal} {
		if err := fs.RemoveAll(stale); err != nil {
			return 0, fmt.Errorf("failed to clear stale %s: %w: %w", stale, util.ErrTranscode, err)
		}
	}
	if err := fs.MkdirAll(filepath.Dir(storePath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w: %w", filepath.Dir(storePath), util.ErrTranscode, err)
	}

	if err := fs.Rename(legacyDBPath, storePath); err != nil {
		return 0, fmt.Errorf("failed to move %s: %w: %w", legacyDBPath, util.ErrTranscode, err)
	}

	if util.Exists(fs, journal) {
		if err := fs.Rename(journal, storeJournal); err != nil {
			if backErr := fs.Rename(storePath, legacyDBPath); backErr != nil {
				err = errors.Join(err, fmt.Errorf("rollback failed: %w", backErr))
			}
			return 0, fmt.Errorf("failed to move %s: %w: %w", journal, util.ErrTranscode, err)
		}
	}

	return count, nil
}
