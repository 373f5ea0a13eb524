package migrate

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/franz/xwalk-migrate/internal/util"
	"github.com/spf13/afero"
)

// Guard makes sure migration is attempted at most once. The host creates
// one at startup and hands it to every Run; once acquired it stays
// acquired, whatever the outcome.
//
// With a marker path the attempt is also recorded on disk, so a later
// process sees it too.
type Guard struct {
	mu        sync.Mutex
	attempted bool
	fs        afero.Fs
	marker    string
}

// NewGuard returns an unused guard. An empty markerPath keeps the flag in
// memory only.
func NewGuard(fs afero.Fs, markerPath string) *Guard {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Guard{fs: fs, marker: markerPath}
}

// TryAcquire consumes the guard. It returns util.ErrAlreadyAttempted when
// this guard, or a previous process via the marker file, got there first.
func (g *Guard) TryAcquire() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.attempted {
		return util.ErrAlreadyAttempted
	}
	g.attempted = true

	if g.marker == "" {
		return nil
	}

	if util.Exists(g.fs, g.marker) {
		return fmt.Errorf("marker %s present: %w", g.marker, util.ErrAlreadyAttempted)
	}

	// The in-memory flag still holds if the marker cannot be written
	if err := g.fs.MkdirAll(filepath.Dir(g.marker), 0755); err != nil {
		util.WarnLog("Failed to create marker directory: %v", err)
		return nil
	}
	stamp := []byte(time.Now().UTC().Format(time.RFC3339) + "\n")
	if err := afero.WriteFile(g.fs, g.marker, stamp, 0644); err != nil {
		util.WarnLog("Failed to write attempt marker %s: %v", g.marker, err)
	}
	return nil
}

// Attempted reports whether the guard has been consumed
func (g *Guard) Attempted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.attempted
}

// MarkerPath returns the on-disk marker, or "" when the flag is in memory only
func (g *Guard) MarkerPath() string {
	return g.marker
}
