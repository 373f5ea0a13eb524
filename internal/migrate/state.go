package migrate

import (
	"fmt"
	"time"

	"github.com/franz/xwalk-migrate/internal/layout"
	"github.com/franz/xwalk-migrate/internal/locate"
	"github.com/franz/xwalk-migrate/internal/relocate"
)

// State is a step of the migration state machine
type State int

const (
	NotStarted State = iota
	Locating
	NoLegacyData
	Resolving
	Migrating
	Succeeded
	Failed
	Cleanup
	Restarted
)

var stateNames = [...]string{
	NotStarted:   "NotStarted",
	Locating:     "Locating",
	NoLegacyData: "NoLegacyData",
	Resolving:    "Resolving",
	Migrating:    "Migrating",
	Succeeded:    "Succeeded",
	Failed:       "Failed",
	Cleanup:      "Cleanup",
	Restarted:    "Restarted",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Outcome describes one Run
type Outcome struct {
	RunID string
	State State
	Trail []State // every state entered, in order

	Location *locate.Location
	Layout   *layout.Layout

	RecordsMigrated  int
	Relocation       *relocate.Result
	DirectoriesMoved []string
	LegacyRemoved    bool

	Started  time.Time
	Duration time.Duration

	// Err is the error that ended the run in Failed, or a cleanup error
	// after success. It is nil for NoLegacyData.
	Err error
}

// Succeeded reports whether every transcode and relocation completed
func (o *Outcome) Succeeded() bool {
	switch o.State {
	case Succeeded, Cleanup, Restarted:
		return true
	}
	return false
}
