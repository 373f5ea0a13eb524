// Package host holds the pieces of the host application the migration
// needs but does not own: where its files live and how to restart it.
package host

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/franz/xwalk-migrate/internal/util"
)

// Restarter relaunches the host so the destination engine reloads its data
type Restarter interface {
	Restart() error
}

// NopRestarter only records that a restart is due
type NopRestarter struct{}

// Restart implements Restarter
func (NopRestarter) Restart() error {
	util.InfoLog("Restart requested; no restart command configured")
	return nil
}

// CommandRestarter runs an external command, e.g.
// "am start -S -n com.example.app/.MainActivity".
type CommandRestarter struct {
	Argv    []string
	Timeout time.Duration // defaults to 30s
}

// NewCommandRestarter splits a command line on whitespace. An empty line
// yields a NopRestarter.
func NewCommandRestarter(commandLine string) Restarter {
	argv := strings.Fields(commandLine)
	if len(argv) == 0 {
		return NopRestarter{}
	}
	return &CommandRestarter{Argv: argv}
}

// Restart implements Restarter
func (c *CommandRestarter) Restart() error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	util.InfoLog("Restarting host: %s", strings.Join(c.Argv, " "))
	output, err := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("restart command failed: %w (output: %s)", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Candidates returns the files directories to search, internal first.
func Candidates(filesDir, externalFilesDir string) []string {
	var out []string
	for _, dir := range []string{filesDir, externalFilesDir} {
		if dir != "" {
			out = append(out, dir)
		}
	}
	return out
}
