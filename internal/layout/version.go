package layout

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/franz/xwalk-migrate/internal/util"
)

// DefaultPackage is the system WebView package on stock Android
const DefaultPackage = "com.google.android.webview"

// VersionSource reports the installed version name of a package
type VersionSource interface {
	InstalledVersion(packageID string) (string, error)
}

// Static is a VersionSource that always reports the configured version
type Static string

// InstalledVersion implements VersionSource
func (s Static) InstalledVersion(packageID string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("no version configured for %s", packageID)
	}
	return string(s), nil
}

// Dumpsys asks the Android package manager for the version through
// `dumpsys package <id>`.
type Dumpsys struct {
	Command []string      // defaults to {"dumpsys", "package"}
	Timeout time.Duration // defaults to 10s
}

// InstalledVersion implements VersionSource
func (d *Dumpsys) InstalledVersion(packageID string) (string, error) {
	command := d.Command
	if len(command) == 0 {
		command = []string{"dumpsys", "package"}
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	args := append(append([]string{}, command[1:]...), packageID)
	output, err := exec.CommandContext(ctx, command[0], args...).Output()
	if err != nil {
		return "", fmt.Errorf("%s failed: %w", command[0], err)
	}

	return parseVersionName(output, packageID)
}

// parseVersionName pulls the first versionName= value out of dumpsys output
func parseVersionName(output []byte, packageID string) (string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if v, ok := strings.CutPrefix(line, "versionName="); ok && v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("no versionName for %s in package dump", packageID)
}

// Lookup asks primary first and consults fallback only if primary is
// missing or fails. A successful fallback answer is used as is.
func Lookup(primary, fallback VersionSource, packageID string) (string, error) {
	var errs []error

	for i, source := range []VersionSource{primary, fallback} {
		if source == nil {
			continue
		}
		version, err := source.InstalledVersion(packageID)
		if err == nil {
			if i == 1 {
				util.WarnLog("Primary version lookup unavailable, using fallback version %s", version)
			}
			return version, nil
		}
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return "", fmt.Errorf("no version source configured for %s: %w", packageID, util.ErrVersionUnavailable)
	}
	return "", fmt.Errorf("%s: %w: %w", packageID, util.ErrVersionUnavailable, errors.Join(errs...))
}

// ParseMajor returns the leading dot-separated component of version as an
// integer, e.g. 79 for "79.0.3945.116".
func ParseMajor(version string) (int, error) {
	head, _, _ := strings.Cut(strings.TrimSpace(version), ".")
	major, err := strconv.Atoi(head)
	if err != nil || major < 0 || strings.HasPrefix(head, "+") {
		return 0, fmt.Errorf("version %q: %w", version, util.ErrMalformedVersion)
	}
	return major, nil
}
