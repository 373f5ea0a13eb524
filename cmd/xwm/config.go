package main

import (
	"fmt"
	"strings"

	"github.com/franz/xwalk-migrate/internal/host"
	"github.com/franz/xwalk-migrate/internal/layout"
	"github.com/franz/xwalk-migrate/internal/util"
	"github.com/spf13/viper"
)

// GetConfigString retrieves a string config value with proper precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (XWM_*)
// 3. Config file
// 4. Default value
func GetConfigString(key string, defaultValue string) string {
	val := viper.GetString(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// GetConfigBool retrieves a bool config value
func GetConfigBool(key string) bool {
	return viper.GetBool(key)
}

// configuredCandidates returns the files directories to search for
// legacy data. At least one is required.
func configuredCandidates() ([]string, error) {
	candidates := host.Candidates(GetConfigString("files-dir", ""), GetConfigString("external-files-dir", ""))
	if len(candidates) == 0 {
		return nil, fmt.Errorf("--files-dir is required: %w", util.ErrInvalidConfig)
	}
	return candidates, nil
}

func configuredOrigin() (layout.Origin, error) {
	return layout.ParseOrigin(GetConfigString("origin", layout.DefaultOrigin.String()))
}

// versionSources asks the package manager first. A configured
// webview-version is only used when that fails.
func versionSources() (primary, fallback layout.VersionSource) {
	primary = &layout.Dumpsys{Command: strings.Fields(GetConfigString("version-command", "dumpsys package"))}
	if v := GetConfigString("webview-version", ""); v != "" {
		fallback = layout.Static(v)
	}
	return primary, fallback
}
