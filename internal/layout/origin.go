package layout

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/franz/xwalk-migrate/internal/util"
)

// Origin is the single scheme+host the application serves content from
type Origin struct {
	Scheme string
	Host   string // host[:port], empty for file://
}

// DefaultOrigin is the origin served by the Cordova WebView engine
var DefaultOrigin = Origin{Scheme: "https", Host: "localhost"}

// ParseOrigin parses "https://localhost" or "file://" style strings
func ParseOrigin(s string) (Origin, error) {
	u, err := url.Parse(s)
	if err != nil {
		return Origin{}, fmt.Errorf("origin %q: %w", s, util.ErrInvalidConfig)
	}
	if u.Scheme == "" || (u.Path != "" && u.Path != "/") || u.RawQuery != "" {
		return Origin{}, fmt.Errorf("origin %q must be scheme://host: %w", s, util.ErrInvalidConfig)
	}
	if u.Host == "" && u.Scheme != "file" {
		return Origin{}, fmt.Errorf("origin %q has no host: %w", s, util.ErrInvalidConfig)
	}
	return Origin{Scheme: strings.ToLower(u.Scheme), Host: strings.ToLower(u.Host)}, nil
}

// String returns scheme://host
func (o Origin) String() string {
	return o.Scheme + "://" + o.Host
}

// Prefix returns the origin key prefix used by the LevelDB local storage
// backend, e.g. "_https://localhost".
func (o Origin) Prefix() string {
	return "_" + o.String()
}

// DatabaseFileName returns the per-origin SQLite file name used by the
// relational backend, e.g. "https_localhost_0.localstorage".
func (o Origin) DatabaseFileName() string {
	host, port := o.Host, "0"
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host, port = host[:i], host[i+1:]
	}
	return fmt.Sprintf("%s_%s_%s.localstorage", o.Scheme, host, port)
}
