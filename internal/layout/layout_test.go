package layout

import (
	"errors"
	"testing"

	"github.com/franz/xwalk-migrate/internal/util"
)

type countingSource struct {
	version string
	err     error
	calls   int
}

func (c *countingSource) InstalledVersion(string) (string, error) {
	c.calls++
	return c.version, c.err
}

func TestParseMajor(t *testing.T) {
	tests := []struct {
		version  string
		expected int
		wantErr  bool
	}{
		{version: "79.0.3945.116", expected: 79},
		{version: "78.0.3904.108", expected: 78},
		{version: "120", expected: 120},
		{version: " 85.1 ", expected: 85},
		{version: "beta.79", wantErr: true},
		{version: "", wantErr: true},
		{version: "-1.0", wantErr: true},
		{version: "+79.0", wantErr: true},
		{version: "7a.0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			major, err := ParseMajor(tt.version)
			if tt.wantErr {
				if !errors.Is(err, util.ErrMalformedVersion) {
					t.Errorf("Expected ErrMalformedVersion, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMajor failed: %v", err)
			}
			if major != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, major)
			}
		})
	}
}

func TestResolveThreshold(t *testing.T) {
	const root = "/data/user/0/com.example.app"

	tests := []struct {
		version      string
		kind         Kind
		backend      Backend
		profileDir   string
		storePath    string
		localStorage string
	}{
		{
			version:      "53.0.2785.124",
			kind:         Flat,
			backend:      RelationalFile,
			profileDir:   root + "/app_webview",
			localStorage: root + "/app_webview/Local Storage",
			storePath:    root + "/app_webview/Local Storage/https_localhost_0.localstorage",
		},
		{
			version:      "78.0.3904.108",
			kind:         Flat,
			backend:      RelationalFile,
			profileDir:   root + "/app_webview",
			localStorage: root + "/app_webview/Local Storage",
			storePath:    root + "/app_webview/Local Storage/https_localhost_0.localstorage",
		},
		{
			version:      "79.0.3945.116",
			kind:         Nested,
			backend:      KeyValueLog,
			profileDir:   root + "/app_webview/Default",
			localStorage: root + "/app_webview/Default/Local Storage",
			storePath:    root + "/app_webview/Default/Local Storage/leveldb",
		},
		{
			version:      "131.0.6778.200",
			kind:         Nested,
			backend:      KeyValueLog,
			profileDir:   root + "/app_webview/Default",
			localStorage: root + "/app_webview/Default/Local Storage",
			storePath:    root + "/app_webview/Default/Local Storage/leveldb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			l, err := Resolve(tt.version, root, DefaultOrigin)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if l.Kind != tt.kind {
				t.Errorf("Expected kind %s, got %s", tt.kind, l.Kind)
			}
			if l.Backend != tt.backend {
				t.Errorf("Expected backend %s, got %s", tt.backend, l.Backend)
			}
			if l.ProfileDir != tt.profileDir {
				t.Errorf("Expected profile dir %s, got %s", tt.profileDir, l.ProfileDir)
			}
			if l.LocalStorageDir != tt.localStorage {
				t.Errorf("Expected local storage dir %s, got %s", tt.localStorage, l.LocalStorageDir)
			}
			if l.StorePath != tt.storePath {
				t.Errorf("Expected store path %s, got %s", tt.storePath, l.StorePath)
			}
		})
	}
}

func TestResolveMalformed(t *testing.T) {
	if _, err := Resolve("dev-build", "/root", DefaultOrigin); !errors.Is(err, util.ErrMalformedVersion) {
		t.Errorf("Expected ErrMalformedVersion, got %v", err)
	}
}

func TestLookup(t *testing.T) {
	t.Run("primary wins", func(t *testing.T) {
		primary := &countingSource{version: "80.0"}
		fallback := &countingSource{version: "70.0"}

		v, err := Lookup(primary, fallback, DefaultPackage)
		if err != nil {
			t.Fatalf("Lookup failed: %v", err)
		}
		if v != "80.0" {
			t.Errorf("Expected 80.0, got %s", v)
		}
		if fallback.calls != 0 {
			t.Error("Fallback should not be consulted when primary succeeds")
		}
	})

	t.Run("fallback result is used", func(t *testing.T) {
		primary := &countingSource{err: errors.New("dumpsys: not found")}
		fallback := &countingSource{version: "77.0"}

		v, err := Lookup(primary, fallback, DefaultPackage)
		if err != nil {
			t.Fatalf("Lookup failed: %v", err)
		}
		if v != "77.0" {
			t.Errorf("Expected 77.0, got %s", v)
		}
	})

	t.Run("nil primary", func(t *testing.T) {
		v, err := Lookup(nil, Static("90.1"), DefaultPackage)
		if err != nil {
			t.Fatalf("Lookup failed: %v", err)
		}
		if v != "90.1" {
			t.Errorf("Expected 90.1, got %s", v)
		}
	})

	t.Run("both fail", func(t *testing.T) {
		primaryErr := errors.New("primary broke")
		_, err := Lookup(&countingSource{err: primaryErr}, Static(""), DefaultPackage)
		if !errors.Is(err, util.ErrVersionUnavailable) {
			t.Errorf("Expected ErrVersionUnavailable, got %v", err)
		}
		if !errors.Is(err, primaryErr) {
			t.Errorf("Expected the primary cause to be kept, got %v", err)
		}
	})

	t.Run("no sources", func(t *testing.T) {
		if _, err := Lookup(nil, nil, DefaultPackage); !errors.Is(err, util.ErrVersionUnavailable) {
			t.Errorf("Expected ErrVersionUnavailable, got %v", err)
		}
	})
}

func TestResolverCaches(t *testing.T) {
	source := &countingSource{version: "79.0.3945.116"}
	r := &Resolver{Primary: source, Origin: DefaultOrigin}

	first, err := r.Resolve("/app")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	// A later version change must not change the answer within the run
	source.version = "70.0"
	second, err := r.Resolve("/app")
	if err != nil {
		t.Fatalf("Second resolve failed: %v", err)
	}

	if first != second {
		t.Error("Expected the same cached layout")
	}
	if source.calls != 1 {
		t.Errorf("Expected 1 version lookup, got %d", source.calls)
	}

	if _, err := r.Resolve("/other"); !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for a different root, got %v", err)
	}
}

func TestResolverCachesFailure(t *testing.T) {
	source := &countingSource{version: "nightly"}
	r := &Resolver{Primary: source}

	for i := 0; i < 2; i++ {
		if _, err := r.Resolve("/app"); !errors.Is(err, util.ErrMalformedVersion) {
			t.Fatalf("Expected ErrMalformedVersion, got %v", err)
		}
	}
	if source.calls != 1 {
		t.Errorf("Expected failure to be cached, got %d lookups", source.calls)
	}
}

func TestParseVersionName(t *testing.T) {
	output := []byte(`Packages:
  Package [com.google.android.webview] (3f1a2b4):
    userId=10098
    pkg=Package{1c2d3e4 com.google.android.webview}
    versionCode=394511600 minSdk=24 targetSdk=29
    versionName=79.0.3945.116
    splits=[base]
`)

	v, err := parseVersionName(output, DefaultPackage)
	if err != nil {
		t.Fatalf("parseVersionName failed: %v", err)
	}
	if v != "79.0.3945.116" {
		t.Errorf("Expected 79.0.3945.116, got %s", v)
	}

	if _, err := parseVersionName([]byte("Unable to find package\n"), DefaultPackage); err == nil {
		t.Error("Expected error when versionName is absent")
	}
}

func TestDumpsysCommandFailure(t *testing.T) {
	d := &Dumpsys{Command: []string{"/nonexistent/dumpsys-for-tests", "package"}}
	if _, err := d.InstalledVersion(DefaultPackage); err == nil {
		t.Error("Expected error from a missing dumpsys binary")
	}
}

func TestOrigin(t *testing.T) {
	tests := []struct {
		in       string
		prefix   string
		fileName string
		wantErr  bool
	}{
		{in: "https://localhost", prefix: "_https://localhost", fileName: "https_localhost_0.localstorage"},
		{in: "HTTP://LocalHost:8080", prefix: "_http://localhost:8080", fileName: "http_localhost_8080.localstorage"},
		{in: "file://", prefix: "_file://", fileName: "file__0.localstorage"},
		{in: "localhost", wantErr: true},
		{in: "https://", wantErr: true},
		{in: "https://localhost/index.html", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			o, err := ParseOrigin(tt.in)
			if tt.wantErr {
				if !errors.Is(err, util.ErrInvalidConfig) {
					t.Errorf("Expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOrigin failed: %v", err)
			}
			if o.Prefix() != tt.prefix {
				t.Errorf("Expected prefix %q, got %q", tt.prefix, o.Prefix())
			}
			if o.DatabaseFileName() != tt.fileName {
				t.Errorf("Expected file name %q, got %q", tt.fileName, o.DatabaseFileName())
			}
		})
	}
}
