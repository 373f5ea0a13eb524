package locate

import (
	"errors"
	"testing"

	"github.com/franz/xwalk-migrate/internal/util"
	"github.com/spf13/afero"
)

func TestStorageRoot(t *testing.T) {
	tests := []struct {
		filesDir string
		expected string
	}{
		{"/data/user/0/com.example.app/files", "/data/user/0/com.example.app"},
		{"/data/user/0/com.example.app/files/", "/data/user/0/com.example.app"},
		{"/storage/emulated/0/Android/data/com.example.app/files", "/storage/emulated/0/Android/data/com.example.app"},
		// Only the trailing segment is stripped
		{"/data/files/com.example.app/files", "/data/files/com.example.app"},
		{"/data/user/0/com.example.app", "/data/user/0/com.example.app"},
	}

	for _, tt := range tests {
		t.Run(tt.filesDir, func(t *testing.T) {
			if got := StorageRoot(tt.filesDir); got != tt.expected {
				t.Errorf("StorageRoot(%q) = %q, expected %q", tt.filesDir, got, tt.expected)
			}
		})
	}
}

func TestLocate(t *testing.T) {
	const (
		internal = "/data/user/0/com.example.app/files"
		external = "/sdcard/Android/data/com.example.app/files"
	)

	tests := []struct {
		name         string
		legacyUnder  []string
		candidates   []string
		expectedRoot string
		notFound     bool
	}{
		{
			name:         "internal wins",
			legacyUnder:  []string{"/data/user/0/com.example.app", "/sdcard/Android/data/com.example.app"},
			candidates:   []string{internal, external},
			expectedRoot: "/data/user/0/com.example.app",
		},
		{
			name:         "falls back to external",
			legacyUnder:  []string{"/sdcard/Android/data/com.example.app"},
			candidates:   []string{internal, external},
			expectedRoot: "/sdcard/Android/data/com.example.app",
		},
		{
			name:         "empty candidate skipped",
			legacyUnder:  []string{"/sdcard/Android/data/com.example.app"},
			candidates:   []string{"", external},
			expectedRoot: "/sdcard/Android/data/com.example.app",
		},
		{
			name:       "fresh install",
			candidates: []string{internal, external},
			notFound:   true,
		},
		{
			name:       "no candidates",
			candidates: nil,
			notFound:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			for _, root := range tt.legacyUnder {
				if err := fs.MkdirAll(root+"/app_xwalkcore/Default", 0755); err != nil {
					t.Fatalf("Failed to seed fs: %v", err)
				}
			}

			loc, err := Locate(fs, tt.candidates)
			if tt.notFound {
				if !errors.Is(err, util.ErrNotFound) {
					t.Fatalf("Expected ErrNotFound, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Locate failed: %v", err)
			}
			if loc.Root != tt.expectedRoot {
				t.Errorf("Expected root %s, got %s", tt.expectedRoot, loc.Root)
			}
			if loc.LegacyDir != tt.expectedRoot+"/app_xwalkcore/Default" {
				t.Errorf("Unexpected legacy dir %s", loc.LegacyDir)
			}
			if loc.EngineDir() != tt.expectedRoot+"/app_xwalkcore" {
				t.Errorf("Unexpected engine dir %s", loc.EngineDir())
			}
		})
	}
}

func TestLocateIgnoresLegacyFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	// A stray file where the profile directory should be is not legacy data
	if err := afero.WriteFile(fs, "/app/app_xwalkcore/Default", []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to seed fs: %v", err)
	}

	if _, err := Locate(fs, []string{"/app/files"}); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
