package host

import (
	"testing"
)

func TestNewCommandRestarter(t *testing.T) {
	if _, ok := NewCommandRestarter("   ").(NopRestarter); !ok {
		t.Error("Expected NopRestarter for an empty command line")
	}

	r, ok := NewCommandRestarter("am start -S -n com.example.app/.MainActivity").(*CommandRestarter)
	if !ok {
		t.Fatal("Expected CommandRestarter")
	}
	if len(r.Argv) != 5 || r.Argv[0] != "am" {
		t.Errorf("Unexpected argv %q", r.Argv)
	}
}

func TestCommandRestarter(t *testing.T) {
	if err := (&CommandRestarter{Argv: []string{"true"}}).Restart(); err != nil {
		t.Errorf("Expected success, got %v", err)
	}
	if err := (&CommandRestarter{Argv: []string{"false"}}).Restart(); err == nil {
		t.Error("Expected failure from a failing command")
	}
}

func TestCandidates(t *testing.T) {
	got := Candidates("/data/app/files", "")
	if len(got) != 1 || got[0] != "/data/app/files" {
		t.Errorf("Unexpected candidates %v", got)
	}

	got = Candidates("/data/app/files", "/sdcard/app/files")
	if len(got) != 2 || got[1] != "/sdcard/app/files" {
		t.Errorf("Unexpected candidates %v", got)
	}
}
