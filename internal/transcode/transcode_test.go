package transcode

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/franz/xwalk-migrate/internal/kvstore"
	"github.com/franz/xwalk-migrate/internal/legacy/legacytest"
	"github.com/franz/xwalk-migrate/internal/util"
	"github.com/spf13/afero"
)

const prefix = "_https://localhost"

func setupLegacy(t *testing.T, rows ...legacytest.Row) (string, string) {
	t.Helper()

	tmpDir := t.TempDir()
	legacyPath := filepath.Join(tmpDir, "app_xwalkcore", "Default", "Local Storage", LegacyFileName)
	legacytest.Create(t, legacyPath, rows...)

	storePath := filepath.Join(tmpDir, "app_webview", "Default", "Local Storage", "leveldb")
	return legacyPath, storePath
}

func readStore(t *testing.T, path string) map[string][]byte {
	t.Helper()

	s, err := kvstore.Open(path, false)
	if err != nil {
		t.Fatalf("Failed to open destination store: %v", err)
	}
	defer s.Close()

	records := map[string][]byte{}
	err = s.Iterate(func(key, value []byte) error {
		records[string(key)] = value
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to iterate destination store: %v", err)
	}
	return records
}

func TestTranscodeRoundTrip(t *testing.T) {
	rows := []legacytest.Row{
		{Key: "a", Value: "hello"},
		{Key: "settings", Value: `{"theme":"dark","lang":"de"}`},
		{Key: "ünïcødé", Value: "日本語テキスト 🎉"},
		{Key: "empty", Value: ""},
		{Key: "ctl\x00\x01key", Value: "val\x00\x01ue"},
	}
	legacyPath, storePath := setupLegacy(t, rows...)

	n, err := (&Transcoder{}).Transcode(legacyPath, storePath, prefix)
	if err != nil {
		t.Fatalf("Transcode failed: %v", err)
	}
	if n != len(rows) {
		t.Errorf("Expected %d records migrated, got %d", len(rows), n)
	}

	records := readStore(t, storePath)
	if len(records) != len(rows) {
		t.Fatalf("Expected %d records in store, got %d", len(rows), len(records))
	}

	for _, row := range rows {
		key := OriginKey(prefix, []byte(row.Key))
		got, ok := records[string(key)]
		if !ok {
			t.Errorf("Missing key %q", key)
			continue
		}
		want := append([]byte{0x01}, row.Value...)
		if !bytes.Equal(got, want) {
			t.Errorf("Key %q: expected %q, got %q", row.Key, want, got)
		}
	}
}

func TestTranscodeSingleRowExactBytes(t *testing.T) {
	legacyPath, storePath := setupLegacy(t, legacytest.Row{Key: "a", Value: "hello"})

	if _, err := (&Transcoder{}).Transcode(legacyPath, storePath, prefix); err != nil {
		t.Fatalf("Transcode failed: %v", err)
	}

	records := readStore(t, storePath)
	value, ok := records["_https://localhost\x00\x01a"]
	if !ok {
		t.Fatalf("Expected key _https://localhost\\x00\\x01a, got %v", records)
	}
	if string(value) != "\x01hello" {
		t.Errorf("Expected value \\x01hello, got %q", value)
	}
}

func TestTranscodeZeroRows(t *testing.T) {
	legacyPath, storePath := setupLegacy(t)

	n, err := (&Transcoder{}).Transcode(legacyPath, storePath, prefix)
	if err != nil {
		t.Fatalf("Transcode failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 records, got %d", n)
	}
	if records := readStore(t, storePath); len(records) != 0 {
		t.Errorf("Expected empty store, got %d records", len(records))
	}
}

func TestTranscodeIdempotentByReset(t *testing.T) {
	legacyPath, storePath := setupLegacy(t,
		legacytest.Row{Key: "x", Value: "1"},
		legacytest.Row{Key: "y", Value: "2"},
	)

	tr := &Transcoder{}
	if _, err := tr.Transcode(legacyPath, storePath, prefix); err != nil {
		t.Fatalf("First transcode failed: %v", err)
	}
	first := readStore(t, storePath)

	if _, err := tr.Transcode(legacyPath, storePath, prefix); err != nil {
		t.Fatalf("Second transcode failed: %v", err)
	}
	second := readStore(t, storePath)

	if len(first) != len(second) {
		t.Fatalf("Record counts differ: %d vs %d", len(first), len(second))
	}
	for k, v := range first {
		if !bytes.Equal(second[k], v) {
			t.Errorf("Key %q differs between runs", k)
		}
	}
}

func TestTranscodeReplacesStaleStore(t *testing.T) {
	legacyPath, storePath := setupLegacy(t, legacytest.Row{Key: "fresh", Value: "yes"})

	// Leftover from an aborted attempt
	if err := os.MkdirAll(filepath.Dir(storePath), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	stale, err := kvstore.Open(storePath, true)
	if err != nil {
		t.Fatalf("Failed to create stale store: %v", err)
	}
	if err := stale.Put([]byte("_https://localhost\x00\x01stale"), []byte("\x01old")); err != nil {
		t.Fatalf("Failed to seed stale store: %v", err)
	}
	stale.Close()

	if _, err := (&Transcoder{}).Transcode(legacyPath, storePath, prefix); err != nil {
		t.Fatalf("Transcode failed: %v", err)
	}

	records := readStore(t, storePath)
	if len(records) != 1 {
		t.Fatalf("Expected only the fresh record, got %d records", len(records))
	}
	if _, ok := records["_https://localhost\x00\x01stale"]; ok {
		t.Error("Stale record survived migration")
	}
}

func TestTranscodeMalformedRowAborts(t *testing.T) {
	legacyPath, storePath := setupLegacy(t,
		legacytest.Row{Key: "good", Value: "fine"},
		legacytest.Row{Key: "bad", Raw: []byte{0x68, 0x00, 0x69}},
	)

	n, err := (&Transcoder{}).Transcode(legacyPath, storePath, prefix)
	if !errors.Is(err, util.ErrTranscode) {
		t.Fatalf("Expected ErrTranscode, got %v", err)
	}
	if !errors.Is(err, util.ErrMalformedValue) {
		t.Errorf("Expected ErrMalformedValue cause, got %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 records reported, got %d", n)
	}

	if _, statErr := os.Stat(storePath); !os.IsNotExist(statErr) {
		t.Error("Incomplete destination store should be removed")
	}
	if _, statErr := os.Stat(legacyPath); statErr != nil {
		t.Errorf("Legacy database must survive a failed transcode: %v", statErr)
	}
}

func TestTranscodeUnreadableSource(t *testing.T) {
	tmpDir := t.TempDir()
	storePath := filepath.Join(tmpDir, "leveldb")

	corrupt := filepath.Join(tmpDir, LegacyFileName)
	if err := os.WriteFile(corrupt, bytes.Repeat([]byte("garbage!"), 128), 0644); err != nil {
		t.Fatalf("Failed to write corrupt file: %v", err)
	}

	for _, path := range []string{corrupt, filepath.Join(tmpDir, "missing.localstorage")} {
		_, err := (&Transcoder{}).Transcode(path, storePath, prefix)
		if !errors.Is(err, util.ErrLegacySourceUnreadable) {
			t.Errorf("%s: expected ErrLegacySourceUnreadable, got %v", path, err)
		}
	}

	if _, err := os.Stat(storePath); !os.IsNotExist(err) {
		t.Error("No store should be created when the source is unreadable")
	}
}

func TestTranscodeProgress(t *testing.T) {
	legacyPath, storePath := setupLegacy(t,
		legacytest.Row{Key: "1", Value: "a"},
		legacytest.Row{Key: "2", Value: "b"},
		legacytest.Row{Key: "3", Value: "c"},
	)

	var calls, lastDone, lastTotal int
	tr := &Transcoder{Progress: func(done, total int) {
		calls++
		lastDone, lastTotal = done, total
	}}

	if _, err := tr.Transcode(legacyPath, storePath, prefix); err != nil {
		t.Fatalf("Transcode failed: %v", err)
	}
	if calls != 3 || lastDone != 3 || lastTotal != 3 {
		t.Errorf("Unexpected progress: calls=%d done=%d total=%d", calls, lastDone, lastTotal)
	}
}

func TestMoveRelational(t *testing.T) {
	tmpDir := t.TempDir()
	legacyPath := filepath.Join(tmpDir, "app_xwalkcore", "Default", "Local Storage", LegacyFileName)
	legacytest.Create(t, legacyPath,
		legacytest.Row{Key: "a", Value: "1"},
		legacytest.Row{Key: "b", Value: "2"},
	)
	if err := os.WriteFile(legacyPath+"-journal", []byte("j"), 0644); err != nil {
		t.Fatalf("Failed to write journal: %v", err)
	}

	storePath := filepath.Join(tmpDir, "app_webview", "Local Storage", "https_localhost_0.localstorage")

	n, err := MoveRelational(afero.NewOsFs(), legacyPath, storePath)
	if err != nil {
		t.Fatalf("MoveRelational failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 records, got %d", n)
	}

	for _, p := range []string{storePath, storePath + "-journal"} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("Expected %s to exist: %v", p, err)
		}
	}
	if _, err := os.Stat(legacyPath); !os.IsNotExist(err) {
		t.Error("Legacy file should have been moved")
	}
}

// renameFailFs fails renames whose source matches failSrc
type renameFailFs struct {
	afero.Fs
	failSrc string
}

func (f *renameFailFs) Rename(oldname, newname string) error {
	if oldname == f.failSrc {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: os.ErrPermission}
	}
	return f.Fs.Rename(oldname, newname)
}

func TestMoveRelationalRollsBack(t *testing.T) {
	tmpDir := t.TempDir()
	legacyPath := filepath.Join(tmpDir, "legacy", LegacyFileName)
	legacytest.Create(t, legacyPath, legacytest.Row{Key: "a", Value: "1"})
	if err := os.WriteFile(legacyPath+"-journal", []byte("j"), 0644); err != nil {
		t.Fatalf("Failed to write journal: %v", err)
	}
	storePath := filepath.Join(tmpDir, "webview", "https_localhost_0.localstorage")

	fs := &renameFailFs{Fs: afero.NewOsFs(), failSrc: legacyPath + "-journal"}
	_, err := MoveRelational(fs, legacyPath, storePath)
	if !errors.Is(err, util.ErrTranscode) {
		t.Fatalf("Expected ErrTranscode, got %v", err)
	}

	if _, err := os.Stat(legacyPath); err != nil {
		t.Errorf("Legacy file should be restored: %v", err)
	}
	if _, err := os.Stat(storePath); !os.IsNotExist(err) {
		t.Error("Destination file should be rolled back")
	}
}

func TestCountRelational(t *testing.T) {
	tmpDir := t.TempDir()
	legacyPath := filepath.Join(tmpDir, LegacyFileName)
	legacytest.Create(t, legacyPath,
		legacytest.Row{Key: "a", Value: "1"},
		legacytest.Row{Key: "b", Value: "2"},
	)

	n, err := CountRelational(legacyPath)
	if err != nil {
		t.Fatalf("CountRelational failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 rows, got %d", n)
	}
	if _, err := os.Stat(legacyPath); err != nil {
		t.Errorf("Legacy file must stay in place: %v", err)
	}

	garbage := filepath.Join(tmpDir, "garbage.localstorage")
	if err := os.WriteFile(garbage, []byte("not a database"), 0644); err != nil {
		t.Fatalf("Failed to write garbage file: %v", err)
	}
	if _, err := CountRelational(garbage); !errors.Is(err, util.ErrLegacySourceUnreadable) {
		t.Errorf("Expected ErrLegacySourceUnreadable, got %v", err)
	}
}
