package legacy

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/franz/xwalk-migrate/internal/legacy/legacytest"
)

func TestOpenAndIterate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Local Storage", "file__0.localstorage")
	legacytest.Create(t, path,
		legacytest.Row{Key: "a", Value: "hello"},
		legacytest.Row{Key: "b", Value: "wörld"},
	)

	db, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open legacy db: %v", err)
	}
	defer db.Close()

	count, err := db.Count()
	if err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 rows, got %d", count)
	}

	rows, err := db.Rows()
	if err != nil {
		t.Fatalf("failed to query rows: %v", err)
	}
	defer rows.Close()

	got := map[string][]byte{}
	for rows.Next() {
		item, err := rows.Item()
		if err != nil {
			t.Fatalf("failed to scan item: %v", err)
		}
		got[item.Key] = item.Value
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iteration failed: %v", err)
	}

	want := legacytest.EncodeUTF16LE(t, "hello")
	if string(got["a"]) != string(want) {
		t.Errorf("expected raw UTF-16LE value %x, got %x", want, got["a"])
	}
	if len(got) != 2 {
		t.Errorf("expected 2 items, got %d", len(got))
	}
}

func TestOpenIsReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file__0.localstorage")
	legacytest.Create(t, path, legacytest.Row{Key: "k", Value: "v"})

	db, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open legacy db: %v", err)
	}
	defer db.Close()

	if _, err := db.db.Exec("DELETE FROM ItemTable"); err == nil {
		t.Error("expected write to a read-only handle to fail")
	}
}

func TestOpenFailures(t *testing.T) {
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.localstorage")
	if err := os.WriteFile(garbage, []byte("this is not a database file at all, not even close"), 0644); err != nil {
		t.Fatalf("failed to write garbage: %v", err)
	}

	tests := []struct {
		name string
		path string
	}{
		{name: "missing file", path: filepath.Join(dir, "missing.localstorage")},
		{name: "directory", path: dir},
		{name: "not sqlite", path: garbage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := Open(tt.path)
			if err == nil {
				db.Close()
				t.Fatalf("expected Open(%s) to fail", tt.path)
			}
		})
	}
}

func TestOpenWithoutItemTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.db")
	raw, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to create db: %v", err)
	}
	if _, err := raw.Exec("CREATE TABLE something_else (id INTEGER)"); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	raw.Close()

	if db, err := Open(path); err == nil {
		db.Close()
		t.Fatal("expected Open to reject a database without ItemTable")
	}
}

func TestCheckIntegrityOnEmptyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.localstorage")
	legacytest.Create(t, path)

	db, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open legacy db: %v", err)
	}
	defer db.Close()

	if err := db.CheckIntegrity(); err != nil {
		t.Errorf("expected fresh fixture to pass integrity check: %v", err)
	}
}

func TestSQLiteVersion(t *testing.T) {
	if SQLiteVersion() == "" {
		t.Error("expected a SQLite version string")
	}
}
