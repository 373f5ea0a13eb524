// Package legacytest builds legacy local storage files for tests.
package legacytest

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/unicode"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `CREATE TABLE ItemTable (key TEXT UNIQUE ON CONFLICT REPLACE, value BLOB NOT NULL ON CONFLICT FAIL)`

// Row is a fixture row. Value is UTF-8 text that gets stored UTF-16LE
// encoded, unless Raw is set, in which case Raw is stored verbatim.
type Row struct {
	Key   string
	Value string
	Raw   []byte
}

// Create writes a legacy local storage file at path holding rows.
func Create(t testing.TB, path string, rows ...Row) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("Failed to open legacy fixture: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	for _, row := range rows {
		value := row.Raw
		if value == nil {
			value = EncodeUTF16LE(t, row.Value)
		}
		if _, err := db.Exec("INSERT INTO ItemTable (key, value) VALUES (?, ?)", row.Key, value); err != nil {
			t.Fatalf("Failed to insert row %q: %v", row.Key, err)
		}
	}
}

// EncodeUTF16LE encodes s the way the legacy engine stored values.
func EncodeUTF16LE(t testing.TB, s string) []byte {
	t.Helper()

	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		t.Fatalf("Failed to encode %q: %v", s, err)
	}
	// An empty value must still satisfy the NOT NULL constraint
	if encoded == nil {
		encoded = []byte{}
	}
	return encoded
}
