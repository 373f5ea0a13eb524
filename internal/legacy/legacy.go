// Package legacy reads the Crosswalk-era local storage database.
//
// Each origin's local storage lives in a single SQLite file with one table:
//
//	CREATE TABLE ItemTable (key TEXT UNIQUE ON CONFLICT REPLACE, value BLOB NOT NULL ON CONFLICT FAIL)
//
// Values are stored as UTF-16LE text. The reader never writes to the file.
package legacy

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"

	_ "modernc.org/sqlite" // SQLite driver
)

// TableName is the table every legacy local storage file carries
const TableName = "ItemTable"

// Item is one legacy local storage row
type Item struct {
	Key   string
	Value []byte
}

// DB is a read-only handle on a legacy local storage file
type DB struct {
	db   *sql.DB
	path string
}

// Open opens the legacy database at path read-only and checks that it
// carries the local storage table.
func Open(path string) (*DB, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat database: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}

	db, err := sql.Open("sqlite", readOnlyDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One reader, no pooling
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	d := &DB{db: db, path: path}
	if err := d.checkTable(); err != nil {
		db.Close()
		return nil, err
	}

	return d, nil
}

func readOnlyDSN(path string) string {
	u := url.URL{Scheme: "file", Path: path, RawQuery: "mode=ro"}
	return u.String()
}

// checkTable fails on files that are not SQLite databases or that lack
// the local storage table.
func (d *DB) checkTable() error {
	var count int
	err := d.db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name=?
	`, TableName).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("table %s not found in %s", TableName, d.path)
	}
	return nil
}

// Path returns the file the handle was opened on
func (d *DB) Path() string {
	return d.path
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// Count returns the number of rows in the local storage table
func (d *DB) Count() (int, error) {
	var count int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM " + TableName).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return count, nil
}

// Rows starts a fresh pass over every row. Each call returns an
// independent cursor which the caller must close.
func (d *DB) Rows() (*Rows, error) {
	rows, err := d.db.Query("SELECT key, value FROM " + TableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}
	return &Rows{rows: rows}, nil
}

// CheckIntegrity runs PRAGMA integrity_check on the database
func (d *DB) CheckIntegrity() error {
	var result string
	err := d.db.QueryRow("PRAGMA integrity_check").Scan(&result)
	if err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}

	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	return nil
}

// Rows is a forward-only cursor over legacy items
type Rows struct {
	rows *sql.Rows
}

// Next advances to the next row
func (r *Rows) Next() bool {
	return r.rows.Next()
}

// Item scans the current row
func (r *Rows) Item() (Item, error) {
	var (
		key   sql.NullString
		value []byte
	)
	if err := r.rows.Scan(&key, &value); err != nil {
		return Item{}, fmt.Errorf("failed to scan row: %w", err)
	}
	if !key.Valid {
		return Item{}, fmt.Errorf("row has NULL key")
	}
	return Item{Key: key.String, Value: value}, nil
}

// Err returns the error, if any, hit during iteration
func (r *Rows) Err() error {
	return r.rows.Err()
}

// Close releases the cursor
func (r *Rows) Close() error {
	return r.rows.Close()
}

// SQLiteVersion returns the SQLite version string
func SQLiteVersion() string {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return ""
	}
	defer db.Close()

	var version string
	err = db.QueryRow("SELECT sqlite_version()").Scan(&version)
	if err != nil {
		return ""
	}
	return version
}
