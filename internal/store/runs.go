package store

import (
	"database/sql"
	"fmt"
	"time"
)

// InsertRun records a run and its relocations atomically
func (s *Store) InsertRun(run *Run) error {
	removed := 0
	if run.LegacyRemoved {
		removed = 1
	}

	return s.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO runs
			(run_id, started_unix_ms, duration_ms, state, legacy_dir, webview_version, layout, records_migrated, legacy_removed, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, run.RunID, run.StartedAt.UnixMilli(), run.Duration.Milliseconds(), run.State,
			run.LegacyDir, run.WebviewVersion, run.Layout, run.RecordsMigrated, removed, run.Error)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		for _, r := range run.Relocations {
			if _, err := tx.Exec(`
				INSERT INTO relocations (run_id, name, outcome, error) VALUES (?, ?, ?, ?)
			`, run.RunID, r.Name, r.Outcome, r.Error); err != nil {
				return fmt.Errorf("failed to insert relocation %s: %w", r.Name, err)
			}
		}
		return nil
	})
}

// GetRun loads one run, or nil if the id is unknown
func (s *Store) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT run_id, started_unix_ms, duration_ms, state, COALESCE(legacy_dir, ''),
		       COALESCE(webview_version, ''), COALESCE(layout, ''), records_migrated,
		       legacy_removed, COALESCE(error, '')
		FROM runs WHERE run_id = ?
	`, runID)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadRelocations(run); err != nil {
		return nil, err
	}
	return run, nil
}

// LastRun returns the most recent run, or nil if none was recorded
func (s *Store) LastRun() (*Run, error) {
	runs, err := s.ListRuns(1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	if err := s.loadRelocations(runs[0]); err != nil {
		return nil, err
	}
	return runs[0], nil
}

// ListRuns returns up to limit runs, newest first, without relocations
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	rows, err := s.db.Query(`
		SELECT run_id, started_unix_ms, duration_ms, state, COALESCE(legacy_dir, ''),
		       COALESCE(webview_version, ''), COALESCE(layout, ''), records_migrated,
		       legacy_removed, COALESCE(error, '')
		FROM runs
		ORDER BY started_unix_ms DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CountRuns returns the number of recorded runs
func (s *Store) CountRuns() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count)
	return count, err
}

func (s *Store) loadRelocations(run *Run) error {
	rows, err := s.db.Query(`
		SELECT name, outcome, COALESCE(error, '') FROM relocations
		WHERE run_id = ? ORDER BY name
	`, run.RunID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var r Relocation
		if err := rows.Scan(&r.Name, &r.Outcome, &r.Error); err != nil {
			return err
		}
		run.Relocations = append(run.Relocations, r)
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run       Run
		startedMs int64
		durMs     int64
		removed   int
	)
	err := row.Scan(&run.RunID, &startedMs, &durMs, &run.State, &run.LegacyDir,
		&run.WebviewVersion, &run.Layout, &run.RecordsMigrated, &removed, &run.Error)
	if err != nil {
		return nil, err
	}
	run.StartedAt = time.UnixMilli(startedMs)
	run.Duration = time.Duration(durMs) * time.Millisecond
	run.LegacyRemoved = removed == 1
	return &run, nil
}
