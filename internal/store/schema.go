package store

// Schema v1 - one row per migration run
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS runs (
  run_id TEXT PRIMARY KEY,
  started_unix_ms INTEGER NOT NULL,
  duration_ms INTEGER NOT NULL DEFAULT 0,
  state TEXT NOT NULL,
  legacy_dir TEXT,
  webview_version TEXT,
  layout TEXT,
  records_migrated INTEGER NOT NULL DEFAULT 0,
  legacy_removed INTEGER NOT NULL DEFAULT 0,
  error TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_unix_ms);
`

// Schema v2 - per-directory relocation outcomes
const schemaV2 = `
CREATE TABLE IF NOT EXISTS relocations (
  run_id TEXT REFERENCES runs(run_id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  outcome TEXT NOT NULL,
  error TEXT,
  PRIMARY KEY (run_id, name)
);
`
