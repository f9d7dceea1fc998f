package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"koosseis/internal"
)

type DB struct {
	conn *sql.DB
}

// RunRecord is one row of the runs table.
type RunRecord struct {
	TraceID    string
	Source     string
	StartFrom  int
	Limit      int
	Counts     map[string]int
	StartedAt  time.Time
	FinishedAt time.Time
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS works (
  id TEXT PRIMARY KEY,
  composer TEXT NOT NULL,
  category TEXT,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  koosseis TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_works_composer ON works(composer);

CREATE TABLE IF NOT EXISTS instrumentations (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  original_text TEXT NOT NULL,
  instrumentation TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL UNIQUE,
  source TEXT NOT NULL,
  startFrom INTEGER NOT NULL,
  runLimit INTEGER NOT NULL,
  countsJson TEXT NOT NULL,
  startedAt TEXT NOT NULL,
  finishedAt TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertWorks(works []internal.WorkRow) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO works (id, composer, category, title, description, koosseis)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  composer=excluded.composer,
  category=excluded.category,
  title=excluded.title,
  description=excluded.description,
  koosseis=COALESCE(excluded.koosseis, works.koosseis),
  updatedAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, w := range works {
		if _, err := stmt.Exec(w.ID, w.Composer, w.Category, w.Title, w.Description, w.Koosseis); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListWorks returns works in insertion order, which keeps start offsets stable
// between runs.
func (d *DB) ListWorks() ([]internal.WorkRow, error) {
	rows, err := d.conn.Query(`
SELECT id, composer, COALESCE(category, ''), title, description, koosseis
FROM works ORDER BY rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.WorkRow
	for rows.Next() {
		var w internal.WorkRow
		if err := rows.Scan(&w.ID, &w.Composer, &w.Category, &w.Title, &w.Description, &w.Koosseis); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Save upserts one normalized result keyed by its record id.
func (d *DB) Save(ctx context.Context, s internal.Success) error {
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO instrumentations (id, title, original_text, instrumentation)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  title=excluded.title,
  original_text=excluded.original_text,
  instrumentation=excluded.instrumentation,
  updatedAt=CURRENT_TIMESTAMP
`, s.ID, s.Title, s.OriginalText, string(s.Instrumentation))
	return err
}

func (d *DB) InsertRun(run RunRecord) error {
	countsJSON, _ := json.Marshal(run.Counts)
	_, err := d.conn.Exec(`
INSERT INTO runs (traceId, source, startFrom, runLimit, countsJson, startedAt, finishedAt)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, run.TraceID, run.Source, run.StartFrom, run.Limit, string(countsJSON),
		run.StartedAt.UTC().Format(time.RFC3339), run.FinishedAt.UTC().Format(time.RFC3339))
	return err
}

// ListRuns returns the most recent runs first.
func (d *DB) ListRuns(limit int) ([]RunRecord, error) {
	rows, err := d.conn.Query(`
SELECT traceId, source, startFrom, runLimit, countsJson, startedAt, finishedAt
FROM runs ORDER BY id DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var run RunRecord
		var countsJSON, startedAt, finishedAt string
		if err := rows.Scan(&run.TraceID, &run.Source, &run.StartFrom, &run.Limit, &countsJSON, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(countsJSON), &run.Counts)
		run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		run.FinishedAt, _ = time.Parse(time.RFC3339, finishedAt)
		out = append(out, run)
	}
	return out, rows.Err()
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
