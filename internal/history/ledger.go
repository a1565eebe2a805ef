package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const DefaultFile = "history.db"

// Entry is one recorded maintenance run.
type Entry struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	State      string    `json:"state"`
	Dropped    int       `json:"dropped"`
	Artifacts  int       `json:"artifacts"`
	Purged     int       `json:"purged"`
	Compacted  int       `json:"compacted"`
	Skipped    int       `json:"skipped"`
	Error      string    `json:"error,omitempty"`
}

// Ledger persists run entries in a SQLite database.
type Ledger struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open creates or opens the ledger at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal=WAL&_synchronous=NORMAL", filepath.ToSlash(path))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Ledger{db: db, path: path}, nil
}

func (l *Ledger) Path() string {
	return l.path
}

func (l *Ledger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

func initSchema(db *sql.DB) error {
	statements := []string{
		"PRAGMA journal_mode = WAL;",
		`CREATE TABLE IF NOT EXISTS runs (
id          TEXT PRIMARY KEY,
started_at  INTEGER NOT NULL,
finished_at INTEGER NOT NULL,
state       TEXT NOT NULL,
dropped     INTEGER NOT NULL,
artifacts   INTEGER NOT NULL,
purged      INTEGER NOT NULL,
compacted   INTEGER NOT NULL,
skipped     INTEGER NOT NULL,
error       TEXT NOT NULL DEFAULT ''
);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("init history schema: %w", err)
		}
	}
	return nil
}

// Record stores e, replacing an entry with the same id.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return fmt.Errorf("history ledger closed")
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs
(id, started_at, finished_at, state, dropped, artifacts, purged, compacted, skipped, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.StartedAt.UnixNano(), e.FinishedAt.UnixNano(), e.State,
		e.Dropped, e.Artifacts, e.Purged, e.Compacted, e.Skipped, e.Error,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", e.ID, err)
	}
	return nil
}

// List returns up to limit entries, newest first. A non-positive limit
// returns every entry.
func (l *Ledger) List(ctx context.Context, limit int) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil, fmt.Errorf("history ledger closed")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, state, dropped, artifacts, purged, compacted, skipped, error
FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e                 Entry
			started, finished int64
		)
		if err := rows.Scan(&e.ID, &started, &finished, &e.State,
			&e.Dropped, &e.Artifacts, &e.Purged, &e.Compacted, &e.Skipped, &e.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		e.StartedAt = time.Unix(0, started)
		e.FinishedAt = time.Unix(0, finished)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
