package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var schema = `
CREATE TABLE IF NOT EXISTS tab_tokens (
    tab TEXT PRIMARY KEY,
    token TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS issued_tabs (
    tab TEXT PRIMARY KEY,
    issued_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS activity (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    tab TEXT NOT NULL,
    kind TEXT NOT NULL,
    path TEXT NOT NULL DEFAULT '',
    outcome TEXT NOT NULL,
    timestamp DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS activity_tab ON activity (tab, id);
`

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}

	// Each connection to :memory: is its own database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// IssueTab records a tab id handed out by the bridge.
func (s *Store) IssueTab(ctx context.Context, tab string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO issued_tabs (tab) VALUES (?)`, tab)
	if err != nil {
		return fmt.Errorf("issuing tab: %w", err)
	}
	return nil
}

// TabIssued reports whether IssueTab has seen tab.
func (s *Store) TabIssued(ctx context.Context, tab string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM issued_tabs WHERE tab = ?`, tab).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("looking up tab: %w", err)
	}
	return n > 0, nil
}

// Activity is one recorded login outcome or guard decision. Tab holds a
// reference to the tab, never the tab id.
type Activity struct {
	ID        int64     `json:"id"`
	Tab       string    `json:"tab"`
	Kind      string    `json:"kind"`
	Path      string    `json:"path,omitempty"`
	Outcome   string    `json:"outcome"`
	Timestamp time.Time `json:"timestamp"`
}

// RecordActivity appends an activity row.
func (s *Store) RecordActivity(ctx context.Context, a Activity) error {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activity (tab, kind, path, outcome, timestamp) VALUES (?, ?, ?, ?, ?)`,
		a.Tab, a.Kind, a.Path, a.Outcome, a.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording activity: %w", err)
	}
	return nil
}

// RecentActivity returns up to limit rows, newest first. An empty tab
// returns rows for every tab.
func (s *Store) RecentActivity(ctx context.Context, tab string, limit int) ([]Activity, error) {
	query := `SELECT id, tab, kind, path, outcome, timestamp FROM activity`
	args := []any{}
	if tab != "" {
		query += ` WHERE tab = ?`
		args = append(args, tab)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying activity: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []Activity{}
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.Tab, &a.Kind, &a.Path, &a.Outcome, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating activity: %w", err)
	}
	return out, nil
}
