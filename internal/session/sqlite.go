package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLite stores tokens in the tab_tokens table created by internal/store.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) Load(ctx context.Context, tab string) (string, bool, error) {
	var token string
	err := s.db.QueryRowContext(ctx, `SELECT token FROM tab_tokens WHERE tab = ?`, tab).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("session: load token: %w", err)
	}
	return token, true, nil
}

func (s *SQLite) Save(ctx context.Context, tab, token string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tab_tokens (tab, token, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(tab) DO UPDATE SET token = excluded.token, updated_at = CURRENT_TIMESTAMP`,
		tab, token,
	)
	if err != nil {
		return fmt.Errorf("session: save token: %w", err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, tab string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tab_tokens WHERE tab = ?`, tab); err != nil {
		return fmt.Errorf("session: delete token: %w", err)
	}
	return nil
}
