package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// SQLite keeps session items in a local database file. Rows are scoped to a
// single session ID; sessions idle for longer than the TTL are dropped when
// the store is opened, including the one being opened. A session row is
// only created by the first write.
type SQLite struct {
	db        *sql.DB
	sessionID string
	log       zerolog.Logger
	now       func() time.Time
	mu        sync.Mutex
}

type Option func(*SQLite)

func WithLogger(log zerolog.Logger) Option {
	return func(s *SQLite) { s.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(s *SQLite) { s.now = now }
}

func OpenSQLite(ctx context.Context, dbPath, sessionID string, ttl time.Duration, opts ...Option) (*SQLite, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("open session store: empty session id")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, sessionID: sessionID, log: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if ttl > 0 {
		if err := s.pruneExpired(ctx, ttl); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := s.touch(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) SessionID() string {
	return s.sessionID
}

func (s *SQLite) initSchema(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			created_at INTEGER,
			last_seen INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS session_items (
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at INTEGER,
			PRIMARY KEY (session_id, key)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_last_seen ON sessions(last_seen);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLite) pruneExpired(ctx context.Context, ttl time.Duration) error {
	cutoff := s.now().Add(-ttl).Unix()
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE last_seen < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("prune expired sessions: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_items WHERE session_id NOT IN (SELECT id FROM sessions)`); err != nil {
		return fmt.Errorf("prune orphaned items: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.log.Info().Int64("sessions", n).Dur("ttl", ttl).Msg("dropped expired sessions")
	}
	return nil
}

func (s *SQLite) touch(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET last_seen = ? WHERE id = ?`, s.now().Unix(), s.sessionID)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (s *SQLite) GetItem(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM session_items WHERE session_id = ? AND key = ?`,
		s.sessionID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get item %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLite) SetItem(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().Unix()
	if _, err := tx.ExecContext(ctx, `INSERT INTO sessions (id, created_at, last_seen) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET last_seen = excluded.last_seen`, s.sessionID, now, now); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO session_items (session_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.sessionID, key, value, now); err != nil {
		return fmt.Errorf("set item %q: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit item %q: %w", key, err)
	}
	return nil
}

// Clear ends the session: its items and its session row are removed.
func (s *SQLite) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_items WHERE session_id = ?`, s.sessionID); err != nil {
		return fmt.Errorf("clear session items: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, s.sessionID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.log.Info().Str("session", s.sessionID).Msg("session ended")
	return nil
}
