package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteFallbackStore is the on-device key/value store used when the remote store fails.
type SQLiteFallbackStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLiteFallbackStore opens (or creates) the database file and its schema.
func OpenSQLiteFallbackStore(dbPath string, logger *zap.Logger) (*SQLiteFallbackStore, error) {
	if dbPath == "" {
		return nil, errors.New("sqlite fallback path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create fallback dir: %w", err)
	}
	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite fallback: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteFallbackStore{db: db, logger: logger}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("SQLite fallback store opened", zap.String("path", dbPath))
	return s, nil
}

func (s *SQLiteFallbackStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteFallbackStore) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS fallback_kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("ensure fallback schema: %w", err)
	}
	return nil
}

// Get returns the stored value and whether the key exists.
func (s *SQLiteFallbackStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM fallback_kv WHERE key = ?;`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("fallback get %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts the value for key.
func (s *SQLiteFallbackStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO fallback_kv (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("fallback set %s: %w", key, err)
	}
	s.logger.Debug("Fallback value stored", zap.String("key", key), zap.Int("bytes", len(value)))
	return nil
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	u := url.URL{
		Scheme: "file",
		Path:   path,
	}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Set("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}
