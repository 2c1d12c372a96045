package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStorage keeps the storefront slots in a single-file database on
// the local device, the closest thing to browser local storage a server
// process has.
type SQLiteStorage struct {
	db        *sql.DB
	mu        sync.Mutex
	path      string
	namespace string
	logger    Logger
}

// NewSQLiteStorage opens (or creates) the database at path.
// Use ":memory:" for a throwaway database.
func NewSQLiteStorage(path, namespace string, logger Logger) (*SQLiteStorage, error) {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required: %w", ErrMissingConfiguration)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	s := &SQLiteStorage{db: db, path: path, namespace: namespace, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite storage opened", map[string]interface{}{
		"path":      path,
		"namespace": namespace,
	})
	return s, nil
}

func (s *SQLiteStorage) initialize() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("failed to create kv table: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) formatKey(key string) string {
	return namespacedKey(s.namespace, key)
}

// Get retrieves a value. A missing key is not an error.
func (s *SQLiteStorage) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, s.formatKey(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", s.wrap("sqlite.Get", key, err)
	}
	return value, nil
}

// Set upserts a value
func (s *SQLiteStorage) Set(ctx context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		s.formatKey(key), value)
	if err != nil {
		return s.wrap("sqlite.Set", key, err)
	}
	return nil
}

// Delete removes all given keys in one transaction
func (s *SQLiteStorage) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.wrap("sqlite.Delete", "", err)
	}
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, s.formatKey(key)); err != nil {
			_ = tx.Rollback()
			return s.wrap("sqlite.Delete", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return s.wrap("sqlite.Delete", "", err)
	}
	return nil
}

// Exists checks if a key exists
func (s *SQLiteStorage) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM kv WHERE key = ?`, s.formatKey(key)).Scan(&n)
	if err != nil {
		return false, s.wrap("sqlite.Exists", key, err)
	}
	return n > 0, nil
}

// HealthCheck pings the database
func (s *SQLiteStorage) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return s.wrap("sqlite.HealthCheck", "", err)
	}
	return nil
}

// Close closes the database
func (s *SQLiteStorage) Close() error {
	s.logger.Info("Closing SQLite storage", map[string]interface{}{
		"path": s.path,
	})
	return s.db.Close()
}

func (s *SQLiteStorage) wrap(op, key string, err error) error {
	return &MarketError{
		Op:      op,
		Kind:    "storage",
		ID:      key,
		Message: err.Error(),
		Err:     fmt.Errorf("%v: %w", err, ErrStorageUnavailable),
	}
}
