package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// LocalPathEnv overrides the location of the local store database.
const LocalPathEnv = "HITQUERY_CACHE_DB"

const schema = `CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER NOT NULL
)`

// SQLiteStore persists entries in a sqlite database. Values are stored as
// JSON, so they come back as the generic JSON types (map[string]any,
// []any, float64, string, bool, nil).
type SQLiteStore struct {
	db        *sql.DB
	path      string
	opTimeout time.Duration
}

// OpenSQLite opens (creating if needed) a store at the given location.
// Accepted forms: sqlite://path/to/db, sqlite:path/to/db or a plain path.
func OpenSQLite(connectionString string) (*SQLiteStore, error) {
	path, err := parseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(path); dir != "" && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialise cache database: %w", err)
	}

	return &SQLiteStore{
		db:        db,
		path:      path,
		opTimeout: 5 * time.Second,
	}, nil
}

// Path returns the database file backing the store.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	var (
		raw       []byte
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&raw, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup failed: %w", err)
	}

	entry := &Entry{}
	if expiresAt > 0 {
		entry.Expiration = time.UnixMilli(expiresAt)
	}
	if entry.Expired(time.Now()) {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM cache_entries WHERE key = ? AND expires_at = ?`, key, expiresAt,
		); err != nil {
			return nil, false, fmt.Errorf("cache eviction failed: %w", err)
		}
		return nil, false, nil
	}

	if err := json.Unmarshal(raw, &entry.Value); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached value: %w", err)
	}
	return entry, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, entry *Entry) error {
	raw, err := json.Marshal(entry.Value)
	if err != nil {
		return fmt.Errorf("failed to encode cached value: %w", err)
	}

	var expiresAt int64
	if !entry.Expiration.IsZero() {
		expiresAt = entry.Expiration.UnixMilli()
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, raw, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("cache write failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("cache clear failed: %w", err)
	}
	return nil
}

// Purge removes every expired row and returns how many were removed.
func (s *SQLiteStore) Purge(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at > 0 AND expires_at <= ?`, time.Now().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("cache purge failed: %w", err)
	}
	return res.RowsAffected()
}

var (
	localOnce  sync.Once
	localStore *SQLiteStore
	localErr   error
)

// Local returns the process-wide persistent store, opening it on first use
// at LocalPath().
func Local() (*SQLiteStore, error) {
	localOnce.Do(func() {
		path, err := LocalPath()
		if err != nil {
			localErr = err
			return
		}
		localStore, localErr = OpenSQLite(path)
	})
	return localStore, localErr
}

// LocalPath returns where the local store lives: $HITQUERY_CACHE_DB when
// set, otherwise hitquery/cache.db under the user cache directory.
func LocalPath() (string, error) {
	if p := os.Getenv(LocalPathEnv); p != "" {
		return p, nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user cache directory: %w", err)
	}
	return filepath.Join(dir, "hitquery", "cache.db"), nil
}

// parseConnectionString extracts the database path
// Supported formats:
// - sqlite://path/to/db.sqlite
// - sqlite:./test.db
// - ./test.db
func parseConnectionString(connStr string) (string, error) {
	connStr = strings.TrimSpace(connStr)

	switch {
	case strings.HasPrefix(connStr, "sqlite://"):
		connStr = strings.TrimPrefix(connStr, "sqlite://")
	case strings.HasPrefix(connStr, "sqlite:"):
		connStr = strings.TrimPrefix(connStr, "sqlite:")
	case strings.Contains(connStr, "://"):
		return "", fmt.Errorf("unsupported database scheme in %q", connStr)
	}

	if connStr == "" {
		return "", fmt.Errorf("empty database path")
	}
	return connStr, nil
}
