package statestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/reglet-dev/reglet-broker/domain/ports"
	_ "modernc.org/sqlite"
)

const schemaSQL = `CREATE TABLE IF NOT EXISTS module_state (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TEXT NOT NULL
)`

type sqliteStoreConfig struct {
	logger    *slog.Logger
	cacheSize int
}

func defaultSQLiteStoreConfig() sqliteStoreConfig {
	return sqliteStoreConfig{
		logger:    slog.Default(),
		cacheSize: 128,
	}
}

// SQLiteStoreOption configures a SQLiteStore.
type SQLiteStoreOption func(*sqliteStoreConfig)

// WithCacheSize sets the number of values kept in the read cache.
// Zero disables caching.
func WithCacheSize(n int) SQLiteStoreOption {
	return func(c *sqliteStoreConfig) {
		c.cacheSize = n
	}
}

// WithStoreLogger sets the logger.
func WithStoreLogger(logger *slog.Logger) SQLiteStoreOption {
	return func(c *sqliteStoreConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// SQLiteStore keeps module state in a SQLite table.
type SQLiteStore struct {
	db     *sql.DB
	cache  *lru.Cache[string, []byte]
	logger *slog.Logger
	path   string
}

var _ ports.StateStore = (*SQLiteStore)(nil)

// OpenSQLiteStore opens (or creates) the database at path.
func OpenSQLiteStore(path string, opts ...SQLiteStoreOption) (*SQLiteStore, error) {
	cfg := defaultSQLiteStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+
		"?_pragma=journal_mode(WAL)"+
		"&_pragma=busy_timeout(5000)"+
		"&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	s := &SQLiteStore{db: db, logger: cfg.logger, path: path}
	if cfg.cacheSize > 0 {
		cache, err := lru.New[string, []byte](cfg.cacheSize)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get implements ports.StateStore.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			return clone(v), true, nil
		}
	}

	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM module_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read state %s: %w", key, err)
	}

	if s.cache != nil {
		s.cache.Add(key, clone(value))
	}
	return value, true, nil
}

// Put implements ports.StateStore.
func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO module_state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now)
	if err != nil {
		if s.cache != nil {
			s.cache.Remove(key)
		}
		return fmt.Errorf("write state %s: %w", key, err)
	}
	if s.cache != nil {
		s.cache.Add(key, clone(value))
	}
	s.logger.DebugContext(ctx, "state written", slog.String("key", key), slog.Int("bytes", len(value)))
	return nil
}

// Location implements ports.StateStore.
func (s *SQLiteStore) Location() string {
	return s.path
}
