package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonboulle/clockwork"
	_ "github.com/mattn/go-sqlite3"
)

// OpenSQLite opens (creating if needed) the SQLite database at path.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func buildDSN(path string) (string, error) {
	if path == ":memory:" {
		return "file::memory:?cache=shared&_busy_timeout=5000", nil
	}

	params := []string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}

	// Caller-supplied URI: pass through, appending our parameters.
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}

// SQLiteStore is a durable key-value store backed by a single options table.
type SQLiteStore struct {
	db    *sql.DB
	clock clockwork.Clock
}

func NewSQLiteStore(db *sql.DB, clock clockwork.Clock) *SQLiteStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SQLiteStore{db: db, clock: clock}
}

const createOptionsTable = `CREATE TABLE IF NOT EXISTS options (
	name TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Migrate creates the options table if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createOptionsTable); err != nil {
		return fmt.Errorf("migrate options table: %w", err)
	}
	return nil
}

// Get returns the value stored under name, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, name string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM options WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get option %s: %w", name, err)
	}
	return value, nil
}

// Put inserts or replaces the value stored under name.
func (s *SQLiteStore) Put(ctx context.Context, name string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO options (name, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, value, s.clock.Now().Unix())
	if err != nil {
		return fmt.Errorf("put option %s: %w", name, err)
	}
	return nil
}

// Delete removes name. Deleting a missing key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM options WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete option %s: %w", name, err)
	}
	return nil
}
