package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// MemoryPath selects a private in-memory SQLite database.
const MemoryPath = ":memory:"

// SQLiteDB wraps a SQLite database handle.
type SQLiteDB struct {
	conn   *sql.DB
	path   string
	logger zerolog.Logger
}

var _ Pinger = (*SQLiteDB)(nil)

// OpenSQLite creates or opens the SQLite database at path. The parent
// directory is created when missing. An in-memory database is pinned to a
// single connection so every query sees the same data.
func OpenSQLite(ctx context.Context, path string, logger zerolog.Logger) (*SQLiteDB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	inMemory := path == MemoryPath
	if !inMemory {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating data directory: %w", err)
			}
		}
	}

	conn, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if inMemory {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().
		Str("path", path).
		Bool("in_memory", inMemory).
		Msg("sqlite database opened")

	return &SQLiteDB{conn: conn, path: path, logger: logger}, nil
}

// sqliteDSN applies per-connection pragmas through the modernc DSN syntax.
func sqliteDSN(path string) string {
	pragmas := []string{"_pragma=busy_timeout(5000)", "_pragma=foreign_keys(1)"}
	if path != MemoryPath {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}
	return "file:" + path + "?" + strings.Join(pragmas, "&")
}

// DB returns the underlying database/sql handle.
func (s *SQLiteDB) DB() *sql.DB {
	return s.conn
}

// Path returns the database file path.
func (s *SQLiteDB) Path() string {
	return s.path
}

// Ping verifies the database is reachable.
func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteDB) Close() error {
	s.logger.Info().Msg("closing sqlite database")
	return s.conn.Close()
}

// WithTransaction executes fn inside a transaction. The transaction is
// rolled back if fn returns an error or panics.
func (s *SQLiteDB) WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
