// Package repository provides data access for the paper corpus and the
// query staleness cache.
//
// # Repository Interfaces
//
//   - PaperRepository: append-only corpus of paper records
//   - QueryCacheRepository: last-fetched timestamps per query string
//
// Each interface has a PostgreSQL implementation built on pgx (the Pg*
// types) and a SQLite implementation built on database/sql with the
// modernc driver (the SQLite* types). Both engines return rows in
// insertion order and match substrings case-sensitively, so callers see
// the same results regardless of the configured driver.
//
// # Thread Safety
//
// All repository implementations are safe for concurrent use by multiple
// goroutines.
//
// # Usage Pattern
//
//	db, _ := database.New(ctx, cfg, logger)
//	papers := repository.NewPgPaperRepository(db)
//	queries := repository.NewPgQueryCacheRepository(db)
package repository

import (
	"context"
	"database/sql"

	"github.com/helixir/paper-retrieval-service/internal/database"
)

// DBTX is the database interface satisfied by *database.DB, pgx.Tx and
// pgxmock pools.
type DBTX = database.DBTX

// SQLDB is the subset of *sql.DB the SQLite repositories need.
type SQLDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

var _ SQLDB = (*sql.DB)(nil)
