package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLiteQueryCacheRepository implements QueryCacheRepository using SQLite.
type SQLiteQueryCacheRepository struct {
	db SQLDB
}

// NewSQLiteQueryCacheRepository creates a new SQLite query cache repository.
func NewSQLiteQueryCacheRepository(db SQLDB) *SQLiteQueryCacheRepository {
	return &SQLiteQueryCacheRepository{db: db}
}

var _ QueryCacheRepository = (*SQLiteQueryCacheRepository)(nil)

// LastFetched returns the stored timestamp for query.
func (r *SQLiteQueryCacheRepository) LastFetched(ctx context.Context, query string) (int64, bool, error) {
	var ts int64
	err := r.db.QueryRowContext(ctx, `SELECT last_fetched FROM query_cache WHERE query = ?`, query).Scan(&ts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read query cache: %w", err)
	}
	return ts, true, nil
}

// Touch upserts the timestamp for query.
func (r *SQLiteQueryCacheRepository) Touch(ctx context.Context, query string, unix int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO query_cache (query, last_fetched)
		VALUES (?, ?)
		ON CONFLICT (query) DO UPDATE SET last_fetched = excluded.last_fetched`,
		query, unix)
	if err != nil {
		return fmt.Errorf("failed to update query cache: %w", err)
	}
	return nil
}
