package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PgQueryCacheRepository implements QueryCacheRepository using PostgreSQL.
type PgQueryCacheRepository struct {
	db DBTX
}

// NewPgQueryCacheRepository creates a new PostgreSQL query cache repository.
func NewPgQueryCacheRepository(db DBTX) *PgQueryCacheRepository {
	return &PgQueryCacheRepository{db: db}
}

var _ QueryCacheRepository = (*PgQueryCacheRepository)(nil)

// LastFetched returns the stored timestamp for query.
func (r *PgQueryCacheRepository) LastFetched(ctx context.Context, query string) (int64, bool, error) {
	var ts int64
	err := r.db.QueryRow(ctx, `SELECT last_fetched FROM query_cache WHERE query = $1`, query).Scan(&ts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read query cache: %w", err)
	}
	return ts, true, nil
}

// Touch upserts the timestamp for query.
func (r *PgQueryCacheRepository) Touch(ctx context.Context, query string, unix int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO query_cache (query, last_fetched)
		VALUES ($1, $2)
		ON CONFLICT (query) DO UPDATE SET last_fetched = EXCLUDED.last_fetched`,
		query, unix)
	if err != nil {
		return fmt.Errorf("failed to update query cache: %w", err)
	}
	return nil
}
