package repository

import (
	"context"

	"github.com/helixir/paper-retrieval-service/internal/domain"
)

// PaperRepository persists the paper corpus. Stored records are never
// modified; a record whose id is already present is skipped on insert.
type PaperRepository interface {
	// UpsertAll inserts every paper whose id is not yet stored and returns
	// how many rows were added. When the same id appears more than once,
	// the first occurrence wins. The batch is applied atomically: on error
	// nothing from it is stored.
	UpsertAll(ctx context.Context, papers []domain.Paper) (int, error)

	// SearchSubstring returns the papers whose title or abstract contains
	// q as a case-sensitive substring, in insertion order.
	SearchSubstring(ctx context.Context, q string) ([]domain.Paper, error)

	// All returns the whole corpus in insertion order.
	All(ctx context.Context) ([]domain.Paper, error)

	// Count returns the number of stored papers.
	Count(ctx context.Context) (int, error)
}
