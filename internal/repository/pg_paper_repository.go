package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/paper-retrieval-service/internal/domain"
)

const (
	pgInsertPaper = `
		INSERT INTO papers (id, title, authors, abstract, source)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`

	pgSelectPapers = `SELECT id, title, authors, abstract, source FROM papers`
)

// PgPaperRepository implements PaperRepository using PostgreSQL.
type PgPaperRepository struct {
	db DBTX
}

// NewPgPaperRepository creates a new PostgreSQL paper repository.
func NewPgPaperRepository(db DBTX) *PgPaperRepository {
	return &PgPaperRepository{db: db}
}

// Compile-time check that PgPaperRepository implements PaperRepository.
var _ PaperRepository = (*PgPaperRepository)(nil)

// UpsertAll inserts the papers as one pgx batch. The batch is sent in a
// single round trip and runs in an implicit transaction, so either every
// statement commits or none does.
func (r *PgPaperRepository) UpsertAll(ctx context.Context, papers []domain.Paper) (int, error) {
	if len(papers) == 0 {
		return 0, nil
	}

	for i, p := range papers {
		if err := p.Validate(); err != nil {
			return 0, fmt.Errorf("paper at index %d: %w", i, err)
		}
	}

	batch := &pgx.Batch{}
	for _, p := range papers {
		batch.Queue(pgInsertPaper, p.ID, p.Title, p.Authors, p.Abstract, string(p.Source))
	}

	br := r.db.SendBatch(ctx, batch)

	inserted := 0
	for i := range papers {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return 0, fmt.Errorf("failed to insert paper at index %d: %w", i, err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("failed to commit paper batch: %w", err)
	}

	return inserted, nil
}

// SearchSubstring uses strpos rather than LIKE so that % and _ in the query
// are matched literally.
func (r *PgPaperRepository) SearchSubstring(ctx context.Context, q string) ([]domain.Paper, error) {
	query := pgSelectPapers + `
		WHERE strpos(title, $1) > 0 OR strpos(abstract, $1) > 0
		ORDER BY seq`

	rows, err := r.db.Query(ctx, query, q)
	if err != nil {
		return nil, fmt.Errorf("failed to search papers: %w", err)
	}
	return collectPapers(rows)
}

// All returns the whole corpus in insertion order.
func (r *PgPaperRepository) All(ctx context.Context) ([]domain.Paper, error) {
	rows, err := r.db.Query(ctx, pgSelectPapers+` ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list papers: %w", err)
	}
	return collectPapers(rows)
}

// Count returns the number of stored papers.
func (r *PgPaperRepository) Count(ctx context.Context) (int, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM papers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count papers: %w", err)
	}
	return int(n), nil
}

// collectPapers scans every row and closes rows.
func collectPapers(rows pgx.Rows) ([]domain.Paper, error) {
	defer rows.Close()

	papers := make([]domain.Paper, 0)
	for rows.Next() {
		var (
			p      domain.Paper
			source string
		)
		if err := rows.Scan(&p.ID, &p.Title, &p.Authors, &p.Abstract, &source); err != nil {
			return nil, fmt.Errorf("failed to scan paper: %w", err)
		}
		p.Source = domain.SourceType(source)
		papers = append(papers, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating papers: %w", err)
	}
	return papers, nil
}
