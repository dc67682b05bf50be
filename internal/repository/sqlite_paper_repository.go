package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/helixir/paper-retrieval-service/internal/domain"
)

const (
	sqliteInsertPaper = `
		INSERT INTO papers (id, title, authors, abstract, source)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`

	sqliteSelectPapers = `SELECT id, title, authors, abstract, source FROM papers`
)

// SQLitePaperRepository implements PaperRepository using SQLite.
type SQLitePaperRepository struct {
	db SQLDB
}

// NewSQLitePaperRepository creates a new SQLite paper repository.
func NewSQLitePaperRepository(db SQLDB) *SQLitePaperRepository {
	return &SQLitePaperRepository{db: db}
}

var _ PaperRepository = (*SQLitePaperRepository)(nil)

// UpsertAll inserts the papers inside one transaction.
func (r *SQLitePaperRepository) UpsertAll(ctx context.Context, papers []domain.Paper) (inserted int, err error) {
	if len(papers) == 0 {
		return 0, nil
	}

	for i, p := range papers {
		if err := p.Validate(); err != nil {
			return 0, fmt.Errorf("paper at index %d: %w", i, err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, sqliteInsertPaper)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range papers {
		res, err := stmt.ExecContext(ctx, p.ID, p.Title, p.Authors, p.Abstract, string(p.Source))
		if err != nil {
			return 0, fmt.Errorf("failed to insert paper at index %d: %w", i, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit paper batch: %w", err)
	}
	return inserted, nil
}

// SearchSubstring uses instr because LIKE is case-insensitive for ASCII in
// SQLite.
func (r *SQLitePaperRepository) SearchSubstring(ctx context.Context, q string) ([]domain.Paper, error) {
	query := sqliteSelectPapers + `
		WHERE instr(title, ?1) > 0 OR instr(abstract, ?1) > 0
		ORDER BY rowid`

	rows, err := r.db.QueryContext(ctx, query, q)
	if err != nil {
		return nil, fmt.Errorf("failed to search papers: %w", err)
	}
	return collectSQLPapers(rows)
}

// All returns the whole corpus in insertion order.
func (r *SQLitePaperRepository) All(ctx context.Context) ([]domain.Paper, error) {
	rows, err := r.db.QueryContext(ctx, sqliteSelectPapers+` ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list papers: %w", err)
	}
	return collectSQLPapers(rows)
}

// Count returns the number of stored papers.
func (r *SQLitePaperRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM papers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count papers: %w", err)
	}
	return n, nil
}

func collectSQLPapers(rows *sql.Rows) ([]domain.Paper, error) {
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
