package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-retrieval-service/internal/domain"
)

var paperColumns = []string{"id", "title", "authors", "abstract", "source"}

func newTestPaper(id string, source domain.SourceType) domain.Paper {
	return domain.Paper{
		ID:       id,
		Title:    "Attention Is All You Need " + id,
		Authors:  "Ashish Vaswani, Noam Shazeer",
		Abstract: "The dominant sequence transduction models are based on recurrent networks.",
		Source:   source,
	}
}

func TestNewPgPaperRepository(t *testing.T) {
	t.Run("creates repository with nil db", func(t *testing.T) {
		repo := NewPgPaperRepository(nil)
		assert.NotNil(t, repo)
		assert.Nil(t, repo.db)
	})

	t.Run("creates repository with mock db", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		assert.NotNil(t, repo.db)
	})
}

func TestPgPaperRepository_UpsertAll(t *testing.T) {
	ctx := context.Background()

	t.Run("empty input is a no-op", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		n, err := NewPgPaperRepository(mock).UpsertAll(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("counts only newly inserted rows", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		papers := []domain.Paper{
			newTestPaper("http://arxiv.org/abs/1706.03762v7", domain.SourceTypeArXiv),
			newTestPaper("W2963403868", domain.SourceTypeOpenAlex),
			newTestPaper("http://arxiv.org/abs/1706.03762v7", domain.SourceTypeArXiv),
		}

		eb := mock.ExpectBatch()
		for i, p := range papers {
			affected := int64(1)
			if i == 2 {
				affected = 0
			}
			eb.ExpectExec("INSERT INTO papers").
				WithArgs(p.ID, p.Title, p.Authors, p.Abstract, string(p.Source)).
				WillReturnResult(pgxmock.NewResult("INSERT", affected))
		}

		n, err := NewPgPaperRepository(mock).UpsertAll(ctx, papers)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects invalid paper before touching the database", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		bad := newTestPaper("x", domain.SourceTypeArXiv)
		bad.Abstract = ""

		n, err := NewPgPaperRepository(mock).UpsertAll(ctx, []domain.Paper{newTestPaper("ok", domain.SourceTypeArXiv), bad})
		assert.Zero(t, n)
		var validationErr *domain.ValidationError
		require.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "abstract", validationErr.Field)
		assert.Contains(t, err.Error(), "index 1")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns statement error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		p := newTestPaper("a", domain.SourceTypeSemanticScholar)
		eb := mock.ExpectBatch()
		eb.ExpectExec("INSERT INTO papers").
			WithArgs(p.ID, p.Title, p.Authors, p.Abstract, string(p.Source)).
			WillReturnError(errors.New("connection reset"))

		n, err := NewPgPaperRepository(mock).UpsertAll(ctx, []domain.Paper{p})
		assert.Zero(t, n)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to insert paper at index 0")
	})
}

func TestPgPaperRepository_SearchSubstring(t *testing.T) {
	ctx := context.Background()

	t.Run("returns matching rows in order", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`WHERE strpos\(title, \$1\) > 0 OR strpos\(abstract, \$1\) > 0\s+ORDER BY seq`).
			WithArgs("Transformer").
			WillReturnRows(pgxmock.NewRows(paperColumns).
				AddRow("p1", "Transformer models", "A. Author", "abstract one", "arxiv").
				AddRow("p2", "Other", "", "uses a Transformer", "openalex"))

		papers, err := NewPgPaperRepository(mock).SearchSubstring(ctx, "Transformer")
		require.NoError(t, err)
		require.Len(t, papers, 2)
		assert.Equal(t, "p1", papers[0].ID)
		assert.Equal(t, domain.SourceTypeArXiv, papers[0].Source)
		assert.Equal(t, "p2", papers[1].ID)
		assert.Equal(t, domain.SourceTypeOpenAlex, papers[1].Source)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns empty slice when nothing matches", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("SELECT id, title").
			WithArgs("nothing").
			WillReturnRows(pgxmock.NewRows(paperColumns))

		papers, err := NewPgPaperRepository(mock).SearchSubstring(ctx, "nothing")
		require.NoError(t, err)
		assert.NotNil(t, papers)
		assert.Empty(t, papers)
	})

	t.Run("wraps query error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("SELECT id, title").
			WithArgs("q").
			WillReturnError(errors.New("db down"))

		papers, err := NewPgPaperRepository(mock).SearchSubstring(ctx, "q")
		assert.Nil(t, papers)
		assert.ErrorContains(t, err, "failed to search papers")
	})
}

func TestPgPaperRepository_All(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM papers ORDER BY seq`).
		WillReturnRows(pgxmock.NewRows(paperColumns).
			AddRow("p1", "First", "", "first abstract", "semantic_scholar").
			AddRow("p2", "Second", "", "second abstract", "arxiv"))

	papers, err := NewPgPaperRepository(mock).All(context.Background())
	require.NoError(t, err)
	require.Len(t, papers, 2)
	assert.Equal(t, "First", papers[0].Title)
	assert.Equal(t, domain.SourceTypeSemanticScholar, papers[0].Source)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgPaperRepository_Count(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM papers`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))

	n, err := NewPgPaperRepository(mock).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
