package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carb/portal_service/pkg/models"
)

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLStore(sqlx.NewDb(db, "postgres"), DialectPostgres), mock
}

func TestIncrementVote_UsesPostgresPlaceholders(t *testing.T) {
	st, mock := newMockStore(t)
	id := uuid.NewString()

	mock.ExpectQuery(`UPDATE articles SET downvotes = downvotes \+ 1, updated_at = \$1\s+WHERE id = \$2\s+RETURNING upvotes, downvotes`).
		WithArgs(sqlmock.AnyArg(), id).
		WillReturnRows(sqlmock.NewRows([]string{"upvotes", "downvotes"}).AddRow(4, 7))

	counts, err := st.IncrementVote(context.Background(), id, models.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, models.VoteCounts{Up: 4, Down: 7}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementVote_NoRowsIsNotFound(t *testing.T) {
	st, mock := newMockStore(t)
	id := uuid.NewString()

	mock.ExpectQuery(`UPDATE articles SET upvotes = upvotes \+ 1`).
		WithArgs(sqlmock.AnyArg(), id).
		WillReturnRows(sqlmock.NewRows([]string{"upvotes", "downvotes"}))

	_, err := st.IncrementVote(context.Background(), id, models.VoteUp)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementVote_DBError(t *testing.T) {
	st, mock := newMockStore(t)
	id := uuid.NewString()

	mock.ExpectQuery(`UPDATE articles SET upvotes = upvotes \+ 1`).
		WillReturnError(errors.New("db is down"))

	_, err := st.IncrementVote(context.Background(), id, models.VoteUp)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "db is down")
}

func TestCountArticles_DBError(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM articles`).
		WillReturnError(errors.New("connection reset"))

	_, err := st.CountArticles(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count articles")
}

func TestListArticles_PassesLimitOffset(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .* FROM articles\s+ORDER BY posted_at DESC, id DESC\s+LIMIT \$1 OFFSET \$2`).
		WithArgs(20, 40).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "body", "cover_image", "posted_at", "upvotes", "downvotes", "created_at", "updated_at"}))

	rows, err := st.ListArticles(context.Background(), 20, 40)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateArticle_ExecError(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO articles`).
		WillReturnError(errors.New("disk full"))

	a := &models.Article{Title: "T"}
	err := st.CreateArticle(context.Background(), a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert article id="+a.ID)
}

func TestListActiveJobPostings_FiltersOnActive(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`FROM job_postings\s+WHERE active = \$1`).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "role", "office", "details", "apply_url", "active", "created_at", "updated_at"}).
			AddRow(1, "Estagiário", "CARB", []byte(`{"bolsa":1000}`), "https://example.com", true, now, now))

	rows, err := st.ListActiveJobPostings(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Estagiário", rows[0].Role)
	assert.Equal(t, float64(1000), rows[0].Details["bolsa"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
