package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbtypes "github.com/carb/portal_service/internal/db"
	"github.com/carb/portal_service/pkg/models"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	st, err := Open(DialectSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.RunMigrations(context.Background()))
	return st
}

func TestParseDialect(t *testing.T) {
	for _, name := range []string{"postgres", "pgx", "sqlite"} {
		d, err := ParseDialect(name)
		require.NoError(t, err)
		assert.Equal(t, Dialect(name), d)
	}
	_, err := ParseDialect("mariadb")
	assert.Error(t, err)

	_, err = Open(Dialect("oracle"), "x")
	assert.Error(t, err)
}

func TestRunMigrationsIsRepeatable(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.RunMigrations(context.Background()))
}

func TestPingWithRetry(t *testing.T) {
	st := newTestStore(t)
	calls := 0
	require.NoError(t, st.PingWithRetry(context.Background(), 3, time.Millisecond, func(int, error) { calls++ }))
	assert.Zero(t, calls)

	bad, err := Open(DialectSQLite, filepath.Join(t.TempDir(), "missing", "dir", "portal.db"))
	require.NoError(t, err)
	defer bad.Close()

	var attempts []int
	err = bad.PingWithRetry(context.Background(), 2, time.Millisecond, func(attempt int, err error) {
		attempts = append(attempts, attempt)
	})
	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestArticleLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a := &models.Article{Title: "Test Noticia", Body: "Conteúdo longo", CoverImage: "/uploads/img.jpg"}
	require.NoError(t, st.CreateArticle(ctx, a))
	_, err := uuid.Parse(a.ID)
	require.NoError(t, err, "id must be a uuid")
	assert.False(t, a.PostedAt.IsZero())

	got, err := st.GetArticle(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test Noticia", got.Title)
	assert.Equal(t, "Conteúdo longo", got.Body)
	assert.Equal(t, "/uploads/img.jpg", got.CoverImage)
	assert.Zero(t, got.Upvotes)
	assert.Zero(t, got.Downvotes)
	assert.True(t, got.PostedAt.Equal(a.PostedAt))

	_, err = st.GetArticle(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = st.GetArticle(ctx, "9999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListArticlesPagination(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		a := &models.Article{Title: fmt.Sprintf("n%02d", i), PostedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, st.CreateArticle(ctx, a))
	}

	total, err := st.CountArticles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 25, total)

	first, err := st.ListArticles(ctx, 20, 0)
	require.NoError(t, err)
	require.Len(t, first, 20)
	assert.Equal(t, "n24", first[0].Title)
	assert.Equal(t, "n05", first[19].Title)

	second, err := st.ListArticles(ctx, 20, 20)
	require.NoError(t, err)
	require.Len(t, second, 5)
	assert.Equal(t, "n04", second[0].Title)
	assert.Equal(t, "n00", second[4].Title)

	beyond, err := st.ListArticles(ctx, 20, 980)
	require.NoError(t, err)
	assert.NotNil(t, beyond)
	assert.Empty(t, beyond)
}

func TestIncrementVote(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a := &models.Article{Title: "Vota em mim"}
	require.NoError(t, st.CreateArticle(ctx, a))

	counts, err := st.IncrementVote(ctx, a.ID, models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, models.VoteCounts{Up: 1, Down: 0}, counts)

	counts, err = st.IncrementVote(ctx, a.ID, models.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, models.VoteCounts{Up: 1, Down: 1}, counts)

	counts, err = st.IncrementVote(ctx, a.ID, models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, models.VoteCounts{Up: 2, Down: 1}, counts)

	_, err = st.IncrementVote(ctx, uuid.NewString(), models.VoteUp)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = st.IncrementVote(ctx, "999", models.VoteUp)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = st.IncrementVote(ctx, a.ID, models.VoteNone)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))

	got, err := st.GetArticle(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Upvotes)
	assert.Equal(t, 1, got.Downvotes)
}

func TestListings(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	until, err := dbtypes.ParseDate("2026-03-01")
	require.NoError(t, err)
	require.NoError(t, st.CreateAnnouncement(ctx, &models.Announcement{Title: "Matrícula", Message: "Prazo final", Urgent: true, ValidUntil: &until}))
	require.NoError(t, st.CreateAnnouncement(ctx, &models.Announcement{Title: "Recesso"}))

	require.NoError(t, st.CreateJobPosting(ctx, &models.JobPosting{Role: "Estagiário", Office: "CARB", Details: dbtypes.JSONObject{"bolsa": 1000}, Active: true}))
	require.NoError(t, st.CreateJobPosting(ctx, &models.JobPosting{Role: "Encerrada", Office: "CARB", Active: false}))

	require.NoError(t, st.CreateArchiveItem(ctx, &models.ArchiveItem{Title: "Ata", Category: "Legal", Year: 2019}))
	require.NoError(t, st.CreateArchiveItem(ctx, &models.ArchiveItem{Title: "Estatuto", Category: "Legal", Year: 2024}))
	require.NoError(t, st.CreateArchiveItem(ctx, &models.ArchiveItem{Title: "Relatório", Category: "Finanças", Year: 2021}))

	avisos, err := st.ListAnnouncements(ctx)
	require.NoError(t, err)
	require.Len(t, avisos, 2)
	assert.Equal(t, "Matrícula", avisos[0].Title)
	assert.True(t, avisos[0].Urgent)
	require.NotNil(t, avisos[0].ValidUntil)
	assert.Equal(t, "2026-03-01", avisos[0].ValidUntil.String())
	assert.False(t, avisos[1].Urgent)
	assert.Nil(t, avisos[1].ValidUntil)

	vagas, err := st.ListActiveJobPostings(ctx)
	require.NoError(t, err)
	require.Len(t, vagas, 1)
	assert.Equal(t, "Estagiário", vagas[0].Role)
	assert.True(t, vagas[0].Active)
	assert.Equal(t, float64(1000), vagas[0].Details["bolsa"])

	acervo, err := st.ListArchiveItems(ctx)
	require.NoError(t, err)
	require.Len(t, acervo, 3)
	assert.Equal(t, []int{2024, 2021, 2019}, []int{acervo[0].Year, acervo[1].Year, acervo[2].Year})
}

func TestEmptyListingsAreNotNil(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	avisos, err := st.ListAnnouncements(ctx)
	require.NoError(t, err)
	assert.NotNil(t, avisos)

	vagas, err := st.ListActiveJobPostings(ctx)
	require.NoError(t, err)
	assert.NotNil(t, vagas)

	acervo, err := st.ListArchiveItems(ctx)
	require.NoError(t, err)
	assert.NotNil(t, acervo)
}
