package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carb/portal_service/internal/store"
	"github.com/carb/portal_service/pkg/models"
)

const fixture = `
avisos:
  - titulo: Matrícula aberta
    mensagem: Inscrições até março
    urgente: true
    data_validade: 2026-03-01
  - titulo: Recesso
vagas:
  - cargo: Estagiário
    escritorio: CARB Centro
    detalhes:
      bolsa: 1000
      turno: manhã
    link_inscricao: https://example.com/vaga
  - cargo: Encerrada
    ativo: false
acervo:
  - titulo: Ata de fundação
    categoria: Histórico
    arquivo_url: /acervo/ata.pdf
    ano: 1998
noticias:
  - titulo: Bem-vindos
    conteudo: Primeira notícia
    data_postagem: 2026-01-15T10:00:00Z
`

func writeFixture(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func newTestStore(t *testing.T) *store.SQLStore {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	st, err := store.Open(store.DialectSQLite, fmt.Sprintf("file:seed_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.RunMigrations(context.Background()))
	return st
}

func TestLoadAndApply(t *testing.T) {
	f, err := Load(writeFixture(t, fixture))
	require.NoError(t, err)

	st := newTestStore(t)
	ctx := context.Background()

	n, err := Apply(ctx, st, f)
	require.NoError(t, err)
	assert.Equal(t, Counts{Announcements: 2, JobPostings: 2, ArchiveItems: 1, Articles: 1}, n)

	avisos, err := st.ListAnnouncements(ctx)
	require.NoError(t, err)
	require.Len(t, avisos, 2)
	require.NotNil(t, avisos[0].ValidUntil)
	assert.Equal(t, "2026-03-01", avisos[0].ValidUntil.String())
	assert.Nil(t, avisos[1].ValidUntil)

	vagas, err := st.ListActiveJobPostings(ctx)
	require.NoError(t, err)
	require.Len(t, vagas, 1)
	assert.Equal(t, "Estagiário", vagas[0].Role)
	assert.Equal(t, "manhã", vagas[0].Details["turno"])

	page, err := st.ListArticles(ctx, 20, 0)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.True(t, page[0].PostedAt.Equal(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)))
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFixture(t, "avisos: {not: a list"))
	assert.Error(t, err)
}

type failingWriter struct {
	Writer
}

func (failingWriter) CreateAnnouncement(context.Context, *models.Announcement) error {
	return errors.New("insert failed")
}

func TestApply_StopsAtFirstFailure(t *testing.T) {
	f := &Fixture{Announcements: []Announcement{{Title: "A"}}}
	n, err := Apply(context.Background(), failingWriter{}, f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "avisos[0]")
	assert.Zero(t, n.Announcements)
}

func TestApply_BadDate(t *testing.T) {
	f := &Fixture{Announcements: []Announcement{{Title: "A", ValidUntil: "01/03/2026"}}}
	_, err := Apply(context.Background(), failingWriter{}, f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "avisos[0]")
}

type fakeInvalidator struct {
	deleted []string
	err     error
}

func (f *fakeInvalidator) Delete(_ context.Context, keys ...string) error {
	f.deleted = append(f.deleted, keys...)
	return f.err
}

func TestInvalidate(t *testing.T) {
	c := &fakeInvalidator{}
	require.NoError(t, Invalidate(context.Background(), c))
	assert.ElementsMatch(t, []string{"listing:avisos", "listing:vagas", "listing:acervo"}, c.deleted)
}

func TestInvalidate_Fault(t *testing.T) {
	c := &fakeInvalidator{err: errors.New("redis down")}
	err := Invalidate(context.Background(), c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
}
