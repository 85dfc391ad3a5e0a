package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/carb/portal_service/pkg/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

//go:embed migrations
var migrationsFS embed.FS

// Dialect selects the database driver and its schema.
type Dialect string

const (
	DialectPostgres Dialect = "postgres" // github.com/lib/pq
	DialectPgx      Dialect = "pgx"      // github.com/jackc/pgx/v5/stdlib
	DialectSQLite   Dialect = "sqlite"   // modernc.org/sqlite
)

func init() {
	sqlx.BindDriver(string(DialectSQLite), sqlx.QUESTION)
}

// ParseDialect validates a dialect name from configuration.
func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(s); d {
	case DialectPostgres, DialectPgx, DialectSQLite:
		return d, nil
	default:
		return "", fmt.Errorf("unsupported db dialect %q", s)
	}
}

func (d Dialect) migrations() (string, goose.Dialect) {
	if d == DialectSQLite {
		return "migrations/sqlite", goose.DialectSQLite3
	}
	return "migrations/postgres", goose.DialectPostgres
}

// SQLStore persists articles and the ancillary listings through sqlx.
type SQLStore struct {
	db      *sqlx.DB
	dialect Dialect
	now     func() time.Time
}

// Open opens a connection pool for the dialect. It does not ping.
func Open(dialect Dialect, dsn string) (*SQLStore, error) {
	if _, err := ParseDialect(string(dialect)); err != nil {
		return nil, err
	}
	db, err := sqlx.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if dialect == DialectSQLite {
		// one writer; also keeps shared in-memory databases alive
		db.SetMaxOpenConns(1)
	}
	return NewSQLStore(db, dialect), nil
}

// NewSQLStore wraps an existing pool.
func NewSQLStore(db *sqlx.DB, dialect Dialect) *SQLStore {
	return &SQLStore{
		db:      db,
		dialect: dialect,
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		},
	}
}

// Close releases the pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// PingWithRetry pings until the database answers, waiting delay between
// attempts (the database may still be starting in docker). onRetry, when
// non-nil, is called after each failed attempt.
func (s *SQLStore) PingWithRetry(ctx context.Context, attempts int, delay time.Duration, onRetry func(attempt int, err error)) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		if err = s.db.PingContext(ctx); err == nil {
			return nil
		}
		if onRetry != nil {
			onRetry(i, err)
		}
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("could not connect to db after %d attempts: %w", attempts, err)
}

// RunMigrations applies the embedded schema for the store's dialect.
func (s *SQLStore) RunMigrations(ctx context.Context) error {
	dir, dialect := s.dialect.migrations()
	fsys, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(dialect, s.db.DB, fsys)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	return nil
}

const articleColumns = `id, title, body, cover_image, posted_at, upvotes, downvotes, created_at, updated_at`

// CreateArticle inserts a new article. ID and timestamps are assigned when
// empty; vote counters always start at zero.
func (s *SQLStore) CreateArticle(ctx context.Context, a *models.Article) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := s.now()
	if a.PostedAt.IsZero() {
		a.PostedAt = now
	}
	a.Upvotes, a.Downvotes = 0, 0
	a.CreatedAt, a.UpdatedAt = now, now

	query := s.db.Rebind(`
INSERT INTO articles (` + articleColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	_, err := s.db.ExecContext(ctx, query,
		a.ID,
		a.Title,
		a.Body,
		a.CoverImage,
		a.PostedAt,
		a.Upvotes,
		a.Downvotes,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert article id=%s: %w", a.ID, err)
	}
	return nil
}

// GetArticle returns the article or ErrNotFound. Identifiers that are not
// UUIDs cannot exist and are reported as ErrNotFound.
func (s *SQLStore) GetArticle(ctx context.Context, id string) (*models.Article, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	var a models.Article
	query := s.db.Rebind(`SELECT ` + articleColumns + ` FROM articles WHERE id = ?`)
	if err := s.db.GetContext(ctx, &a, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get article id=%s: %w", id, err)
	}
	return &a, nil
}

// CountArticles returns the total number of articles.
func (s *SQLStore) CountArticles(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM articles`); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return n, nil
}

// ListArticles returns one window of articles, newest first.
func (s *SQLStore) ListArticles(ctx context.Context, limit, offset int) ([]*models.Article, error) {
	rows := []*models.Article{}
	query := s.db.Rebind(`
SELECT ` + articleColumns + `
FROM articles
ORDER BY posted_at DESC, id DESC
LIMIT ? OFFSET ?
`)
	if err := s.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return rows, nil
}

var voteColumns = map[models.VoteDirection]string{
	models.VoteUp:   "upvotes",
	models.VoteDown: "downvotes",
}

// IncrementVote adds one vote in a single UPDATE ... RETURNING statement, so
// concurrent votes on the same article never lose updates.
func (s *SQLStore) IncrementVote(ctx context.Context, id string, dir models.VoteDirection) (models.VoteCounts, error) {
	column, ok := voteColumns[dir]
	if !ok {
		return models.VoteCounts{}, fmt.Errorf("unsupported vote direction %s", dir)
	}
	if _, err := uuid.Parse(id); err != nil {
		return models.VoteCounts{}, ErrNotFound
	}
	query := s.db.Rebind(fmt.Sprintf(`
UPDATE articles SET %[1]s = %[1]s + 1, updated_at = ?
WHERE id = ?
RETURNING upvotes, downvotes
`, column))
	var counts models.VoteCounts
	if err := s.db.GetContext(ctx, &counts, query, s.now(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.VoteCounts{}, ErrNotFound
		}
		return models.VoteCounts{}, fmt.Errorf("vote %s on article id=%s: %w", dir, id, err)
	}
	return counts, nil
}

// ListAnnouncements returns every announcement in insertion order.
func (s *SQLStore) ListAnnouncements(ctx context.Context) ([]*models.Announcement, error) {
	rows := []*models.Announcement{}
	query := `
SELECT id, title, message, urgent, valid_until, created_at, updated_at
FROM announcements
ORDER BY id ASC
`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list announcements: %w", err)
	}
	return rows, nil
}

// ListActiveJobPostings returns job postings whose active flag is set.
func (s *SQLStore) ListActiveJobPostings(ctx context.Context) ([]*models.JobPosting, error) {
	rows := []*models.JobPosting{}
	query := s.db.Rebind(`
SELECT id, role, office, details, apply_url, active, created_at, updated_at
FROM job_postings
WHERE active = ?
ORDER BY id ASC
`)
	if err := s.db.SelectContext(ctx, &rows, query, true); err != nil {
		return nil, fmt.Errorf("list job postings: %w", err)
	}
	return rows, nil
}

// ListArchiveItems returns the whole archive, most recent year first.
func (s *SQLStore) ListArchiveItems(ctx context.Context) ([]*models.ArchiveItem, error) {
	rows := []*models.ArchiveItem{}
	query := `
SELECT id, title, category, file_url, year, created_at, updated_at
FROM archive_items
ORDER BY year DESC, id ASC
`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list archive items: %w", err)
	}
	return rows, nil
}

// CreateAnnouncement inserts an announcement and sets its ID.
func (s *SQLStore) CreateAnnouncement(ctx context.Context, a *models.Announcement) error {
	now := s.now()
	a.CreatedAt, a.UpdatedAt = now, now
	query := s.db.Rebind(`
INSERT INTO announcements (title, message, urgent, valid_until, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id
`)
	err := s.db.QueryRowxContext(ctx, query, a.Title, a.Message, a.Urgent, a.ValidUntil, a.CreatedAt, a.UpdatedAt).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("insert announcement: %w", err)
	}
	return nil
}

// CreateJobPosting inserts a job posting and sets its ID.
func (s *SQLStore) CreateJobPosting(ctx context.Context, j *models.JobPosting) error {
	now := s.now()
	j.CreatedAt, j.UpdatedAt = now, now
	query := s.db.Rebind(`
INSERT INTO job_postings (role, office, details, apply_url, active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING id
`)
	err := s.db.QueryRowxContext(ctx, query, j.Role, j.Office, j.Details, j.ApplyURL, j.Active, j.CreatedAt, j.UpdatedAt).Scan(&j.ID)
	if err != nil {
		return fmt.Errorf("insert job posting: %w", err)
	}
	return nil
}

// CreateArchiveItem inserts an archive item and sets its ID.
func (s *SQLStore) CreateArchiveItem(ctx context.Context, item *models.ArchiveItem) error {
	now := s.now()
	item.CreatedAt, item.UpdatedAt = now, now
	query := s.db.Rebind(`
INSERT INTO archive_items (title, category, file_url, year, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id
`)
	err := s.db.QueryRowxContext(ctx, query, item.Title, item.Category, item.FileURL, item.Year, item.CreatedAt, item.UpdatedAt).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("insert archive item: %w", err)
	}
	return nil
}
