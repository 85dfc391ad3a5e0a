package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/carb/portal_service/internal/imagestore"
	"github.com/carb/portal_service/internal/logging"
	"github.com/carb/portal_service/internal/profanity"
	"github.com/carb/portal_service/internal/store"
	"github.com/carb/portal_service/pkg/models"
)

const (
	// PageSize is the fixed number of articles per page.
	PageSize = 20

	DefaultCacheTTL = 60 * time.Second

	// DefaultTitle is used when an ingested article arrives without a title.
	DefaultTitle = "Notícia via E-mail"
)

var (
	ErrNotFound      = store.ErrNotFound
	ErrForbidden     = errors.New("acesso negado")
	ErrValidation    = errors.New("requisição inválida")
	ErrNotConfigured = errors.New("servidor sem chave de upload configurada")
)

type ArticleStore interface {
	CreateArticle(ctx context.Context, a *models.Article) error
	GetArticle(ctx context.Context, id string) (*models.Article, error)
	CountArticles(ctx context.Context) (int, error)
	ListArticles(ctx context.Context, limit, offset int) ([]*models.Article, error)
	IncrementVote(ctx context.Context, id string, dir models.VoteDirection) (models.VoteCounts, error)

	ListAnnouncements(ctx context.Context) ([]*models.Announcement, error)
	ListActiveJobPostings(ctx context.Context) ([]*models.JobPosting, error)
	ListArchiveItems(ctx context.Context) ([]*models.ArchiveItem, error)
}

// Cache holds JSON-encodable listing results. A nil Cache disables caching.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
}

type Service struct {
	repo     ArticleStore
	cache    Cache
	images   imagestore.Store
	filter   *profanity.Filter
	log      logging.Logger
	cacheTTL time.Duration
	now      func() time.Time
}

func NewService(repo ArticleStore, cache Cache, images imagestore.Store, log logging.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		images:   images,
		filter:   profanity.Default(),
		log:      log,
		cacheTTL: DefaultCacheTTL,
		now:      time.Now,
	}
}

// SetCacheTTL changes how long listings stay cached. Zero disables caching.
func (s *Service) SetCacheTTL(ttl time.Duration) {
	s.cacheTTL = ttl
}

// ArticlePage is one page of the article feed.
type ArticlePage struct {
	Items       []*models.Article
	Total       int
	TotalPages  int
	CurrentPage int
}

// ListArticles returns page (1-based) of the feed, newest first. Pages past
// the end are empty but still report the real totals.
func (s *Service) ListArticles(ctx context.Context, page int) (ArticlePage, error) {
	if page < 1 {
		page = 1
	}
	total, err := s.repo.CountArticles(ctx)
	if err != nil {
		return ArticlePage{}, fmt.Errorf("list articles: %w", err)
	}
	res := ArticlePage{
		Items:       []*models.Article{},
		Total:       total,
		TotalPages:  int(math.Ceil(float64(total) / PageSize)),
		CurrentPage: page,
	}
	// past the end; also keeps (page-1)*PageSize from overflowing
	if page > res.TotalPages {
		return res, nil
	}
	items, err := s.repo.ListArticles(ctx, PageSize, (page-1)*PageSize)
	if err != nil {
		return ArticlePage{}, fmt.Errorf("list articles page=%d: %w", page, err)
	}
	if items != nil {
		res.Items = items
	}
	return res, nil
}

// Vote bumps one counter of the article and returns both counters. VoteNone
// leaves the article untouched and reports its current counts.
func (s *Service) Vote(ctx context.Context, id string, dir models.VoteDirection) (models.VoteCounts, error) {
	if dir == models.VoteNone {
		a, err := s.repo.GetArticle(ctx, id)
		if err != nil {
			return models.VoteCounts{}, fmt.Errorf("vote id=%s: %w", id, err)
		}
		return models.VoteCounts{Up: a.Upvotes, Down: a.Downvotes}, nil
	}
	counts, err := s.repo.IncrementVote(ctx, id, dir)
	if err != nil {
		return models.VoteCounts{}, fmt.Errorf("vote %s id=%s: %w", dir, id, err)
	}
	return counts, nil
}

func (s *Service) Announcements(ctx context.Context) ([]*models.Announcement, error) {
	return cached(ctx, s, "avisos", s.repo.ListAnnouncements)
}

func (s *Service) ActiveJobPostings(ctx context.Context) ([]*models.JobPosting, error) {
	return cached(ctx, s, "vagas", s.repo.ListActiveJobPostings)
}

func (s *Service) ArchiveItems(ctx context.Context) ([]*models.ArchiveItem, error) {
	return cached(ctx, s, "acervo", s.repo.ListArchiveItems)
}

// CacheKey is where the listing called name is cached.
func CacheKey(name string) string {
	return "listing:" + name
}

// ListingKeys are the cache keys of every cached listing.
func ListingKeys() []string {
	return []string{CacheKey("avisos"), CacheKey("vagas"), CacheKey("acervo")}
}

// cached serves a listing from the cache when possible. Cache faults are
// logged and never fail the request.
func cached[T any](ctx context.Context, s *Service, name string, load func(context.Context) ([]T, error)) ([]T, error) {
	key := CacheKey(name)
	useCache := s.cache != nil && s.cacheTTL > 0

	if useCache {
		var hit []T
		ok, err := s.cache.Get(ctx, key, &hit)
		if err != nil {
			s.log.Warn(ctx, "listing cache read failed", "key", key, "err", err)
		} else if ok && hit != nil {
			return hit, nil
		}
	}

	rows, err := load(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", name, err)
	}

	if useCache {
		if err := s.cache.Set(ctx, key, rows, s.cacheTTL); err != nil {
			s.log.Warn(ctx, "listing cache write failed", "key", key, "err", err)
		}
	}
	return rows, nil
}

// OpenImage returns a stored upload and its content type.
func (s *Service) OpenImage(ctx context.Context, name string) (io.ReadCloser, int64, string, error) {
	rc, size, err := s.images.Open(ctx, name)
	if err != nil {
		if errors.Is(err, imagestore.ErrNotFound) {
			return nil, 0, "", fmt.Errorf("image %s: %w", name, ErrNotFound)
		}
		return nil, 0, "", fmt.Errorf("open image %s: %w", name, err)
	}
	return rc, size, imagestore.ContentType(name), nil
}
