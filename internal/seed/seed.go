// Package seed loads fixture content into the store. Announcements, job
// postings and archive items have no HTTP write path, so this is how they
// get created.
package seed

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	dbtypes "github.com/carb/portal_service/internal/db"
	"github.com/carb/portal_service/internal/service"
	"github.com/carb/portal_service/pkg/models"
)

type Fixture struct {
	Announcements []Announcement `yaml:"avisos"`
	JobPostings   []JobPosting   `yaml:"vagas"`
	ArchiveItems  []ArchiveItem  `yaml:"acervo"`
	Articles      []Article      `yaml:"noticias"`
}

type Announcement struct {
	Title      string `yaml:"titulo"`
	Message    string `yaml:"mensagem"`
	Urgent     bool   `yaml:"urgente"`
	ValidUntil string `yaml:"data_validade"`
}

type JobPosting struct {
	Role     string         `yaml:"cargo"`
	Office   string         `yaml:"escritorio"`
	Details  map[string]any `yaml:"detalhes"`
	ApplyURL string         `yaml:"link_inscricao"`
	// Active defaults to true when omitted.
	Active *bool `yaml:"ativo"`
}

type ArchiveItem struct {
	Title    string `yaml:"titulo"`
	Category string `yaml:"categoria"`
	FileURL  string `yaml:"arquivo_url"`
	Year     int    `yaml:"ano"`
}

type Article struct {
	Title      string    `yaml:"titulo"`
	Body       string    `yaml:"conteudo"`
	CoverImage string    `yaml:"imagem_capa"`
	PostedAt   time.Time `yaml:"data_postagem"`
}

// Writer is the subset of the store the seeder needs.
type Writer interface {
	CreateAnnouncement(ctx context.Context, a *models.Announcement) error
	CreateJobPosting(ctx context.Context, j *models.JobPosting) error
	CreateArchiveItem(ctx context.Context, item *models.ArchiveItem) error
	CreateArticle(ctx context.Context, a *models.Article) error
}

// Counts reports how many rows of each kind were created.
type Counts struct {
	Announcements int
	JobPostings   int
	ArchiveItems  int
	Articles      int
}

func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &f, nil
}

// Apply creates every row in f. It stops at the first failure; rows created
// before it are kept.
func Apply(ctx context.Context, w Writer, f *Fixture) (Counts, error) {
	var n Counts

	for i, a := range f.Announcements {
		m := &models.Announcement{Title: a.Title, Message: a.Message, Urgent: a.Urgent}
		if a.ValidUntil != "" {
			d, err := dbtypes.ParseDate(a.ValidUntil)
			if err != nil {
				return n, fmt.Errorf("avisos[%d]: %w", i, err)
			}
			m.ValidUntil = &d
		}
		if err := w.CreateAnnouncement(ctx, m); err != nil {
			return n, fmt.Errorf("avisos[%d]: %w", i, err)
		}
		n.Announcements++
	}

	for i, j := range f.JobPostings {
		active := true
		if j.Active != nil {
			active = *j.Active
		}
		m := &models.JobPosting{
			Role:     j.Role,
			Office:   j.Office,
			Details:  dbtypes.JSONObject(j.Details),
			ApplyURL: j.ApplyURL,
			Active:   active,
		}
		if err := w.CreateJobPosting(ctx, m); err != nil {
			return n, fmt.Errorf("vagas[%d]: %w", i, err)
		}
		n.JobPostings++
	}

	for i, item := range f.ArchiveItems {
		m := &models.ArchiveItem{Title: item.Title, Category: item.Category, FileURL: item.FileURL, Year: item.Year}
		if err := w.CreateArchiveItem(ctx, m); err != nil {
			return n, fmt.Errorf("acervo[%d]: %w", i, err)
		}
		n.ArchiveItems++
	}

	for i, a := range f.Articles {
		m := &models.Article{Title: a.Title, Body: a.Body, CoverImage: a.CoverImage, PostedAt: a.PostedAt}
		if err := w.CreateArticle(ctx, m); err != nil {
			return n, fmt.Errorf("noticias[%d]: %w", i, err)
		}
		n.Articles++
	}

	return n, nil
}

// Invalidator drops cached values.
type Invalidator interface {
	Delete(ctx context.Context, keys ...string) error
}

// Invalidate drops the cached avisos, vagas and acervo listings so freshly
// seeded rows are served without waiting for the TTL.
func Invalidate(ctx context.Context, c Invalidator) error {
	if err := c.Delete(ctx, service.ListingKeys()...); err != nil {
		return fmt.Errorf("invalidate listings: %w", err)
	}
	return nil
}
