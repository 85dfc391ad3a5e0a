package models

import (
	"time"

	dbtypes "github.com/carb/portal_service/internal/db"
)

// Article represents a news post (noticia) with its vote counters.
type Article struct {
	ID         string    `db:"id" json:"id"`
	Title      string    `db:"title" json:"titulo"`
	Body       string    `db:"body" json:"conteudo"`
	CoverImage string    `db:"cover_image" json:"imagem_capa"`
	PostedAt   time.Time `db:"posted_at" json:"data_postagem"`
	Upvotes    int       `db:"upvotes" json:"upvotes"`
	Downvotes  int       `db:"downvotes" json:"downvotes"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// Announcement is an enrollment notice (aviso). Created administratively.
type Announcement struct {
	ID         int64         `db:"id" json:"id"`
	Title      string        `db:"title" json:"titulo"`
	Message    string        `db:"message" json:"mensagem"`
	Urgent     bool          `db:"urgent" json:"urgente"`
	ValidUntil *dbtypes.Date `db:"valid_until" json:"data_validade"`
	CreatedAt  time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updatedAt"`
}

// JobPosting is an open position (vaga). Only active postings are listed.
type JobPosting struct {
	ID        int64              `db:"id" json:"id"`
	Role      string             `db:"role" json:"cargo"`
	Office    string             `db:"office" json:"escritorio"`
	Details   dbtypes.JSONObject `db:"details" json:"detalhes"`
	ApplyURL  string             `db:"apply_url" json:"link_inscricao"`
	Active    bool               `db:"active" json:"ativo"`
	CreatedAt time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time          `db:"updated_at" json:"updatedAt"`
}

// ArchiveItem is a document in the institutional archive (acervo).
type ArchiveItem struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"titulo"`
	Category  string    `db:"category" json:"categoria"`
	FileURL   string    `db:"file_url" json:"arquivo_url"`
	Year      int       `db:"year" json:"ano"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// VoteCounts is the state of an article's counters after a vote.
type VoteCounts struct {
	Up   int `db:"upvotes" json:"up"`
	Down int `db:"downvotes" json:"down"`
}

// VoteDirection is the parsed "tipo" of a vote request.
type VoteDirection int

const (
	// VoteNone is any value other than up or down. Voting with it changes nothing.
	VoteNone VoteDirection = iota
	VoteUp
	VoteDown
)

// ParseVoteDirection maps exactly "up" and "down" to their directions;
// everything else is VoteNone.
func ParseVoteDirection(s string) VoteDirection {
	switch s {
	case "up":
		return VoteUp
	case "down":
		return VoteDown
	default:
		return VoteNone
	}
}

func (d VoteDirection) String() string {
	switch d {
	case VoteUp:
		return "up"
	case VoteDown:
		return "down"
	default:
		return "none"
	}
}
