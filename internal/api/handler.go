package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/carb/portal_service/internal/logging"
	"github.com/carb/portal_service/internal/service"
	"github.com/carb/portal_service/pkg/models"
)

type Handler struct {
	svc    *service.Service
	apiKey string
	mode   string
	log    logging.Logger
}

// Options are the request-time settings the handlers need from config.
type Options struct {
	APIKey string
	// Mode is reported by /status: "standalone" or "api-only".
	Mode string
}

func NewHandler(svc *service.Service, opts Options, log logging.Logger) *Handler {
	mode := opts.Mode
	if mode == "" {
		mode = "api-only"
	}
	return &Handler{svc: svc, apiKey: opts.APIKey, mode: mode, log: log}
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	r.GET("/status", h.Status)
	r.GET("/uploads/:name", h.Image)
	r.HEAD("/uploads/:name", h.Image)

	api := r.Group("/api")
	{
		api.GET("/noticias", h.ListArticles)
		api.POST("/noticias/:id/voto", h.Vote)
		api.GET("/avisos", h.Announcements)
		api.GET("/vagas", h.JobPostings)
		api.GET("/acervo", h.ArchiveItems)
		api.POST("/upload", h.requireAPIKey, h.Upload)
	}
}

// Status: GET /status
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "online", "modo": h.mode})
}

type articlePageResponse struct {
	TotalItems  int               `json:"total_itens"`
	TotalPages  int               `json:"total_paginas"`
	CurrentPage int               `json:"pagina_atual"`
	Articles    []*models.Article `json:"noticias"`
}

// ListArticles: GET /api/noticias?page=2
func (h *Handler) ListArticles(c *gin.Context) {
	page := parsePage(c.Query("page"))
	res, err := h.svc.ListArticles(c.Request.Context(), page)
	if err != nil {
		h.fail(c, err, "Erro ao buscar notícias")
		return
	}
	c.JSON(http.StatusOK, articlePageResponse{
		TotalItems:  res.Total,
		TotalPages:  res.TotalPages,
		CurrentPage: res.CurrentPage,
		Articles:    res.Items,
	})
}

type voteRequest struct {
	Tipo json.RawMessage `json:"tipo"`
}

// direction maps tipo to a vote. Non-string values count as no vote.
func (r voteRequest) direction() models.VoteDirection {
	var tipo string
	if err := json.Unmarshal(r.Tipo, &tipo); err != nil {
		return models.VoteNone
	}
	return models.ParseVoteDirection(tipo)
}

// Vote: POST /api/noticias/:id/voto
// Body: {"tipo": "up"|"down"}. Any other tipo only reads the counters.
func (h *Handler) Vote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.badBody(c, err)
		return
	}
	counts, err := h.svc.Vote(c.Request.Context(), c.Param("id"), req.direction())
	if err != nil {
		h.fail(c, err, "Erro ao votar")
		return
	}
	c.JSON(http.StatusOK, counts)
}

// Announcements: GET /api/avisos
func (h *Handler) Announcements(c *gin.Context) {
	rows, err := h.svc.Announcements(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Erro ao buscar avisos")
		return
	}
	c.JSON(http.StatusOK, rows)
}

// JobPostings: GET /api/vagas
func (h *Handler) JobPostings(c *gin.Context) {
	rows, err := h.svc.ActiveJobPostings(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Erro ao buscar vagas")
		return
	}
	c.JSON(http.StatusOK, rows)
}

// ArchiveItems: GET /api/acervo
func (h *Handler) ArchiveItems(c *gin.Context) {
	rows, err := h.svc.ArchiveItems(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Erro ao buscar acervo")
		return
	}
	c.JSON(http.StatusOK, rows)
}

type uploadImage struct {
	Nome   string `json:"nome"`
	Base64 string `json:"base64"`
}

type uploadRequest struct {
	Titulo   *string         `json:"titulo"`
	Conteudo *string         `json:"conteudo"`
	Imagem   json.RawMessage `json:"imagem"`
}

// image decodes imagem when it is an object. Anything else means no image.
func (r uploadRequest) image() (*service.ImageUpload, error) {
	raw := bytes.TrimSpace(r.Imagem)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, nil
	}
	var img uploadImage
	if err := json.Unmarshal(raw, &img); err != nil {
		return nil, err
	}
	return &service.ImageUpload{Name: img.Nome, Base64: img.Base64}, nil
}

// Upload: POST /api/upload (requires x-api-key)
// Body: {"titulo": "...", "conteudo": "...", "imagem": {"nome": "...", "base64": "..."}}
func (h *Handler) Upload(c *gin.Context) {
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.badBody(c, err)
		return
	}

	img, err := req.image()
	if err != nil {
		h.badBody(c, err)
		return
	}
	in := service.IngestRequest{Title: req.Titulo, Body: req.Conteudo, Image: img}

	res, err := h.svc.Ingest(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err, "Erro ao processar upload")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "sucesso",
		"id":     res.ArticleID,
		"url":    res.ImageURL,
	})
}

// Image: GET /uploads/:name
func (h *Handler) Image(c *gin.Context) {
	rc, size, contentType, err := h.svc.OpenImage(c.Request.Context(), c.Param("name"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			writeError(c, http.StatusNotFound, "Arquivo não encontrado")
			return
		}
		h.fail(c, err, "Erro ao ler arquivo")
		return
	}
	defer rc.Close()

	if c.Request.Method == http.MethodHead {
		c.Header("Content-Type", contentType)
		c.Header("Content-Length", strconv.FormatInt(size, 10))
		c.Status(http.StatusOK)
		return
	}
	c.DataFromReader(http.StatusOK, size, contentType, rc, nil)
}

// parsePage treats anything that is not a positive integer as page 1.
// Positive values too large for an int saturate instead, so they still read
// as a page past the end.
func parsePage(raw string) int {
	page, err := strconv.Atoi(raw)
	if errors.Is(err, strconv.ErrRange) && page > 0 {
		return math.MaxInt
	}
	if err != nil || page < 1 {
		return 1
	}
	return page
}
