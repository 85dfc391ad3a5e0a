package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/carb/portal_service/internal/imagestore"
	"github.com/carb/portal_service/pkg/models"
)

// ImageUpload is an inline image as sent by the mail webhook. Name is the
// sender's file name and is only ever logged.
type ImageUpload struct {
	Name   string
	Base64 string
}

// IngestRequest carries an article submitted by the webhook. Nil fields were
// absent from the request.
type IngestRequest struct {
	Title *string
	Body  *string
	Image *ImageUpload
}

type IngestResult struct {
	ArticleID string
	ImageURL  string
}

// Ingest validates the optional image, stores it, sanitizes the text and
// creates one article. Nothing is written when the image is rejected.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	var (
		data []byte
		kind imagestore.Kind
	)
	if req.Image != nil && req.Image.Base64 != "" {
		var err error
		data, err = decodeBase64(req.Image.Base64)
		if err != nil {
			return IngestResult{}, fmt.Errorf("%w: imagem base64 inválida", ErrValidation)
		}
		kind, err = imagestore.Detect(data)
		if err != nil {
			return IngestResult{}, fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}

	var res IngestResult
	var stored string
	if data != nil {
		stored = imagestore.NewName(s.now(), kind)
		if err := s.images.Save(ctx, stored, data); err != nil {
			return IngestResult{}, fmt.Errorf("save image: %w", err)
		}
		res.ImageURL = "/uploads/" + stored
		s.log.Info(ctx, "image stored", "name", stored, "original_name", req.Image.Name, "type", kind.MIME, "bytes", len(data))
	}

	a := &models.Article{
		Title:      s.titleOf(req.Title),
		CoverImage: res.ImageURL,
	}
	if req.Body != nil {
		a.Body = s.filter.Sanitize(*req.Body)
	}

	if err := s.repo.CreateArticle(ctx, a); err != nil {
		if stored != "" {
			if rmErr := s.images.Remove(ctx, stored); rmErr != nil {
				s.log.Warn(ctx, "remove orphaned image", "name", stored, "err", rmErr)
			}
		}
		return IngestResult{}, fmt.Errorf("create article: %w", err)
	}

	res.ArticleID = a.ID
	s.log.Info(ctx, "article created via webhook", "id", a.ID, "title", a.Title)
	return res, nil
}

func (s *Service) titleOf(title *string) string {
	if title == nil || *title == "" {
		return DefaultTitle
	}
	return s.filter.Sanitize(*title)
}

// decodeBase64 accepts plain standard base64 or a data URL.
func decodeBase64(in string) ([]byte, error) {
	if strings.HasPrefix(in, "data:") {
		i := strings.Index(in, ";base64,")
		if i < 0 {
			return nil, errors.New("data url without base64 payload")
		}
		in = in[i+len(";base64,"):]
	}
	in = strings.TrimSpace(in)
	return base64.StdEncoding.DecodeString(in)
}
