// Package imagestore validates uploaded images by their binary signature and
// persists them under generated names.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	// ErrDisallowedType is returned by Detect for anything that is not one of
	// the accepted image formats.
	ErrDisallowedType = errors.New("tipo de arquivo não permitido")

	// ErrNotFound is returned by Open for unknown names.
	ErrNotFound = errors.New("image not found")

	// ErrInvalidName is returned for names that could escape the store root.
	ErrInvalidName = errors.New("invalid image name")
)

// Kind is a detected image format.
type Kind struct {
	MIME      string
	Extension string
}

var allowed = []Kind{
	{MIME: "image/jpeg", Extension: ".jpg"},
	{MIME: "image/png", Extension: ".png"},
	{MIME: "image/gif", Extension: ".gif"},
	{MIME: "image/webp", Extension: ".webp"},
}

// Detect inspects the leading bytes of data. Claimed names and content types
// are never consulted.
func Detect(data []byte) (Kind, error) {
	m := mimetype.Detect(data)
	for _, k := range allowed {
		if m.Is(k.MIME) {
			return k, nil
		}
	}
	return Kind{}, fmt.Errorf("%w: %s", ErrDisallowedType, m.String())
}

// ContentType maps a stored name back to its MIME type by extension.
func ContentType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	for _, k := range allowed {
		if k.Extension == ext {
			return k.MIME
		}
	}
	return "application/octet-stream"
}

// NewName builds a collision-resistant file name: a millisecond timestamp,
// a random suffix and the detected extension.
func NewName(now time.Time, k Kind) string {
	return fmt.Sprintf("%d-%s%s", now.UnixMilli(), uuid.NewString()[:8], k.Extension)
}

// ValidName rejects empty names and anything containing a path element.
func ValidName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Store is where accepted images live.
type Store interface {
	Save(ctx context.Context, name string, data []byte) error
	// Open returns the stored bytes and their size. The caller closes the reader.
	Open(ctx context.Context, name string) (io.ReadCloser, int64, error)
	Remove(ctx context.Context, name string) error
}
