package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/carb/portal_service/internal/imagestore"
	"github.com/carb/portal_service/internal/service"
)

func writeError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"erro": msg})
}

// fail maps service errors to responses. Unexpected errors are logged and
// answered with fallback; their text never reaches the client.
func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	ctx := c.Request.Context()
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(c, http.StatusNotFound, "Notícia não encontrada")
	case errors.Is(err, service.ErrForbidden):
		writeError(c, http.StatusForbidden, "Acesso negado")
	case errors.Is(err, imagestore.ErrDisallowedType):
		writeError(c, http.StatusBadRequest, "Tipo de arquivo não permitido. Envie JPEG, PNG, GIF ou WEBP.")
	case errors.Is(err, service.ErrValidation):
		writeError(c, http.StatusBadRequest, "Imagem inválida")
	case errors.Is(err, service.ErrNotConfigured):
		h.log.Error(ctx, "upload rejected: server has no API key configured", "path", c.FullPath())
		writeError(c, http.StatusInternalServerError, "Servidor sem chave de upload configurada")
	default:
		h.log.Error(ctx, fallback, "path", c.FullPath(), "err", err)
		writeError(c, http.StatusInternalServerError, fallback)
	}
}

// badBody answers a request whose JSON body could not be read.
func (h *Handler) badBody(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(c, http.StatusRequestEntityTooLarge, "Requisição muito grande")
		return
	}
	writeError(c, http.StatusBadRequest, "JSON inválido")
}
