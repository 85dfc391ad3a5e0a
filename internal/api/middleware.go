package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/carb/portal_service/internal/logging"
	"github.com/carb/portal_service/internal/service"
)

// MaxBodyBytes caps request bodies; inline images make uploads large.
const MaxBodyBytes = 50 << 20

// requireAPIKey rejects the request before its body is read unless the
// x-api-key header matches the configured key.
func (h *Handler) requireAPIKey(c *gin.Context) {
	if h.apiKey == "" {
		h.fail(c, service.ErrNotConfigured, "")
		return
	}
	got := c.GetHeader("x-api-key")
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.apiKey)) != 1 {
		h.fail(c, service.ErrForbidden, "")
		return
	}
	c.Next()
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

func requestLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// allowAll mirrors a permissive browser setup: any origin, plus the header
// the mail webhook authenticates with.
func allowAll() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodHead, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "x-api-key"},
		MaxAge:          12 * time.Hour,
	})
}
