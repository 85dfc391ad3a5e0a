package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/carb/portal_service/internal/logging"
)

// NewRouter builds the engine with middleware and all routes. When staticDir
// is set, unmatched GET requests are served from it.
func NewRouter(h *Handler, staticDir string, log logging.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log), allowAll(), limitBody(MaxBodyBytes))

	RegisterRoutes(r, h)

	if staticDir != "" {
		files := http.FileServer(http.Dir(staticDir))
		r.NoRoute(func(c *gin.Context) {
			if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
				writeError(c, http.StatusNotFound, "Rota não encontrada")
				return
			}
			files.ServeHTTP(c.Writer, c.Request)
		})
	} else {
		r.NoRoute(func(c *gin.Context) {
			writeError(c, http.StatusNotFound, "Rota não encontrada")
		})
	}
	return r
}
