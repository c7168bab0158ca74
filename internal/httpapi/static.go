package httpapi

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

const indexFile = "index.html"

// fallback answers unmatched routes: JSON 404 under /api, otherwise a static
// asset or the single-page entry point.
func (h *handlers) fallback(c *gin.Context) {
	p := c.Request.URL.Path
	if p == "/api" || strings.HasPrefix(p, "/api/") {
		writeError(c, http.StatusNotFound, "API endpoint not found")
		return
	}
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		writeError(c, http.StatusNotFound, "Not found")
		return
	}
	dir := h.Server.StaticDir
	if dir == "" {
		writeError(c, http.StatusNotFound, "Not found")
		return
	}

	clean := path.Clean("/" + p)
	if clean != "/" {
		candidate := filepath.Join(dir, filepath.FromSlash(clean))
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			c.File(candidate)
			return
		}
	}
	index := filepath.Join(dir, indexFile)
	if _, err := os.Stat(index); err != nil {
		writeError(c, http.StatusNotFound, "Not found")
		return
	}
	c.File(index)
}
