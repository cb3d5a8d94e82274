package handlers

import (
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/lessonbook/payments-backend/internal/models"
)

// PageHandler serves the browser client and its configuration
type PageHandler struct {
	publishableKey string
	staticDir      string
	errorPage      string
}

// NewPageHandler creates a new page handler
func NewPageHandler(publishableKey, staticDir, errorPage string) *PageHandler {
	return &PageHandler{
		publishableKey: publishableKey,
		staticDir:      staticDir,
		errorPage:      errorPage,
	}
}

// Config handles GET /config
func (h *PageHandler) Config(c *gin.Context) {
	c.JSON(http.StatusOK, models.ConfigResponse{Key: h.publishableKey})
}

// Page serves a named page from the static directory, or the error page when it is missing
func (h *PageHandler) Page(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if file, ok := h.staticFile(name); ok {
			c.File(file)
			return
		}
		c.File(h.errorPage)
	}
}

// NotFound serves static assets for unmatched GETs and a JSON 404 otherwise
func (h *PageHandler) NotFound(c *gin.Context) {
	if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
		if file, ok := h.staticFile(c.Request.URL.Path); ok {
			c.File(file)
			return
		}
	}
	c.JSON(http.StatusNotFound, ErrorResponse{Error: ErrorDetail{Code: "not_found", Message: "Route not found"}})
}

// staticFile resolves a request path inside the static directory
func (h *PageHandler) staticFile(name string) (string, bool) {
	if h.staticDir == "" {
		return "", false
	}
	// Cleaning against the root keeps ".." from escaping the directory
	file := filepath.Join(h.staticDir, filepath.FromSlash(path.Clean("/"+name)))
	info, err := os.Stat(file)
	if err != nil || info.IsDir() {
		return "", false
	}
	return file, true
}
