package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/bundle"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/compositor"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/params"
)

// contentSecurityPolicy isolates a served document: the sandbox directive
// gives it an opaque origin, and only the asset API is reachable.
func contentSecurityPolicy(apiOrigin string) string {
	return strings.Join([]string{
		"sandbox allow-scripts",
		"default-src 'none'",
		"script-src 'unsafe-inline'",
		"style-src 'unsafe-inline'",
		"img-src " + apiOrigin + " data: blob:",
		"font-src " + apiOrigin + " data:",
		"media-src " + apiOrigin,
		"connect-src " + apiOrigin,
		"base-uri 'none'",
		"form-action 'none'",
	}, "; ")
}

// ServeSandbox renders a tool as a standalone document for an iframe. The
// request's query string becomes the invocation parameters.
func (h *Handlers) ServeSandbox(c *gin.Context) {
	start := time.Now()
	slug := c.Param("slug")
	if !bundle.ValidSlug(slug) {
		h.resolveFailed(c, slug, bundle.NotFound(slug))
		return
	}

	b, err := h.resolver.ResolveBySlug(c.Request.Context(), slug)
	if err != nil {
		h.resolveFailed(c, slug, err)
		return
	}

	lit, err := params.Serialize(params.Extract(c.Request.URL.RawQuery))
	if err != nil {
		h.logger.Error("failed to serialize params", zap.String("slug", slug), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to serialize parameters"})
		return
	}

	doc := compositor.Compose(*b, h.bridgeSource, lit)
	etag := compositor.Fingerprint(doc)

	c.Header("Content-Security-Policy", h.csp)
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Referrer-Policy", "no-referrer")
	c.Header("Cache-Control", "no-cache")
	c.Header("ETag", etag)

	if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
		c.Status(http.StatusNotModified)
		h.metrics.RecordRender("not_modified", time.Since(start))
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(doc))
	h.metrics.RecordRender("served", time.Since(start))
}
