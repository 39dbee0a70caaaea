package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/BrandHub/backend/internal/domain/view"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/bundle"
)

// resolveStatus maps a resolution failure to an HTTP status.
func resolveStatus(kind bundle.ErrorKind) int {
	switch kind {
	case bundle.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func (h *Handlers) resolveFailed(c *gin.Context, slug string, err error) {
	kind := bundle.KindOf(err)
	if kind == "" {
		kind = bundle.KindTransport
	}
	h.metrics.RecordResolveError(string(kind))
	if kind != bundle.KindNotFound {
		h.logger.Warn("bundle resolution failed", zap.String("slug", slug), zap.Error(err))
	}
	c.JSON(resolveStatus(kind), gin.H{
		"error": err.Error(),
		"kind":  kind,
		"slug":  slug,
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func viewError(c *gin.Context, err error) {
	if errors.Is(err, view.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
