package http

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/bridge"
)

// HeaderFallback marks a brand data response that is the empty default.
const HeaderFallback = "X-BrandHub-Fallback"

// BrandData serves one bridge capability to non-guest clients with the same
// contract guests get: the data, or the empty default on any failure.
func (h *Handlers) BrandData(c *gin.Context) {
	capability, ok := bridge.Lookup(c.Param("capability"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown capability"})
		return
	}

	resp, err := h.api.Do(c.Request.Context(), capability.Method, h.api.BaseURL()+capability.Path, nil)
	if err != nil {
		h.fallback(c, capability, zap.Error(err))
		return
	}
	if resp.Status < 200 || resp.Status > 299 {
		h.fallback(c, capability, zap.Int("status", resp.Status))
		return
	}

	var data any
	if err := sonic.Unmarshal(resp.Body, &data); err != nil {
		h.fallback(c, capability, zap.Error(err))
		return
	}
	c.JSON(http.StatusOK, capability.Coerce(data))
}

func (h *Handlers) fallback(c *gin.Context, capability bridge.Capability, reason zap.Field) {
	h.logger.Warn("brand data unavailable", zap.String("capability", capability.Name), reason)
	c.Header(HeaderFallback, "1")
	c.JSON(http.StatusOK, capability.Default())
}
