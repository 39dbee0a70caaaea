package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/BrandHub/backend/internal/domain/view"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/bundle"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/selection"
	"github.com/GriffinCanCode/BrandHub/backend/internal/shared/id"
)

// CreateViewRequest opens a view, optionally at an address.
type CreateViewRequest struct {
	URL string `json:"url"`
}

// SelectRequest selects a tool in a view.
type SelectRequest struct {
	Slug string `json:"slug" binding:"required"`
}

// NavigateRequest replaces a view's address.
type NavigateRequest struct {
	URL string `json:"url" binding:"required"`
}

// CreateView opens a new view
func (h *Handlers) CreateView(c *gin.Context) {
	var req CreateViewRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	if req.URL == "" {
		req.URL = "/"
	}

	v, err := h.views.Create(c.Request.Context(), req.URL)
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusCreated, v.Info(c.Request.Context(), false))
}

// ListViews lists all views
func (h *Handlers) ListViews(c *gin.Context) {
	views := h.views.List()
	infos := make([]view.Info, 0, len(views))
	for _, v := range views {
		infos = append(infos, v.Info(c.Request.Context(), false))
	}
	c.JSON(http.StatusOK, gin.H{"views": infos, "count": len(infos)})
}

// GetView returns a view with its rendered document
func (h *Handlers) GetView(c *gin.Context) {
	v, ok := h.view(c)
	if !ok {
		return
	}
	withDocument := c.DefaultQuery("document", "true") != "false"
	c.JSON(http.StatusOK, v.Info(c.Request.Context(), withDocument))
}

// SelectTool selects a tool by slug
func (h *Handlers) SelectTool(c *gin.Context) {
	v, ok := h.view(c)
	if !ok {
		return
	}
	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	err := v.Controller.SelectBySlug(c.Request.Context(), req.Slug)
	h.selectionResult(c, v, err)
}

// ClearSelection empties a view
func (h *Handlers) ClearSelection(c *gin.Context) {
	v, ok := h.view(c)
	if !ok {
		return
	}
	v.Controller.ClearSelection()
	c.JSON(http.StatusOK, v.Info(c.Request.Context(), false))
}

// Navigate replaces a view's address
func (h *Handlers) Navigate(c *gin.Context) {
	v, ok := h.view(c)
	if !ok {
		return
	}
	var req NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	err := v.Controller.Navigate(c.Request.Context(), req.URL)
	h.selectionResult(c, v, err)
}

// CloseView destroys a view
func (h *Handlers) CloseView(c *gin.Context) {
	viewID, ok := viewParam(c)
	if !ok {
		return
	}
	if err := h.views.Close(c.Request.Context(), viewID); err != nil {
		viewError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) selectionResult(c *gin.Context, v *view.View, err error) {
	info := v.Info(c.Request.Context(), true)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, info)
	case bundle.KindOf(err) != "":
		// The controller already counted the failure.
		c.JSON(resolveStatus(bundle.KindOf(err)), gin.H{"error": err.Error(), "view": info})
	default:
		status := http.StatusInternalServerError
		if errors.Is(err, selection.ErrInvalidNavigation) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error(), "view": info})
	}
}

func viewParam(c *gin.Context) (id.ViewID, bool) {
	raw := c.Param("id")
	if !id.IsViewID(raw) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid view id"})
		return "", false
	}
	return id.ViewID(raw), true
}

func (h *Handlers) view(c *gin.Context) (*view.View, bool) {
	viewID, ok := viewParam(c)
	if !ok {
		return nil, false
	}
	v, err := h.views.Get(c.Request.Context(), viewID)
	if err != nil {
		viewError(c, err)
		return nil, false
	}
	return v, true
}
