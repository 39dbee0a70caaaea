package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/BrandHub/backend/internal/assetapi"
	"github.com/GriffinCanCode/BrandHub/backend/internal/domain/view"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/bridge"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/bundle"
)

// Metrics is what the handlers report. *monitoring.Metrics satisfies it.
type Metrics interface {
	RecordResolveError(kind string)
	RecordRender(outcome string, duration time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) RecordResolveError(string)           {}
func (nopMetrics) RecordRender(string, time.Duration) {}

// Options wires the handlers.
type Options struct {
	Resolver bundle.Resolver
	Views    *view.Manager
	API      *assetapi.Client
	// PublicAPIURL is what browsers see as BrandHub.apiBaseUrl. Defaults
	// to the API client's base URL.
	PublicAPIURL string
	Metrics      Metrics
	Logger       *zap.Logger
}

// Handlers contains all HTTP handlers
type Handlers struct {
	resolver bundle.Resolver
	views    *view.Manager
	api      *assetapi.Client
	metrics  Metrics

	bridgeSource string
	csp          string

	logger *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(opts Options) (*Handlers, error) {
	if opts.Resolver == nil || opts.Views == nil || opts.API == nil {
		return nil, errors.New("handlers: resolver, views and api are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}

	public := opts.PublicAPIURL
	if public == "" {
		public = opts.API.BaseURL()
	}
	src, err := bridge.Source(public)
	if err != nil {
		return nil, fmt.Errorf("handlers: %w", err)
	}
	u, err := url.Parse(public)
	if err != nil {
		return nil, fmt.Errorf("handlers: %w", err)
	}

	return &Handlers{
		resolver:     opts.Resolver,
		views:        opts.Views,
		api:          opts.API,
		metrics:      metrics,
		bridgeSource: src,
		csp:          contentSecurityPolicy(u.Scheme + "://" + u.Host),
		logger:       logger.Named("http"),
	}, nil
}

// Root describes the service
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "online",
		"service":        "BrandHub Tool Sandbox",
		"bridge_version": bridge.Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	state := h.api.BreakerState()
	status := "healthy"
	if state == assetapi.StateOpen {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"views":  len(h.views.List()),
		"asset_api": gin.H{
			"url":     h.api.BaseURL(),
			"breaker": state.String(),
		},
	})
}

// ListTools lists active tool bundles
func (h *Handlers) ListTools(c *gin.Context) {
	tools, err := h.resolver.ListActive(c.Request.Context())
	if err != nil {
		h.resolveFailed(c, "", err)
		return
	}
	if tools == nil {
		tools = []bundle.Summary{}
	}
	c.JSON(http.StatusOK, gin.H{"tools": tools, "count": len(tools)})
}

// ListCapabilities describes the bridge guests receive
func (h *Handlers) ListCapabilities(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"global":       bridge.GlobalName,
		"version":      bridge.Version,
		"capabilities": bridge.Capabilities(),
	})
}
