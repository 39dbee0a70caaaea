package selection

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/bundle"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/params"
	"go.uber.org/zap"
)

// Loader is the part of the host the controller drives.
type Loader interface {
	Load(ctx context.Context, b *bundle.ToolBundle, p params.Params) error
	Clear()
}

// Recorder receives resolution failures. *monitoring.Metrics satisfies it.
type Recorder interface {
	RecordResolveError(kind string)
}

// Status is what a view reports about its selection.
type Status struct {
	Slug      string           `json:"slug,omitempty"`
	NotFound  bool             `json:"not_found"`
	ErrorKind bundle.ErrorKind `json:"error_kind,omitempty"`
	Error     string           `json:"error,omitempty"`
}

type rendered struct {
	slug   string
	params params.Params
}

// Controller reconciles a Navigation with a host.
type Controller struct {
	mu       sync.Mutex
	resolver bundle.Resolver
	host     Loader
	nav      *Navigation
	status   Status
	current  *rendered
	onChange func(nav string)
	metrics  Recorder
	logger   *zap.Logger
}

// New creates a controller. Nothing renders until a selection call.
func New(resolver bundle.Resolver, host Loader, nav *Navigation, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		resolver: resolver,
		host:     host,
		nav:      nav,
		logger:   logger.Named("selection"),
	}
}

// WithMetrics adds resolution error counting.
func (c *Controller) WithMetrics(m Recorder) *Controller {
	c.metrics = m
	return c
}

// OnNavigate registers fn to be called with the new address after every
// navigation change.
func (c *Controller) OnNavigate(fn func(nav string)) *Controller {
	c.onChange = fn
	return c
}

// SelectBySlug makes slug the active tool and renders it. Resolution
// failures leave the host Empty, set Status.NotFound and return the
// *bundle.ResolveError.
func (c *Controller) SelectBySlug(ctx context.Context, slug string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nav.SetSlug(slug)
	c.navigated()
	return c.renderLocked(ctx)
}

// ClearSelection removes the tool from navigation and empties the host.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nav.ClearSlug()
	c.navigated()
	c.host.Clear()
	c.current = nil
	c.status = Status{}
}

// Navigate replaces the address and re-renders when the tool or its
// parameters changed.
func (c *Controller) Navigate(ctx context.Context, raw string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.nav.Replace(raw); err != nil {
		return err
	}
	c.navigated()

	slug := c.nav.Slug()
	if slug == "" {
		c.host.Clear()
		c.current = nil
		c.status = Status{}
		return nil
	}
	if c.current != nil && c.current.slug == slug && c.current.params.Equal(c.nav.Params()) {
		return nil
	}
	return c.renderLocked(ctx)
}

// Refresh renders whatever navigation currently selects. Used to restore a
// view lazily.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.nav.Slug() == "" {
		c.host.Clear()
		c.current = nil
		c.status = Status{}
		return nil
	}
	return c.renderLocked(ctx)
}

// Status returns the last selection outcome.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Navigation returns the current address.
func (c *Controller) Navigation() string {
	return c.nav.String()
}

func (c *Controller) renderLocked(ctx context.Context) error {
	slug := c.nav.Slug()
	p := c.nav.Params()
	c.current = nil

	var b *bundle.ToolBundle
	var err error
	if bundle.ValidSlug(slug) {
		b, err = c.resolver.ResolveBySlug(ctx, slug)
	} else {
		err = &bundle.ResolveError{Slug: slug, Kind: bundle.KindNotFound, Err: errors.New("invalid slug")}
	}
	if err != nil {
		c.host.Clear()
		kind := bundle.KindOf(err)
		if kind == "" {
			kind = bundle.KindTransport
			err = &bundle.ResolveError{Slug: slug, Kind: kind, Err: err}
		}
		c.status = Status{Slug: slug, NotFound: true, ErrorKind: kind, Error: err.Error()}
		if c.metrics != nil {
			c.metrics.RecordResolveError(string(kind))
		}
		c.logger.Info("tool not resolved", zap.String("slug", slug), zap.String("kind", string(kind)))
		return err
	}

	if err := c.host.Load(ctx, b, p); err != nil {
		c.status = Status{Slug: slug, Error: err.Error()}
		return fmt.Errorf("load %s: %w", slug, err)
	}
	c.status = Status{Slug: slug}
	c.current = &rendered{slug: slug, params: p}
	return nil
}

func (c *Controller) navigated() {
	if c.onChange != nil {
		c.onChange(c.nav.String())
	}
}
