package view

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/BrandHub/backend/internal/infrastructure/store"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/bundle"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/host"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/selection"
	"github.com/GriffinCanCode/BrandHub/backend/internal/shared/id"
)

// ErrNotFound is returned for unknown view ids.
var ErrNotFound = errors.New("view not found")

// Store persists view addresses. *store.Store satisfies it.
type Store interface {
	Save(ctx context.Context, id, navigation string) error
	List(ctx context.Context) ([]store.Record, error)
	Delete(ctx context.Context, id string) error
}

// Metrics is what the manager and its views report. *monitoring.Metrics
// satisfies it.
type Metrics interface {
	host.Recorder
	selection.Recorder
	SetViewsActive(count int)
}

// Options configures a Manager.
type Options struct {
	Resolver bundle.Resolver
	// Frame is attached to every view's host.
	Frame   host.Frame
	Store   Store
	Metrics Metrics
	Logger  *zap.Logger
}

// Manager orchestrates view lifecycle
type Manager struct {
	mu    sync.RWMutex
	views map[id.ViewID]*View

	opts   Options
	logger *zap.Logger
}

// NewManager creates a view manager. Store and Metrics are optional.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		views:  make(map[id.ViewID]*View),
		opts:   opts,
		logger: logger.Named("views"),
	}
}

// Restore recreates every persisted view without rendering it.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	if m.opts.Store == nil {
		return 0, nil
	}
	records, err := m.opts.Store.List(ctx)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, rec := range records {
		v, err := m.build(id.ViewID(rec.ID), rec.Navigation, rec.CreatedAt)
		if err != nil {
			m.logger.Warn("skipping stored view", zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		v.stale = true
		m.add(v)
		restored++
	}
	m.logger.Info("views restored", zap.Int("count", restored))
	return restored, nil
}

// Create opens a view at navigation. When navigation selects a tool it is
// rendered; a resolution failure is reported in the view's status, not as
// an error.
func (m *Manager) Create(ctx context.Context, navigation string) (*View, error) {
	v, err := m.build(id.NewViewID(), navigation, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	m.persist(ctx, v.ID, v.Controller.Navigation())
	m.add(v)

	if err := v.Controller.Refresh(ctx); err != nil && bundle.KindOf(err) == "" {
		m.logger.Warn("initial render failed", zap.Stringer("view", v.ID), zap.Error(err))
	}
	return v, nil
}

// Get returns a view, rendering a restored view on first access.
func (m *Manager) Get(ctx context.Context, viewID id.ViewID) (*View, error) {
	m.mu.RLock()
	v, ok := m.views[viewID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	if v.stale {
		v.restore.Do(func() {
			if err := v.Controller.Refresh(ctx); err != nil {
				m.logger.Debug("restored view did not render", zap.Stringer("view", v.ID), zap.Error(err))
			}
		})
	}
	return v, nil
}

// List returns all views, oldest first.
func (m *Manager) List() []*View {
	m.mu.RLock()
	out := make([]*View, 0, len(m.views))
	for _, v := range m.views {
		out = append(out, v)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Close destroys a view: its execution context is released, subscribers
// are closed and the persisted record is deleted.
func (m *Manager) Close(ctx context.Context, viewID id.ViewID) error {
	m.mu.Lock()
	v, ok := m.views[viewID]
	if ok {
		delete(m.views, viewID)
	}
	count := len(m.views)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	v.Host.Detach()
	v.closeSubscribers()
	m.setActive(count)

	if m.opts.Store != nil {
		if err := m.opts.Store.Delete(ctx, string(viewID)); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("delete view %s: %w", viewID, err)
		}
	}
	return nil
}

// Shutdown releases every execution context but keeps persisted views.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	views := m.views
	m.views = make(map[id.ViewID]*View)
	m.mu.Unlock()

	for _, v := range views {
		v.Host.Detach()
		v.closeSubscribers()
	}
	m.setActive(0)
}

func (m *Manager) build(viewID id.ViewID, navigation string, created time.Time) (*View, error) {
	nav, err := selection.NewNavigation(navigation)
	if err != nil {
		return nil, err
	}

	h := host.New(m.logger.With(zap.Stringer("view", viewID)))
	if m.opts.Metrics != nil {
		h.WithMetrics(m.opts.Metrics)
	}
	if err := h.Attach(m.opts.Frame); err != nil {
		return nil, err
	}

	v := &View{ID: viewID, Host: h, CreatedAt: created}
	h.Subscribe(v.publish)

	c := selection.New(m.opts.Resolver, h, nav, m.logger.With(zap.Stringer("view", viewID)))
	if m.opts.Metrics != nil {
		c.WithMetrics(m.opts.Metrics)
	}
	c.OnNavigate(func(navigation string) {
		m.persist(context.Background(), viewID, navigation)
	})
	v.Controller = c
	return v, nil
}

func (m *Manager) persist(ctx context.Context, viewID id.ViewID, navigation string) {
	if m.opts.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := m.opts.Store.Save(ctx, string(viewID), navigation); err != nil {
		m.logger.Error("failed to persist view", zap.Stringer("view", viewID), zap.Error(err))
	}
}

func (m *Manager) add(v *View) {
	m.mu.Lock()
	m.views[v.ID] = v
	count := len(m.views)
	m.mu.Unlock()
	m.setActive(count)
}

func (m *Manager) setActive(count int) {
	if m.opts.Metrics != nil {
		m.opts.Metrics.SetViewsActive(count)
	}
}
