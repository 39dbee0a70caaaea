package selection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/bundle"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/host"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/params"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loadCall struct {
	slug   string
	params params.Params
}

type fakeLoader struct {
	loads   []loadCall
	clears  int
	loadErr error
}

func (f *fakeLoader) Load(_ context.Context, b *bundle.ToolBundle, p params.Params) error {
	f.loads = append(f.loads, loadCall{b.Slug, p})
	return f.loadErr
}

func (f *fakeLoader) Clear() { f.clears++ }

type kinds []string

func (k *kinds) RecordResolveError(kind string) { *k = append(*k, kind) }

type brokenResolver struct{}

func (brokenResolver) ResolveBySlug(context.Context, string) (*bundle.ToolBundle, error) {
	return nil, errors.New("connection reset")
}

func (brokenResolver) ListActive(context.Context) ([]bundle.Summary, error) { return nil, nil }

func catalog(t *testing.T) *bundle.Static {
	t.Helper()
	s, err := bundle.NewStatic(
		bundle.ToolBundle{ID: "1", Slug: "overlay", Title: "Overlay", IsActive: true, Markup: "<div id='x'></div>"},
		bundle.ToolBundle{ID: "2", Slug: "banner", Title: "Banner", IsActive: true},
		bundle.ToolBundle{ID: "3", Slug: "retired", Title: "Retired", IsActive: false},
	)
	require.NoError(t, err)
	return s
}

func newController(t *testing.T, raw string, r bundle.Resolver) (*Controller, *fakeLoader) {
	t.Helper()
	nav, err := NewNavigation(raw)
	require.NoError(t, err)
	l := &fakeLoader{}
	return New(r, l, nav, nil), l
}

func TestNavigationSlugEditing(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		edit func(*Navigation)
		want string
	}{
		{"set on empty", "/tools", func(n *Navigation) { n.SetSlug("overlay") }, "/tools?tool=overlay"},
		{"keeps other params in order", "/tools?label=Sale&color=%23ff0000", func(n *Navigation) { n.SetSlug("banner") }, "/tools?label=Sale&color=%23ff0000&tool=banner"},
		{"replaces existing", "/tools?tool=a&x=1&tool=b", func(n *Navigation) { n.SetSlug("c") }, "/tools?x=1&tool=c"},
		{"escapes slug", "/tools", func(n *Navigation) { n.SetSlug("a b") }, "/tools?tool=a+b"},
		{"clear", "/tools?x=1&tool=a", func(n *Navigation) { n.ClearSlug() }, "/tools?x=1"},
		{"clear last", "/tools?tool=a", func(n *Navigation) { n.ClearSlug() }, "/tools"},
		{"drops fragment", "https://brand.test/tools?tool=a#top", func(*Navigation) {}, "https://brand.test/tools?tool=a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := NewNavigation(tt.raw)
			require.NoError(t, err)
			tt.edit(n)
			assert.Equal(t, tt.want, n.String())
		})
	}
}

func TestNavigationParams(t *testing.T) {
	n, err := NewNavigation("?tool=overlay&color=%23ff0000&label=Sale&label=Final")
	require.NoError(t, err)

	assert.Equal(t, "overlay", n.Slug())
	assert.Equal(t, params.Params{"tool": "overlay", "color": "#ff0000", "label": "Final"}, n.Params())
}

func TestSelectBySlugLoadsWithParams(t *testing.T) {
	var navs []string
	c, l := newController(t, "/tools?color=%23ff0000&label=Sale", catalog(t))
	c.OnNavigate(func(nav string) { navs = append(navs, nav) })

	require.NoError(t, c.SelectBySlug(context.Background(), "overlay"))

	require.Len(t, l.loads, 1)
	assert.Equal(t, "overlay", l.loads[0].slug)
	assert.Equal(t, params.Params{"color": "#ff0000", "label": "Sale", "tool": "overlay"}, l.loads[0].params)
	assert.Equal(t, Status{Slug: "overlay"}, c.Status())
	assert.Equal(t, []string{"/tools?color=%23ff0000&label=Sale&tool=overlay"}, navs)
}

func TestSelectUnresolvableSlug(t *testing.T) {
	tests := []struct {
		name     string
		slug     string
		resolver bundle.Resolver
		kind     bundle.ErrorKind
	}{
		{"unknown", "nonexistent-tool", nil, bundle.KindNotFound},
		{"inactive", "retired", nil, bundle.KindNotFound},
		{"invalid slug", "../etc", nil, bundle.KindNotFound},
		{"transport", "overlay", brokenResolver{}, bundle.KindTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.resolver
			if r == nil {
				r = catalog(t)
			}
			var rec kinds
			c, l := newController(t, "/tools", r)
			c.WithMetrics(&rec)

			err := c.SelectBySlug(context.Background(), tt.slug)
			require.Error(t, err)
			assert.Equal(t, tt.kind, bundle.KindOf(err))

			assert.Empty(t, l.loads)
			assert.Equal(t, 1, l.clears)
			st := c.Status()
			assert.True(t, st.NotFound)
			assert.Equal(t, tt.kind, st.ErrorKind)
			assert.Equal(t, []string{string(tt.kind)}, []string(rec))
		})
	}
}

func TestClearSelection(t *testing.T) {
	c, l := newController(t, "/tools?x=1", catalog(t))
	require.NoError(t, c.SelectBySlug(context.Background(), "overlay"))

	c.ClearSelection()

	assert.Equal(t, 1, l.clears)
	assert.Equal(t, "/tools?x=1", c.Navigation())
	assert.Equal(t, Status{}, c.Status())
}

func TestNavigateRerendersOnlyOnChange(t *testing.T) {
	c, l := newController(t, "/", catalog(t))
	ctx := context.Background()

	require.NoError(t, c.Navigate(ctx, "/tools?tool=overlay&label=A"))
	require.NoError(t, c.Navigate(ctx, "/tools?label=A&tool=overlay"))
	require.NoError(t, c.Navigate(ctx, "/tools?tool=overlay&label=B"))
	require.NoError(t, c.Navigate(ctx, "/tools?tool=banner&label=B"))
	require.NoError(t, c.Navigate(ctx, "/tools"))

	var slugs []string
	for _, call := range l.loads {
		slugs = append(slugs, call.slug+":"+call.params["label"])
	}
	assert.Equal(t, []string{"overlay:A", "overlay:B", "banner:B"}, slugs)
	assert.Equal(t, 1, l.clears)
}

func TestNavigateAfterFailureRetries(t *testing.T) {
	c, l := newController(t, "/", catalog(t))
	l.loadErr = errors.New("boom")
	ctx := context.Background()

	assert.Error(t, c.Navigate(ctx, "/?tool=overlay"))
	l.loadErr = nil
	require.NoError(t, c.Navigate(ctx, "/?tool=overlay"))
	assert.Len(t, l.loads, 2)
}

func TestRefresh(t *testing.T) {
	c, l := newController(t, "/?tool=banner", catalog(t))

	require.NoError(t, c.Refresh(context.Background()))
	require.Len(t, l.loads, 1)
	assert.Equal(t, "banner", l.loads[0].slug)
}

func TestUnresolvedSlugLeavesHostEmpty(t *testing.T) {
	h := host.New(nil)
	rt := runtime.DefaultConfig()
	rt.ScriptTimeout = time.Second
	require.NoError(t, h.Attach(host.Frame{APIBaseURL: "https://api.example.com", Runtime: rt}))
	t.Cleanup(h.Detach)

	nav, err := NewNavigation("/tools")
	require.NoError(t, err)
	c := New(catalog(t), h, nav, nil)
	ctx := context.Background()

	require.NoError(t, c.SelectBySlug(ctx, "overlay"))
	require.Equal(t, host.StateLoaded, h.State())

	err = c.SelectBySlug(ctx, "nonexistent-tool")
	assert.ErrorIs(t, err, bundle.ErrNotFound)
	assert.Equal(t, host.StateEmpty, h.State())
	assert.True(t, c.Status().NotFound)
	assert.Equal(t, "/tools?tool=nonexistent-tool", c.Navigation())

	_, err = h.Snapshot(ctx)
	assert.ErrorIs(t, err, host.ErrNoDocument, "no stale document remains")
}
