package host

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/BrandHub/backend/internal/assetapi"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/bundle"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/params"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	renders []string
	guest   int
	fetches []string
}

func (r *recorder) RecordRender(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renders = append(r.renders, outcome)
}

func (r *recorder) RecordGuestError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guest++
}

func (r *recorder) RecordBridgeFetch(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches = append(r.fetches, outcome)
}

type events struct {
	mu  sync.Mutex
	all []Event
}

func (e *events) observe(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, ev)
}

func (e *events) ofType(t EventType) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []Event
	for _, ev := range e.all {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type failingFetcher struct{}

func (failingFetcher) Do(context.Context, string, string, http.Header) (*assetapi.Response, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func newHost(t *testing.T, f Frame) *Host {
	t.Helper()
	if f.APIBaseURL == "" {
		f.APIBaseURL = "https://api.example.com"
	}
	if f.Runtime.ScriptTimeout == 0 {
		f.Runtime = runtime.DefaultConfig()
		f.Runtime.ScriptTimeout = time.Second
	}
	h := New(nil)
	require.NoError(t, h.Attach(f))
	t.Cleanup(h.Detach)
	return h
}

func eval(t *testing.T, h *Host, src string) any {
	t.Helper()
	v, err := h.Eval(context.Background(), src)
	require.NoError(t, err)
	return v
}

func TestLoadWithoutAttachment(t *testing.T) {
	h := New(nil)

	err := h.Load(context.Background(), &bundle.ToolBundle{Slug: "a"}, nil)
	assert.ErrorIs(t, err, ErrNotAttached)
	assert.Equal(t, StateEmpty, h.State())

	_, err = h.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrNoDocument)
}

func TestAttachRejectsBadAPIURL(t *testing.T) {
	h := New(nil)
	for _, raw := range []string{"", "ftp://x.test", "/relative", "https://user:pw@x.test"} {
		assert.Error(t, h.Attach(Frame{APIBaseURL: raw}), raw)
	}
	assert.False(t, h.Attached())
}

func TestLoadRendersBridgeBaseURL(t *testing.T) {
	h := newHost(t, Frame{APIBaseURL: "https://api.example.com"})

	b := &bundle.ToolBundle{
		ID:     "1",
		Slug:   "overlay",
		Markup: "<div id='x'></div>",
		Script: "document.getElementById('x').textContent = window.BrandHub.apiBaseUrl",
	}
	require.NoError(t, h.Load(context.Background(), b, nil))

	assert.Equal(t, StateLoaded, h.State())
	assert.Equal(t, "https://api.example.com", eval(t, h, `document.getElementById("x").textContent`))

	ec := h.Context()
	assert.Equal(t, bundle.ID("1"), ec.BundleID)
	assert.Equal(t, "overlay", ec.Slug)
	assert.NotNil(t, ec.Document)
}

func TestParametersAvailableBeforeGuestScript(t *testing.T) {
	h := newHost(t, Frame{})

	b := &bundle.ToolBundle{
		Slug:   "banner",
		Markup: `<div id="out"></div>`,
		Script: `var p = window.BrandHubParams; document.getElementById("out").textContent = p.color + "|" + p.label;`,
	}
	require.NoError(t, h.Load(context.Background(), b, params.Extract("color=%23ff0000&label=Sale")))

	assert.Equal(t, "#ff0000|Sale", eval(t, h, `document.getElementById("out").textContent`))
	assert.Equal(t, map[string]any{"color": "#ff0000", "label": "Sale"}, eval(t, h, `Object.assign({}, BrandHubParams)`))
}

func TestGuestMutationDoesNotReachHost(t *testing.T) {
	h := newHost(t, Frame{})
	p := params.Params{"label": "Sale"}

	b := &bundle.ToolBundle{Slug: "m", Script: `BrandHubParams.label = "changed"; BrandHubParams.extra = "x";`}
	require.NoError(t, h.Load(context.Background(), b, p))

	assert.Equal(t, params.Params{"label": "Sale"}, p)
}

func TestReplacementLeavesNoResidue(t *testing.T) {
	h := newHost(t, Frame{})
	ctx := context.Background()

	a := &bundle.ToolBundle{
		Slug:   "a",
		Markup: `<div id="a-only">A</div>`,
		Style:  `.a{color:red}`,
		Script: `window.fromA = 1; document.body.setAttribute("data-a", "yes");`,
	}
	b := &bundle.ToolBundle{
		Slug:   "b",
		Markup: `<div id="b-only">B</div>`,
	}

	require.NoError(t, h.Load(ctx, a, nil))
	first := h.Context()
	require.NoError(t, h.Load(ctx, b, nil))
	second := h.Context()

	assert.True(t, first.Document.Closed(), "previous document is discarded")
	assert.Greater(t, second.Generation, first.Generation)

	snap, err := h.Snapshot(ctx)
	require.NoError(t, err)
	assert.Contains(t, snap.HTML, `<div id="b-only">B</div>`)
	assert.NotContains(t, snap.HTML, "a-only")
	assert.NotContains(t, snap.HTML, ".a{color:red}")
	assert.NotContains(t, snap.HTML, "data-a")
	assert.Equal(t, "undefined", eval(t, h, "typeof window.fromA"))
}

func TestGuestFailuresDoNotFailLoad(t *testing.T) {
	rec := &recorder{}
	h := New(nil).WithMetrics(rec)
	require.NoError(t, h.Attach(Frame{APIBaseURL: "https://api.example.com", Runtime: runtime.DefaultConfig()}))
	t.Cleanup(h.Detach)

	var ev events
	h.Subscribe(ev.observe)

	b := &bundle.ToolBundle{
		Slug:   "broken",
		Markup: `<div id="ok"></div>`,
		Script: `document.getElementById("ok").textContent = "ran"; null.boom();`,
	}
	require.NoError(t, h.Load(context.Background(), b, nil))

	assert.Equal(t, StateLoaded, h.State())
	assert.Equal(t, "ran", eval(t, h, `document.getElementById("ok").textContent`))

	errs := ev.ofType(EventGuestError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].GuestError.Message, "TypeError")
	assert.Equal(t, "broken", errs[0].Slug)
	assert.Equal(t, 1, rec.guest)
	assert.Equal(t, []string{OutcomeLoaded}, rec.renders)
}

func TestStateEvents(t *testing.T) {
	h := newHost(t, Frame{})
	var ev events
	unsubscribe := h.Subscribe(ev.observe)

	require.NoError(t, h.Load(context.Background(), &bundle.ToolBundle{Slug: "a"}, nil))
	h.Clear()
	unsubscribe()
	require.NoError(t, h.Load(context.Background(), &bundle.ToolBundle{Slug: "b"}, nil))

	var states []State
	for _, e := range ev.ofType(EventState) {
		states = append(states, e.State)
	}
	assert.Equal(t, []State{StateLoading, StateLoaded, StateEmpty}, states)
}

func TestStaleEventsAreDropped(t *testing.T) {
	h := newHost(t, Frame{})
	var ev events
	h.Subscribe(ev.observe)
	ctx := context.Background()

	require.NoError(t, h.Load(ctx, &bundle.ToolBundle{Slug: "a", Script: `console.log("from a"); setTimeout(function () { console.log("late a"); }, 30);`}, nil))
	require.NoError(t, h.Load(ctx, &bundle.ToolBundle{Slug: "b", Script: `console.log("from b");`}, nil))
	time.Sleep(60 * time.Millisecond)

	var msgs []string
	for _, e := range ev.ofType(EventConsole) {
		msgs = append(msgs, e.Slug+":"+e.Console.Message)
	}
	assert.Equal(t, []string{"a:from a", "b:from b"}, msgs)
}

func TestClearKeepsAttachment(t *testing.T) {
	h := newHost(t, Frame{})
	ctx := context.Background()

	require.NoError(t, h.Load(ctx, &bundle.ToolBundle{Slug: "a"}, nil))
	doc := h.Context().Document
	h.Clear()

	assert.Equal(t, StateEmpty, h.State())
	assert.True(t, doc.Closed())
	assert.True(t, h.Attached())
	assert.Nil(t, h.Context().Document)
	require.NoError(t, h.Load(ctx, &bundle.ToolBundle{Slug: "b"}, nil))
	assert.Equal(t, StateLoaded, h.State())
}

func TestDetachReleasesContext(t *testing.T) {
	h := newHost(t, Frame{})
	ctx := context.Background()

	require.NoError(t, h.Load(ctx, &bundle.ToolBundle{Slug: "a"}, nil))
	doc := h.Context().Document
	h.Detach()

	assert.Equal(t, StateEmpty, h.State())
	assert.False(t, h.Attached())
	assert.True(t, doc.Closed())
	assert.ErrorIs(t, h.Load(ctx, &bundle.ToolBundle{Slug: "a"}, nil), ErrNotAttached)
}

func TestBridgeFailuresYieldDefaults(t *testing.T) {
	rt := runtime.DefaultConfig()
	rt.Fetcher = failingFetcher{}
	rec := &recorder{}
	h := New(nil).WithMetrics(rec)
	require.NoError(t, h.Attach(Frame{APIBaseURL: "https://api.example.com", Runtime: rt}))
	t.Cleanup(h.Detach)

	b := &bundle.ToolBundle{Slug: "bridge", Script: `
		window.results = {};
		["getBrandAssets", "getBrandImagery", "getBrandColors", "getForTools"].forEach(function (name) {
			BrandHub[name]().then(function (v) { results[name] = JSON.stringify(v); });
		});
	`}
	require.NoError(t, h.Load(context.Background(), b, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.WaitIdle(ctx))

	assert.Equal(t, map[string]any{
		"getBrandAssets":  "{}",
		"getBrandImagery": "[]",
		"getBrandColors":  "[]",
		"getForTools":     "{}",
	}, eval(t, h, "results"))

	snap, err := h.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.GuestErrors, "failures are caught inside the bridge")
	assert.Len(t, snap.Console, 4)
	assert.Len(t, rec.fetches, 4)
}

func TestBridgeAgainstAssetAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/colors":
			_, _ = w.Write([]byte(`{"colors":[{"name":"Brand Red","hex":"#ff0000"}]}`))
		case "/api/assets":
			_, _ = w.Write([]byte(`[{"id":1,"section":"imagery"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client, err := assetapi.New(assetapi.Options{BaseURL: srv.URL + "/api", Retries: 0})
	require.NoError(t, err)

	rt := runtime.DefaultConfig()
	rt.Fetcher = client
	h := newHost(t, Frame{APIBaseURL: srv.URL + "/api", Runtime: rt})

	b := &bundle.ToolBundle{Slug: "palette", Markup: `<ul id="swatches"></ul>`, Script: `
		BrandHub.getBrandColors().then(function (colors) {
			colors.forEach(function (c) {
				var li = document.createElement("li");
				li.textContent = c.name + " " + c.hex;
				document.getElementById("swatches").appendChild(li);
			});
		});
		BrandHub.getBrandImagery().then(function (imgs) { window.imagery = imgs.length; });
		BrandHub.getForTools().then(function (v) { window.forTools = JSON.stringify(v); });
	`}
	require.NoError(t, h.Load(context.Background(), b, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.WaitIdle(ctx))

	assert.Equal(t, "Brand Red #ff0000", eval(t, h, `document.querySelector("#swatches li").textContent`))
	assert.Equal(t, int64(1), eval(t, h, "window.imagery"))
	assert.Equal(t, "{}", eval(t, h, "window.forTools"), "404 falls back to the empty default")
}

func TestStateMarshalText(t *testing.T) {
	for s, want := range map[State]string{StateEmpty: "empty", StateLoading: "loading", StateLoaded: "loaded", State(9): "unknown"} {
		b, err := s.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, want, string(b))
	}
}

func TestReplacingSpinningGuestDoesNotBlock(t *testing.T) {
	rt := runtime.DefaultConfig()
	rt.ScriptTimeout = 0
	h := New(nil)
	require.NoError(t, h.Attach(Frame{APIBaseURL: "https://api.example.com", Runtime: rt}))
	t.Cleanup(h.Detach)

	spin := &bundle.ToolBundle{Slug: "spin", Script: "setTimeout(function () { for (;;) {} }, 0);"}
	calm := &bundle.ToolBundle{Slug: "calm", Markup: `<p id="ok">ok</p>`}

	tests := []struct {
		name string
		op   func() error
		want State
	}{
		{"load", func() error { return h.Load(context.Background(), calm, nil) }, StateLoaded},
		{"clear", func() error { h.Clear(); return nil }, StateEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, h.Load(context.Background(), spin, nil))
			time.Sleep(50 * time.Millisecond)

			done := make(chan error, 1)
			go func() { done <- tt.op() }()

			select {
			case err := <-done:
				require.NoError(t, err)
			case <-time.After(2 * time.Second):
				t.Fatal("host blocked behind a running guest task")
			}
			assert.Equal(t, tt.want, h.State())
		})
	}

	require.NoError(t, h.Load(context.Background(), spin, nil))
	time.Sleep(50 * time.Millisecond)
	detached := make(chan struct{})
	go func() {
		h.Detach()
		close(detached)
	}()
	select {
	case <-detached:
	case <-time.After(2 * time.Second):
		t.Fatal("Detach blocked behind a running guest task")
	}
	assert.False(t, h.Attached())
}
