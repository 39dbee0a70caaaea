package host

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/BrandHub/backend/internal/assetapi"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/bridge"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/bundle"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/compositor"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/params"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/runtime"
	"github.com/GriffinCanCode/BrandHub/backend/internal/shared/id"
	"go.uber.org/zap"
)

// Render outcomes reported to the Recorder.
const (
	OutcomeLoaded = "loaded"
	OutcomeFailed = "failed"
)

// Host is the sole writer of one execution context.
type Host struct {
	mu     sync.Mutex
	frame  *Frame
	bridge string // rendered for frame.APIBaseURL
	state  State
	ec     ExecutionContext

	generation atomic.Uint64

	obsMu     sync.RWMutex
	observers map[uint64]Observer
	nextObs   uint64

	metrics Recorder
	logger  *zap.Logger
}

// New creates a detached host.
func New(logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{
		observers: make(map[uint64]Observer),
		metrics:   nopRecorder{},
		logger:    logger.Named("host"),
	}
}

// WithMetrics adds metrics tracking to the host
func (h *Host) WithMetrics(m Recorder) *Host {
	if m != nil {
		h.metrics = m
	}
	return h
}

// Attach binds the host to f. Any loaded document is closed and the host
// becomes Empty.
func (h *Host) Attach(f Frame) error {
	src, err := bridge.Source(f.APIBaseURL)
	if err != nil {
		return fmt.Errorf("attach: %w", err)
	}
	origin, err := url.Parse(f.APIBaseURL)
	if err != nil {
		return fmt.Errorf("attach: %w", err)
	}

	cfg := f.Runtime
	cfg.AllowedOrigins = append([]string{origin.Scheme + "://" + origin.Host}, cfg.AllowedOrigins...)
	if cfg.Fetcher != nil {
		cfg.Fetcher = &countingFetcher{next: cfg.Fetcher, metrics: h.metrics}
	}
	f.Runtime = cfg

	h.mu.Lock()
	h.frame = &f
	h.bridge = src
	old := h.resetLocked()
	h.mu.Unlock()

	closeDocument(old)
	h.logger.Debug("attached", zap.String("api", f.APIBaseURL))
	return nil
}

// Detach closes any document and releases the frame.
func (h *Host) Detach() {
	h.mu.Lock()
	old := h.resetLocked()
	h.frame = nil
	h.bridge = ""
	h.mu.Unlock()

	closeDocument(old)
}

// Attached reports whether a frame is attached.
func (h *Host) Attached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frame != nil
}

// Clear closes any document and returns to Empty, keeping the frame.
func (h *Host) Clear() {
	h.mu.Lock()
	old := h.resetLocked()
	h.mu.Unlock()

	closeDocument(old)
}

// Load replaces the current document with one built from b and p.
//
// Guest failures never fail Load; they are reported as guest_error events.
// An error means the document could not be composed or opened, and leaves
// the host Empty.
func (h *Host) Load(ctx context.Context, b *bundle.ToolBundle, p params.Params) error {
	old, err := h.load(ctx, b, p)
	closeDocument(old)
	return err
}

// load does the work of Load under the lock and hands back the replaced
// document, which the caller closes after unlocking.
func (h *Host) load(ctx context.Context, b *bundle.ToolBundle, p params.Params) (*runtime.Document, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.frame == nil {
		return nil, ErrNotAttached
	}
	start := time.Now()

	lit, err := params.Serialize(p)
	if err != nil {
		h.metrics.RecordRender(OutcomeFailed, time.Since(start))
		return nil, fmt.Errorf("serialize params for %s: %w", b.Slug, err)
	}
	source := compositor.Compose(*b, h.bridge, lit)

	old := h.takeDocumentLocked()
	gen := h.generation.Add(1)
	h.ec = ExecutionContext{RenderID: id.NewRenderID(), BundleID: b.ID, Slug: b.Slug, Generation: gen}
	h.setStateLocked(StateLoading)

	cfg := h.frame.Runtime
	cfg.Logger = h.logger.With(zap.String("slug", b.Slug), zap.Uint64("generation", gen))
	cfg.OnConsole = h.consoleHook(gen, b.Slug, cfg.OnConsole)
	cfg.OnGuestError = h.guestErrorHook(gen, b.Slug, cfg.OnGuestError)

	doc, err := runtime.Open(ctx, source, cfg)
	if err != nil {
		h.ec = ExecutionContext{Generation: gen}
		h.setStateLocked(StateEmpty)
		h.metrics.RecordRender(OutcomeFailed, time.Since(start))
		return old, fmt.Errorf("open document for %s: %w", b.Slug, err)
	}

	h.ec.Document = doc
	h.ec.LoadedAt = time.Now()
	h.setStateLocked(StateLoaded)
	h.metrics.RecordRender(OutcomeLoaded, time.Since(start))
	h.logger.Debug("loaded",
		zap.String("slug", b.Slug),
		zap.Stringer("render", h.ec.RenderID),
		zap.Uint64("generation", gen),
		zap.Duration("duration", time.Since(start)))
	return old, nil
}

// State returns the lifecycle state.
func (h *Host) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Context returns a copy of the current execution context.
func (h *Host) Context() ExecutionContext {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ec
}

// Snapshot captures the loaded document.
func (h *Host) Snapshot(ctx context.Context) (*runtime.Snapshot, error) {
	doc, err := h.document()
	if err != nil {
		return nil, err
	}
	return doc.Snapshot(ctx)
}

// Eval runs src in the loaded document.
func (h *Host) Eval(ctx context.Context, src string) (any, error) {
	doc, err := h.document()
	if err != nil {
		return nil, err
	}
	return doc.Eval(ctx, src)
}

// WaitIdle waits for the loaded document's pending fetches and timers.
func (h *Host) WaitIdle(ctx context.Context) error {
	doc, err := h.document()
	if err != nil {
		return err
	}
	return doc.WaitIdle(ctx)
}

// Subscribe registers o and returns a func that removes it.
func (h *Host) Subscribe(o Observer) (unsubscribe func()) {
	h.obsMu.Lock()
	id := h.nextObs
	h.nextObs++
	h.observers[id] = o
	h.obsMu.Unlock()

	return func() {
		h.obsMu.Lock()
		delete(h.observers, id)
		h.obsMu.Unlock()
	}
}

func (h *Host) document() (*runtime.Document, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateLoaded || h.ec.Document == nil {
		return nil, ErrNoDocument
	}
	return h.ec.Document, nil
}

// resetLocked moves to Empty and returns the detached document for the
// caller to close once h.mu is released. The generation moves on so late
// events from the old document are dropped.
func (h *Host) resetLocked() *runtime.Document {
	old := h.takeDocumentLocked()
	gen := h.generation.Add(1)
	h.ec = ExecutionContext{Generation: gen}
	if h.state != StateEmpty {
		h.setStateLocked(StateEmpty)
	}
	return old
}

func (h *Host) takeDocumentLocked() *runtime.Document {
	doc := h.ec.Document
	h.ec.Document = nil
	return doc
}

// closeDocument must not be called with h.mu held: Close waits for the
// document loop, and a guest task may be running on it.
func closeDocument(doc *runtime.Document) {
	if doc != nil {
		doc.Close()
	}
}

func (h *Host) setStateLocked(s State) {
	h.state = s
	h.emit(Event{Type: EventState, Generation: h.ec.Generation, State: s, Slug: h.ec.Slug})
}

func (h *Host) current(gen uint64) bool {
	return h.generation.Load() == gen
}

func (h *Host) consoleHook(gen uint64, slug string, next func(runtime.LogEntry)) func(runtime.LogEntry) {
	return func(e runtime.LogEntry) {
		if next != nil {
			next(e)
		}
		if !h.current(gen) {
			return
		}
		h.emit(Event{Type: EventConsole, Generation: gen, State: StateLoaded, Slug: slug, Console: &e})
	}
}

func (h *Host) guestErrorHook(gen uint64, slug string, next func(runtime.GuestError)) func(runtime.GuestError) {
	return func(ge runtime.GuestError) {
		if next != nil {
			next(ge)
		}
		if !h.current(gen) {
			return
		}
		h.metrics.RecordGuestError()
		h.logger.Warn("guest error",
			zap.String("slug", slug),
			zap.String("source", ge.Source),
			zap.String("message", ge.Message))
		h.emit(Event{Type: EventGuestError, Generation: gen, State: StateLoaded, Slug: slug, GuestError: &ge})
	}
}

func (h *Host) emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	h.obsMu.RLock()
	defer h.obsMu.RUnlock()
	for _, o := range h.observers {
		o(ev)
	}
}

// countingFetcher reports guest fetch outcomes.
type countingFetcher struct {
	next    runtime.Fetcher
	metrics Recorder
}

func (f *countingFetcher) Do(ctx context.Context, method, rawURL string, header http.Header) (*assetapi.Response, error) {
	resp, err := f.next.Do(ctx, method, rawURL, header)
	switch {
	case err != nil:
		f.metrics.RecordBridgeFetch("error")
	case resp.Status >= 200 && resp.Status <= 299:
		f.metrics.RecordBridgeFetch("ok")
	default:
		f.metrics.RecordBridgeFetch("status")
	}
	return resp, err
}
