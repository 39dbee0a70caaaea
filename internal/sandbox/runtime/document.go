package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Document is one isolated guest document.
type Document struct {
	cfg     Config
	logger  *zap.Logger
	origins map[string]struct{}

	tasks     chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// Owned by the loop goroutine.
	vm         *goja.Runtime
	root       *html.Node
	dom        *domBinding
	timers     map[int64]*guestTimer
	nextTimer  int64
	unhandled  map[*goja.Promise]struct{}
	readyState ReadyState

	// intMu guards interrupts, which come from timers and Close.
	intMu   sync.Mutex
	taskSeq uint64
	armed   uint64
	live    *goja.Runtime
	closing bool

	mu        sync.Mutex
	pending   int
	waiters   []chan struct{}
	console   []LogEntry
	guestErrs []GuestError
}

// Open parses source, runs its scripts in document order and fires
// DOMContentLoaded and load. It returns once the synchronous part of loading
// is finished; guest async work continues on the document's loop.
//
// Guest failures do not make Open fail. An error means the document could
// not be created at all.
func Open(ctx context.Context, source string, cfg Config) (*Document, error) {
	d := newDocument(cfg)
	go d.loop()

	if err := d.call(ctx, func() error { return d.load(source) }); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func newDocument(cfg Config) *Document {
	if cfg.MaxConsoleEntries <= 0 {
		cfg.MaxConsoleEntries = DefaultConfig().MaxConsoleEntries
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	origins := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if norm, err := normalizeOrigin(o); err == nil {
			origins[norm] = struct{}{}
		}
	}

	return &Document{
		cfg:        cfg,
		logger:     logger.Named("document"),
		origins:    origins,
		tasks:      make(chan func(), 64),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		timers:     make(map[int64]*guestTimer),
		unhandled:  make(map[*goja.Promise]struct{}),
		readyState: StateLoading,
	}
}

func (d *Document) loop() {
	defer close(d.done)
	for {
		select {
		case <-d.quit:
			d.teardown()
			return
		case fn := <-d.tasks:
			if d.Closed() {
				continue
			}
			fn()
		}
	}
}

func (d *Document) teardown() {
	for id, t := range d.timers {
		t.timer.Stop()
		delete(d.timers, id)
	}
	d.vm = nil
	d.root = nil
	d.dom = nil
	d.unhandled = nil

	d.intMu.Lock()
	d.live = nil
	d.intMu.Unlock()

	d.mu.Lock()
	for _, w := range d.waiters {
		close(w)
	}
	d.waiters = nil
	d.mu.Unlock()
}

// Close stops the loop. A running guest task is interrupted, pending timers
// never fire and fetches that complete later are dropped. Close is
// idempotent and waits for the loop to exit.
func (d *Document) Close() {
	d.closeOnce.Do(func() {
		d.intMu.Lock()
		d.closing = true
		if d.live != nil {
			d.live.Interrupt(ErrClosed)
		}
		d.intMu.Unlock()
		close(d.quit)
	})
	<-d.done
}

// Closed reports whether Close has been called.
func (d *Document) Closed() bool {
	select {
	case <-d.quit:
		return true
	default:
		return false
	}
}

// post queues fn on the loop. It reports false once the document is closed.
func (d *Document) post(fn func()) bool {
	select {
	case <-d.quit:
		return false
	default:
	}
	select {
	case d.tasks <- fn:
		return true
	case <-d.quit:
		return false
	}
}

// call runs fn on the loop and waits for it.
func (d *Document) call(ctx context.Context, fn func() error) error {
	res := make(chan error, 1)
	if !d.post(func() { res <- fn() }) {
		return ErrClosed
	}
	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return ErrClosed
	}
}

// begin and end bracket async work; both run on the loop.
func (d *Document) begin() {
	d.mu.Lock()
	d.pending++
	d.mu.Unlock()
}

func (d *Document) end() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending--
	if d.pending > 0 {
		return
	}
	d.pending = 0
	for _, w := range d.waiters {
		close(w)
	}
	d.waiters = nil
}

// Pending returns the number of outstanding fetches and timers.
func (d *Document) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// WaitIdle blocks until no fetch or timer is outstanding. A document with an
// active interval never becomes idle; bound the wait with ctx.
func (d *Document) WaitIdle(ctx context.Context) error {
	if d.Closed() {
		return ErrClosed
	}
	d.mu.Lock()
	if d.pending == 0 {
		d.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	d.waiters = append(d.waiters, ch)
	d.mu.Unlock()

	select {
	case <-ch:
		if d.Closed() {
			return ErrClosed
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// load builds the VM and DOM and runs the document. Runs on the loop.
func (d *Document) load(source string) error {
	root, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}

	vm := goja.New()
	vm.SetMaxCallStackSize(1024)
	vm.SetPromiseRejectionTracker(d.trackRejection)
	d.vm = vm

	d.intMu.Lock()
	d.live = vm
	closing := d.closing
	d.intMu.Unlock()
	if closing {
		return ErrClosed
	}
	d.root = root

	if err := d.installGlobals(); err != nil {
		return err
	}
	d.dom = newDOMBinding(d)
	if err := d.dom.install(); err != nil {
		return err
	}

	for i, script := range d.dom.scripts() {
		name := fmt.Sprintf("script#%d", i)
		if src, ok := attr(script, "src"); ok {
			d.recordGuestError(GuestError{
				Source:  name,
				Message: fmt.Sprintf("external script %q not loaded", src),
			})
			continue
		}
		code := nodeText(script)
		d.run(name, func() error {
			_, err := d.vm.RunScript(name, code)
			return err
		})
	}

	d.readyState = StateInteractive
	d.run("event:DOMContentLoaded", func() error {
		return d.dom.fire(docTarget, "DOMContentLoaded", true)
	})
	d.readyState = StateComplete
	d.run("event:load", func() error {
		return d.dom.fire(winTarget, "load", false)
	})
	return nil
}

// run executes one task under the script deadline and records any guest
// failure instead of returning it.
func (d *Document) run(source string, fn func() error) {
	disarm := d.arm()
	err := fn()
	timedOut := disarm()

	switch {
	case d.Closed():
		// Interrupted by Close; nobody is listening.
	case timedOut:
		d.recordGuestError(GuestError{Source: source, Message: ErrScriptTimeout.Error(), Timeout: true})
	case err != nil:
		d.recordGuestError(guestErrorFrom(source, err))
	}
	d.flushRejections()
}

// arm schedules an interrupt for the current task. The returned func
// cancels it and reports whether it fired.
func (d *Document) arm() func() bool {
	if d.cfg.ScriptTimeout <= 0 {
		return func() bool { return false }
	}

	vm := d.vm
	d.intMu.Lock()
	d.taskSeq++
	seq := d.taskSeq
	d.armed = seq
	d.intMu.Unlock()

	fired := false
	t := time.AfterFunc(d.cfg.ScriptTimeout, func() {
		d.intMu.Lock()
		defer d.intMu.Unlock()
		if d.armed == seq && !d.closing {
			fired = true
			vm.Interrupt(ErrScriptTimeout)
		}
	})

	return func() bool {
		t.Stop()
		d.intMu.Lock()
		defer d.intMu.Unlock()
		d.armed = 0
		if fired && !d.closing {
			vm.ClearInterrupt()
		}
		return fired
	}
}

func (d *Document) trackRejection(p *goja.Promise, op goja.PromiseRejectionOperation) {
	switch op {
	case goja.PromiseRejectionReject:
		d.unhandled[p] = struct{}{}
	case goja.PromiseRejectionHandle:
		delete(d.unhandled, p)
	}
}

func (d *Document) flushRejections() {
	for p := range d.unhandled {
		delete(d.unhandled, p)
		msg := "undefined"
		if r := p.Result(); r != nil {
			msg = describe(r)
		}
		d.recordGuestError(GuestError{Source: "promise", Message: "Uncaught (in promise) " + msg})
	}
}

func (d *Document) recordGuestError(ge GuestError) {
	if ge.Time.IsZero() {
		ge.Time = time.Now()
	}
	d.mu.Lock()
	d.guestErrs = append(d.guestErrs, ge)
	d.mu.Unlock()

	d.logger.Debug("guest error",
		zap.String("source", ge.Source),
		zap.String("message", ge.Message),
		zap.Bool("timeout", ge.Timeout))
	if d.cfg.OnGuestError != nil {
		d.cfg.OnGuestError(ge)
	}
}

func (d *Document) recordConsole(entry LogEntry) {
	d.mu.Lock()
	d.console = append(d.console, entry)
	if over := len(d.console) - d.cfg.MaxConsoleEntries; over > 0 {
		d.console = append(d.console[:0:0], d.console[over:]...)
	}
	d.mu.Unlock()

	if d.cfg.OnConsole != nil {
		d.cfg.OnConsole(entry)
	}
}

// Console returns a copy of retained console output.
func (d *Document) Console() []LogEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]LogEntry(nil), d.console...)
}

// GuestErrors returns a copy of recorded guest failures.
func (d *Document) GuestErrors() []GuestError {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]GuestError(nil), d.guestErrs...)
}

// Snapshot serializes the live DOM and copies logs.
func (d *Document) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	err := d.call(ctx, func() error {
		var buf bytes.Buffer
		if err := html.Render(&buf, d.root); err != nil {
			return fmt.Errorf("render document: %w", err)
		}
		snap.HTML = buf.String()
		snap.Title = d.dom.title()
		snap.ReadyState = d.readyState
		return nil
	})
	if err != nil {
		return nil, err
	}

	snap.Console = d.Console()
	snap.GuestErrors = d.GuestErrors()
	snap.Pending = d.Pending()
	return snap, nil
}

// Eval runs src in the document's global scope and exports the result.
// Unlike guest scripts, failures are returned to the caller.
func (d *Document) Eval(ctx context.Context, src string) (any, error) {
	var out any
	err := d.call(ctx, func() error {
		disarm := d.arm()
		v, err := d.vm.RunString(src)
		if disarm() {
			return ErrScriptTimeout
		}
		if err != nil {
			return err
		}
		d.flushRejections()
		if v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
			out = v.Export()
		}
		return nil
	})
	return out, err
}

func guestErrorFrom(source string, err error) GuestError {
	ge := GuestError{Source: source, Message: err.Error()}

	var exc *goja.Exception
	var intr *goja.InterruptedError
	switch {
	case errors.As(err, &exc):
		ge.Message = "Uncaught " + describe(exc.Value())
		ge.Stack = exc.String()
	case errors.As(err, &intr):
		ge.Message = fmt.Sprint(intr.Value())
		ge.Timeout = errors.Is(asError(intr.Value()), ErrScriptTimeout)
	}
	return ge
}

func asError(v interface{}) error {
	if err, ok := v.(error); ok {
		return err
	}
	return nil
}

// describe renders a thrown value the way a browser console would.
func describe(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if obj, ok := v.(*goja.Object); ok {
		name := obj.Get("name")
		msg := obj.Get("message")
		if msg != nil && !goja.IsUndefined(msg) {
			if name != nil && !goja.IsUndefined(name) {
				return name.String() + ": " + msg.String()
			}
			return msg.String()
		}
	}
	return v.String()
}
