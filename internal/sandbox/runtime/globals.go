package runtime

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// eventPrelude defines the Event constructors in plain script so guests can
// subclass and inspect them like browser events.
const eventPrelude = `(function (g) {
  function Event(type, init) {
    if (!(this instanceof Event)) {
      throw new TypeError("Failed to construct 'Event': Please use the 'new' operator");
    }
    if (arguments.length === 0) {
      throw new TypeError("Failed to construct 'Event': 1 argument required");
    }
    init = init || {};
    this.type = String(type);
    this.bubbles = !!init.bubbles;
    this.cancelable = !!init.cancelable;
    this.defaultPrevented = false;
    this.cancelBubble = false;
    this.target = null;
    this.currentTarget = null;
    this.timeStamp = Date.now();
  }
  Event.prototype.preventDefault = function () {
    if (this.cancelable) this.defaultPrevented = true;
  };
  Event.prototype.stopPropagation = function () {
    this.cancelBubble = true;
  };
  Event.prototype.stopImmediatePropagation = function () {
    this.cancelBubble = true;
    Object.defineProperty(this, "__stopImmediate", { value: true, configurable: true });
  };

  function CustomEvent(type, init) {
    Event.call(this, type, init);
    this.detail = init && init.detail !== undefined ? init.detail : null;
  }
  CustomEvent.prototype = Object.create(Event.prototype);
  CustomEvent.prototype.constructor = CustomEvent;

  g.Event = Event;
  g.CustomEvent = CustomEvent;

  g.queueMicrotask = function queueMicrotask(callback) {
    if (typeof callback !== "function") {
      throw new TypeError("queueMicrotask: argument must be a function");
    }
    Promise.resolve().then(function () { callback(); });
  };
})(this);
`

// minInterval keeps a zero-delay interval from monopolizing the loop.
const minInterval = 4 * time.Millisecond

type guestTimer struct {
	id        int64
	fn        goja.Callable
	args      []goja.Value
	delay     time.Duration
	repeat    bool
	timer     *time.Timer
	cancelled bool
}

func (d *Document) installGlobals() error {
	vm := d.vm
	global := vm.GlobalObject()

	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}
	if err := global.Set("window", global); err != nil {
		return err
	}
	if err := global.Set("self", global); err != nil {
		return err
	}

	location := vm.NewObject()
	for k, v := range map[string]string{
		"href": "about:srcdoc", "origin": "null", "protocol": "about:",
		"host": "", "hostname": "", "pathname": "srcdoc", "search": "", "hash": "",
	} {
		_ = location.Set(k, v)
	}
	if err := global.Set("location", location); err != nil {
		return err
	}

	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		if err := console.Set(level, d.consoleFunc(level)); err != nil {
			return err
		}
	}
	if err := global.Set("console", console); err != nil {
		return err
	}

	natives := map[string]func(goja.FunctionCall) goja.Value{
		"setTimeout":    func(call goja.FunctionCall) goja.Value { return d.setTimer(call, false) },
		"setInterval":   func(call goja.FunctionCall) goja.Value { return d.setTimer(call, true) },
		"clearTimeout":  d.clearTimer,
		"clearInterval": d.clearTimer,
		"fetch":         d.fetch,
	}
	for name, fn := range natives {
		if err := global.Set(name, fn); err != nil {
			return err
		}
	}

	if _, err := vm.RunScript("prelude", eventPrelude); err != nil {
		return fmt.Errorf("install event prelude: %w", err)
	}
	return nil
}

func (d *Document) consoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = consoleString(arg)
		}
		d.recordConsole(LogEntry{
			Level:   level,
			Message: strings.Join(parts, " "),
			Time:    time.Now(),
		})
		return goja.Undefined()
	}
}

// consoleString prints plain objects and arrays as JSON, everything else as
// its string conversion.
func consoleString(v goja.Value) string {
	obj, ok := v.(*goja.Object)
	if !ok {
		return v.String()
	}
	if _, isFn := goja.AssertFunction(obj); isFn {
		return v.String()
	}
	if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
		return describe(obj)
	}
	b, err := obj.MarshalJSON()
	if err != nil {
		return v.String()
	}
	return string(b)
}

func (d *Document) setTimer(call goja.FunctionCall, repeat bool) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		// String handlers would be an eval; browsers under CSP refuse them too.
		panic(d.vm.NewTypeError("timer handler must be a function"))
	}

	ms := call.Argument(1).ToFloat()
	if math.IsNaN(ms) || ms < 0 || ms > math.MaxInt32 {
		ms = 0
	}
	delay := time.Duration(ms * float64(time.Millisecond))
	if repeat && delay < minInterval {
		delay = minInterval
	}

	var args []goja.Value
	if len(call.Arguments) > 2 {
		args = append(args, call.Arguments[2:]...)
	}

	d.nextTimer++
	t := &guestTimer{id: d.nextTimer, fn: fn, args: args, delay: delay, repeat: repeat}
	d.timers[t.id] = t
	d.begin()
	d.schedule(t)

	return d.vm.ToValue(t.id)
}

func (d *Document) schedule(t *guestTimer) {
	t.timer = time.AfterFunc(t.delay, func() {
		d.post(func() { d.fireTimer(t) })
	})
}

func (d *Document) fireTimer(t *guestTimer) {
	if t.cancelled {
		d.end()
		return
	}

	d.run("timer", func() error {
		_, err := t.fn(goja.Undefined(), t.args...)
		return err
	})

	if t.repeat && !t.cancelled {
		d.schedule(t)
		return
	}
	delete(d.timers, t.id)
	d.end()
}

func (d *Document) clearTimer(call goja.FunctionCall) goja.Value {
	id := call.Argument(0).ToInteger()
	t, ok := d.timers[id]
	if !ok || t.cancelled {
		return goja.Undefined()
	}
	t.cancelled = true
	delete(d.timers, id)
	// If the timer already fired its completion is queued and will call end.
	if t.timer.Stop() {
		d.end()
	}
	return goja.Undefined()
}
