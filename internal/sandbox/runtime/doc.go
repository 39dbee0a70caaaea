// Package runtime hosts one isolated guest document: a goja VM and an
// x/net/html DOM that live and die together.
//
// Every Document owns a single event-loop goroutine, and only that goroutine
// touches the VM or the DOM. Work that leaves the loop (fetches, timers)
// posts its completion back as a task. Tasks run under a per-task deadline
// that interrupts runaway guest code.
//
// Guest failures never escape: thrown exceptions, unhandled rejections and
// timed-out tasks are recorded as GuestError values and the document keeps
// running. A Document is never reused; reloading means opening a new one.
//
// Supported globals:
//
//	window, self, document, location, console, fetch, Event, CustomEvent,
//	setTimeout, clearTimeout, setInterval, clearInterval, queueMicrotask
//
// The DOM covers element lookup (getElementById, querySelector[All],
// getElementsByTagName, getElementsByClassName), tree edits, attributes,
// classList, innerHTML/outerHTML/textContent and event listeners.
package runtime
