package host

import (
	"errors"
	"time"

	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/bundle"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/runtime"
	"github.com/GriffinCanCode/BrandHub/backend/internal/shared/id"
)

var (
	// ErrNotAttached is returned by Load before Attach. Callers may retry
	// once a frame is attached.
	ErrNotAttached = errors.New("execution context not attached")
	// ErrNoDocument is returned when the host has nothing loaded.
	ErrNoDocument = errors.New("no document loaded")
)

// State is the host lifecycle state.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Frame is what a view attaches: the API the bridge points at and the
// template every document is opened with.
type Frame struct {
	// APIBaseURL is exposed to guests as BrandHub.apiBaseUrl. Its origin is
	// always allowed for guest fetch.
	APIBaseURL string
	Runtime    runtime.Config
}

// ExecutionContext describes what is currently loaded.
type ExecutionContext struct {
	Document   *runtime.Document `json:"-"`
	RenderID   id.RenderID       `json:"render_id,omitempty"`
	BundleID   bundle.ID         `json:"bundle_id,omitempty"`
	Slug       string            `json:"slug,omitempty"`
	Generation uint64            `json:"generation"`
	LoadedAt   time.Time         `json:"loaded_at,omitempty"`
}

// EventType identifies an Event.
type EventType string

const (
	EventState      EventType = "state"
	EventConsole    EventType = "console"
	EventGuestError EventType = "guest_error"
)

// Event is delivered to observers. State events report transitions;
// console and guest_error events come from the current document only.
type Event struct {
	Type       EventType           `json:"type"`
	Generation uint64              `json:"generation"`
	State      State               `json:"state"`
	Slug       string              `json:"slug,omitempty"`
	Console    *runtime.LogEntry   `json:"console,omitempty"`
	GuestError *runtime.GuestError `json:"guest_error,omitempty"`
	Time       time.Time           `json:"time"`
}

// Observer receives events. It runs synchronously, possibly on a document
// loop, and must not block or call back into the Host.
type Observer func(Event)

// Recorder receives render and guest metrics. *monitoring.Metrics
// satisfies it.
type Recorder interface {
	RecordRender(outcome string, duration time.Duration)
	RecordGuestError()
	RecordBridgeFetch(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordRender(string, time.Duration) {}
func (nopRecorder) RecordGuestError()                  {}
func (nopRecorder) RecordBridgeFetch(string)           {}
