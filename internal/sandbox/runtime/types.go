package runtime

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/GriffinCanCode/BrandHub/backend/internal/assetapi"
	"go.uber.org/zap"
)

var (
	// ErrClosed is returned by operations on a closed Document.
	ErrClosed = errors.New("document closed")
	// ErrScriptTimeout interrupts a task that ran past Config.ScriptTimeout.
	ErrScriptTimeout = errors.New("script execution timeout exceeded")
)

// Fetcher performs the network half of guest fetch calls.
type Fetcher interface {
	Do(ctx context.Context, method, rawURL string, header http.Header) (*assetapi.Response, error)
}

// Config defines document configuration
type Config struct {
	// ScriptTimeout bounds each task on the loop. Zero disables the bound.
	ScriptTimeout time.Duration
	// AllowedOrigins are the scheme://host[:port] values fetch may reach.
	AllowedOrigins []string
	// Fetcher serves allowed fetches. Nil makes every fetch reject.
	Fetcher Fetcher
	// MaxConsoleEntries caps retained console output (oldest dropped).
	MaxConsoleEntries int
	// OnConsole and OnGuestError are called on the loop goroutine and must
	// not call back into the Document.
	OnConsole    func(LogEntry)
	OnGuestError func(GuestError)
	Logger       *zap.Logger
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		ScriptTimeout:     5 * time.Second,
		MaxConsoleEntries: 500,
	}
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// GuestError is a failure inside guest code.
type GuestError struct {
	// Source names where it happened: "script#2", "timer", "event:click",
	// "promise", "load".
	Source  string    `json:"source"`
	Message string    `json:"message"`
	Stack   string    `json:"stack,omitempty"`
	Timeout bool      `json:"timeout,omitempty"`
	Time    time.Time `json:"time"`
}

// ReadyState mirrors document.readyState.
type ReadyState string

const (
	StateLoading     ReadyState = "loading"
	StateInteractive ReadyState = "interactive"
	StateComplete    ReadyState = "complete"
)

// Snapshot is a point-in-time copy of observable document state.
type Snapshot struct {
	HTML        string       `json:"html"`
	Title       string       `json:"title"`
	ReadyState  ReadyState   `json:"ready_state"`
	Console     []LogEntry   `json:"console"`
	GuestErrors []GuestError `json:"guest_errors"`
	Pending     int          `json:"pending"`
}
