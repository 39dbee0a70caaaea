// Package id generates prefixed ULIDs for views, renders and requests.
//
// ULIDs sort by creation time, so view listings come back in creation order
// without a separate timestamp column.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ViewID identifies a view (one UI surface owning an execution context)
type ViewID string

// RenderID identifies a single load into an execution context
type RenderID string

// RequestID identifies an API request
type RequestID string

const (
	ViewPrefix    = "view"
	RenderPrefix  = "rnd"
	RequestPrefix = "req"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the shared generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand with monotonic
// entropy, so IDs minted in the same millisecond still sort in order.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewViewID generates a new view ID
func NewViewID() ViewID {
	return ViewID(Default().GenerateWithPrefix(ViewPrefix))
}

// NewRenderID generates a new render ID
func NewRenderID() RenderID {
	return RenderID(Default().GenerateWithPrefix(RenderPrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

func (id ViewID) String() string    { return string(id) }
func (id RenderID) String() string  { return string(id) }
func (id RequestID) String() string { return string(id) }

// HasPrefix reports whether s is "<prefix>_<valid ulid>".
func HasPrefix(s, prefix string) bool {
	rest, ok := strings.CutPrefix(s, prefix+"_")
	if !ok {
		return false
	}
	_, err := ulid.ParseStrict(rest)
	return err == nil
}

// IsViewID validates a view identifier coming from a URL.
func IsViewID(s string) bool {
	return HasPrefix(s, ViewPrefix)
}
