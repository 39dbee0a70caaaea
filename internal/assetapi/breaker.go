package assetapi

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without a network call while the breaker is open.
var ErrCircuitOpen = errors.New("asset api unavailable: circuit breaker open")

// BreakerState represents the circuit breaker state
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateHalfOpen
	StateOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// BreakerSettings configures the breaker
type BreakerSettings struct {
	// Threshold is the number of consecutive failures that opens the circuit
	Threshold uint32
	// Cooldown is how long the circuit stays open before a probe is allowed
	Cooldown time.Duration
	// OnStateChange is called with the lock released
	OnStateChange func(from, to BreakerState)
}

// breaker is a consecutive-failure circuit breaker. While half-open a single
// probe request is admitted; its outcome closes or re-opens the circuit.
type breaker struct {
	settings BreakerSettings
	now      func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures uint32
	openedAt time.Time
	probing  bool
}

func newBreaker(settings BreakerSettings) *breaker {
	if settings.Threshold == 0 {
		settings.Threshold = 5
	}
	if settings.Cooldown == 0 {
		settings.Cooldown = 30 * time.Second
	}
	return &breaker{settings: settings, now: time.Now}
}

// State returns the current state, promoting open to half-open once the
// cooldown has elapsed.
func (b *breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh()
	return b.state
}

// allow reserves a slot for one request.
func (b *breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh()

	switch b.state {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
	}
	return nil
}

// record reports the outcome of a request admitted by allow.
func (b *breaker) record(success bool) {
	b.mu.Lock()
	from := b.state
	b.probing = false

	if success {
		b.failures = 0
		b.state = StateClosed
	} else {
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.settings.Threshold {
			b.state = StateOpen
			b.openedAt = b.now()
		}
	}
	to := b.state
	b.mu.Unlock()

	if from != to && b.settings.OnStateChange != nil {
		b.settings.OnStateChange(from, to)
	}
}

// release gives back a slot without counting an outcome.
func (b *breaker) release() {
	b.mu.Lock()
	b.probing = false
	b.mu.Unlock()
}

func (b *breaker) refresh() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.settings.Cooldown {
		b.state = StateHalfOpen
		b.probing = false
	}
}
