package view

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/host"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/runtime"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/selection"
	"github.com/GriffinCanCode/BrandHub/backend/internal/shared/id"
)

// View is one UI surface showing at most one tool.
type View struct {
	ID         id.ViewID
	Host       *host.Host
	Controller *selection.Controller
	CreatedAt  time.Time

	restore sync.Once
	stale   bool // restored from the store, not rendered yet

	subMu sync.Mutex
	subs  map[chan host.Event]struct{}
}

// Info is the externally visible state of a view.
type Info struct {
	ID         id.ViewID             `json:"id"`
	Navigation string                `json:"navigation"`
	State      host.State            `json:"state"`
	Selection  selection.Status      `json:"selection"`
	Context    host.ExecutionContext `json:"context"`
	Document   *runtime.Snapshot     `json:"document,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
}

// Info describes the view. withDocument adds a DOM snapshot when a document
// is loaded.
func (v *View) Info(ctx context.Context, withDocument bool) Info {
	info := Info{
		ID:         v.ID,
		Navigation: v.Controller.Navigation(),
		State:      v.Host.State(),
		Selection:  v.Controller.Status(),
		Context:    v.Host.Context(),
		CreatedAt:  v.CreatedAt,
	}
	if withDocument && info.State == host.StateLoaded {
		if snap, err := v.Host.Snapshot(ctx); err == nil {
			info.Document = snap
		}
	}
	return info
}

// Subscribe returns a channel of host events and a func that ends the
// subscription and closes the channel.
func (v *View) Subscribe(buffer int) (<-chan host.Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan host.Event, buffer)

	v.subMu.Lock()
	if v.subs == nil {
		v.subs = make(map[chan host.Event]struct{})
	}
	v.subs[ch] = struct{}{}
	v.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			v.subMu.Lock()
			if _, ok := v.subs[ch]; ok {
				delete(v.subs, ch)
				close(ch)
			}
			v.subMu.Unlock()
		})
	}
}

func (v *View) publish(ev host.Event) {
	v.subMu.Lock()
	defer v.subMu.Unlock()
	for ch := range v.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (v *View) closeSubscribers() {
	v.subMu.Lock()
	defer v.subMu.Unlock()
	for ch := range v.subs {
		close(ch)
		delete(v.subs, ch)
	}
}
