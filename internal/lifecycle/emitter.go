package lifecycle

import (
	"sync"

	"github.com/conscious-bot/reflexcore/internal/telemetry"
)

// DefaultCap is the default event log capacity before oldest-first eviction
// kicks in.
const DefaultCap = 200

// Emitter is a bounded, thread-safe event log. Reads return a snapshot
// copy so callers never observe a slice that mutates under them.
type Emitter struct {
	mu     sync.RWMutex
	events []Event
	cap    int
}

// NewEmitter builds an Emitter with the given capacity. A cap <= 0 falls
// back to DefaultCap.
func NewEmitter(cap int) *Emitter {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &Emitter{
		events: make([]Event, 0, cap),
		cap:    cap,
	}
}

// Emit appends e to the log, evicting the oldest event if at capacity.
func (e *Emitter) Emit(evt Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.events) >= e.cap {
		// Oldest-first eviction.
		e.events = append(e.events[:0], e.events[1:]...)
	}
	e.events = append(e.events, evt)

	telemetry.LifecycleEvents.WithLabelValues(string(evt.Type)).Inc()
}

// Events returns a snapshot copy of the full log, oldest first.
func (e *Emitter) Events() []Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Event, len(e.events))
	copy(out, e.events)
	return out
}

// ByType returns a snapshot copy filtered to a single event type.
func (e *Emitter) ByType(t EventType) []Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []Event
	for _, evt := range e.events {
		if evt.Type == t {
			out = append(out, evt)
		}
	}
	return out
}

// ByReflexInstance returns a snapshot copy of all events carrying the given
// reflex instance ID, in emission order.
func (e *Emitter) ByReflexInstance(id string) []Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []Event
	for _, evt := range e.events {
		if evt.ReflexInstanceID == id {
			out = append(out, evt)
		}
	}
	return out
}
