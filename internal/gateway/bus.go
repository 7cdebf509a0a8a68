package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Lifecycle notification names.
const (
	LifecycleConnecting     = "connecting"
	LifecycleSocketOpened   = "socket opened"
	LifecycleSocketClosed   = "socket closed"
	LifecycleSocketErrored  = "socket errored"
	LifecycleHandshakeReady = "handshake ready"
	LifecycleHeartbeatSent  = "heartbeat sent"
	LifecycleDecodeFailed   = "event decode failed"
	LifecycleUnhandledEvent = "unhandled event"
)

// Event is a normalized notification delivered to observers.
type Event struct {
	Name     string          // Stable lower-case name, e.g. "guild create"
	Sequence int64           // Dispatch sequence, 0 for lifecycle notifications
	Data     any             // Decoded payload or the cached entity it produced
	Previous any             // State before an update or delete, when known
	Raw      json.RawMessage // Original "d" field for dispatch events
}

// Handler receives events. Handlers run on the goroutine that published the
// event and must not block for long.
type Handler func(Event)

type subscription struct {
	id int
	fn Handler
}

// Bus fans events out to any number of observers.
type Bus struct {
	logger *slog.Logger

	mu     sync.RWMutex
	nextID int
	byName map[string][]subscription
	all    []subscription
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger: logger,
		byName: make(map[string][]subscription),
	}
}

// Subscribe registers h for events named name and returns a function that
// removes the subscription.
func (b *Bus) Subscribe(name string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.byName[name] = append(b.byName[name], subscription{id: id, fn: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.byName[name] = without(b.byName[name], id)
		if len(b.byName[name]) == 0 {
			delete(b.byName, name)
		}
	}
}

// SubscribeAll registers h for every event.
func (b *Bus) SubscribeAll(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscription{id: id, fn: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.all = without(b.all, id)
	}
}

// Publish delivers ev to its named subscribers and then to catch-all ones.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	named := b.byName[ev.Name]
	handlers := make([]Handler, 0, len(named)+len(b.all))
	for _, s := range named {
		handlers = append(handlers, s.fn)
	}
	for _, s := range b.all {
		handlers = append(handlers, s.fn)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(h, ev)
	}
}

func (b *Bus) deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("observer panicked", "event", ev.Name, "panic", r)
		}
	}()
	h(ev)
}

func without(subs []subscription, id int) []subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

// IsLifecycle reports whether name is a lifecycle notification rather than
// a dispatch event.
func IsLifecycle(name string) bool {
	switch name {
	case LifecycleConnecting, LifecycleSocketOpened, LifecycleSocketClosed, LifecycleSocketErrored,
		LifecycleHandshakeReady, LifecycleHeartbeatSent, LifecycleDecodeFailed, LifecycleUnhandledEvent:
		return true
	}
	return false
}
