package shared

import (
	"context"
	"sync"
)

// Listener receives an event payload. Returning an error does not stop
// delivery to later listeners; the error is logged and dropped.
type Listener func(ctx context.Context, payload any) error

type busEntry struct {
	id int
	fn Listener
}

// Bus is an ordered publish/subscribe hub keyed by event name.
type Bus struct {
	mu        sync.Mutex
	nextID    int
	listeners map[string][]busEntry

	log     *Logger
	aborted func() bool
}

func newBus(log *Logger, aborted func() bool) *Bus {
	return &Bus{
		listeners: make(map[string][]busEntry),
		log:       log,
		aborted:   aborted,
	}
}

// On subscribes fn to event and returns a handle for Off.
func (b *Bus) On(event string, fn Listener) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.listeners[event] = append(b.listeners[event], busEntry{id: b.nextID, fn: fn})
	return b.nextID
}

// Off removes the subscription identified by id. Unknown ids are ignored.
func (b *Bus) Off(event string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.listeners[event]
	for i, e := range q {
		if e.id == id {
			b.listeners[event] = append(q[:i:i], q[i+1:]...)
			break
		}
	}
	if len(b.listeners[event]) == 0 {
		delete(b.listeners, event)
	}
}

// Emit delivers payload to event's listeners in subscription order.
// Emit is a no-op once the context is aborted, and stops mid-list if the
// signal trips between listeners. A failing listener is logged and skipped.
func (b *Bus) Emit(ctx context.Context, event string, payload any) {
	if b.aborted() {
		return
	}

	b.mu.Lock()
	snapshot := make([]busEntry, len(b.listeners[event]))
	copy(snapshot, b.listeners[event])
	b.mu.Unlock()

	for _, e := range snapshot {
		if b.aborted() {
			return
		}
		if err := e.fn(ctx, payload); err != nil {
			b.log.Error("event listener failed", "event", event, "error", err)
		}
	}
}
