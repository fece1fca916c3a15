package http

import (
	"context"
	"sync"

	"github.com/lenML/pflow/pkg/domain"
	"github.com/lenML/pflow/pkg/shared"
)

// TraceSink buffers trace events from a shared context for the /traces
// endpoint. Safe for concurrent append and read.
type TraceSink struct {
	mu     sync.Mutex
	events []domain.TraceEvent
	subs   map[*shared.Shared][]subscription
}

type subscription struct {
	event string
	id    int
}

// NewTraceSink creates an empty sink.
func NewTraceSink() *TraceSink {
	return &TraceSink{subs: map[*shared.Shared][]subscription{}}
}

// Attach subscribes the sink to every trace event on sc's bus.
func (s *TraceSink) Attach(sc *shared.Shared) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := make([]subscription, 0, len(domain.TraceEventNames()))
	for _, name := range domain.TraceEventNames() {
		id := sc.Bus().On(name, s.record)
		subs = append(subs, subscription{event: name, id: id})
	}
	s.subs[sc] = subs
}

// Detach removes the subscriptions added by Attach.
func (s *TraceSink) Detach(sc *shared.Shared) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs[sc] {
		sc.Bus().Off(sub.event, sub.id)
	}
	delete(s.subs, sc)
}

// Events returns a copy of the captured events in emission order.
func (s *TraceSink) Events() []domain.TraceEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.TraceEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Reset drops every captured event.
func (s *TraceSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

func (s *TraceSink) record(_ context.Context, payload any) error {
	ev, ok := payload.(domain.TraceEvent)
	if !ok {
		return nil
	}
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return nil
}
