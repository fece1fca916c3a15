package tracing

import (
	"context"
	"sync"

	"github.com/lenML/pflow"
	"github.com/lenML/pflow/pkg/domain"
	"github.com/lenML/pflow/pkg/shared"
)

// Collect instruments n, subscribes to every trace event on sc's bus, runs
// drive against the instrumented graph, and returns the events in emission
// order. Collection is concurrency safe, so parallel branches interleave
// rather than corrupt the record. Subscriptions are removed before return.
func Collect(sc *shared.Shared, n pflow.Node, drive func(pflow.Node) error) ([]domain.TraceEvent, error) {
	wrapped := Instrument(n)

	var mu sync.Mutex
	var events []domain.TraceEvent

	record := func(_ context.Context, payload any) error {
		ev, ok := payload.(domain.TraceEvent)
		if !ok {
			return nil
		}
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
		return nil
	}

	for _, name := range domain.TraceEventNames() {
		id := sc.Bus().On(name, record)
		defer sc.Bus().Off(name, id)
	}

	err := drive(wrapped)

	mu.Lock()
	defer mu.Unlock()
	return events, err
}
