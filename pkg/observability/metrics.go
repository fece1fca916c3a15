// Package observability exposes engine activity as Prometheus metrics by
// listening to trace events on a shared context.
package observability

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lenML/pflow/pkg/domain"
	"github.com/lenML/pflow/pkg/shared"
)

// Metrics counts trace events and times node runs. Attach it to each shared
// context whose activity should be observed; one Metrics instance can serve
// several contexts.
type Metrics struct {
	events   *prometheus.CounterVec
	duration *prometheus.HistogramVec

	mu       sync.Mutex
	started  map[string]time.Time
	handlers map[*shared.Shared][]subscription
}

type subscription struct {
	event string
	id    int
}

// NewMetrics creates unregistered collectors. Call Register before use.
func NewMetrics() *Metrics {
	return &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pflow_trace_events_total",
			Help: "Trace events emitted, by event name and node kind.",
		}, []string{"event", "kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pflow_node_run_seconds",
			Help:    "Wall time of node runs, by node kind.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		started:  map[string]time.Time{},
		handlers: map[*shared.Shared][]subscription{},
	}
}

// Register adds the collectors to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if err := reg.Register(m.events); err != nil {
		return err
	}
	return reg.Register(m.duration)
}

// Attach subscribes to every trace event on sc's bus. Events only flow when
// the graph is instrumented with pkg/tracing.
func (m *Metrics) Attach(sc *shared.Shared) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs := make([]subscription, 0, len(domain.TraceEventNames()))
	for _, name := range domain.TraceEventNames() {
		id := sc.Bus().On(name, m.observe)
		subs = append(subs, subscription{event: name, id: id})
	}
	m.handlers[sc] = subs
}

// Detach removes the subscriptions added by Attach.
func (m *Metrics) Detach(sc *shared.Shared) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sub := range m.handlers[sc] {
		sc.Bus().Off(sub.event, sub.id)
	}
	delete(m.handlers, sc)
}

func (m *Metrics) observe(_ context.Context, payload any) error {
	ev, ok := payload.(domain.TraceEvent)
	if !ok {
		return nil
	}

	kind := "unknown"
	if len(ev.NodeKinds) > 0 {
		kind = ev.NodeKinds[0]
	}
	m.events.WithLabelValues(ev.Name, kind).Inc()

	switch ev.Name {
	case domain.TraceRunStart:
		m.mu.Lock()
		m.started[ev.NodeID] = ev.Timestamp
		m.mu.Unlock()
	case domain.TraceRunResult:
		m.mu.Lock()
		start, ok := m.started[ev.NodeID]
		delete(m.started, ev.NodeID)
		m.mu.Unlock()
		if ok {
			m.duration.WithLabelValues(kind).Observe(ev.Timestamp.Sub(start).Seconds())
		}
	}
	return nil
}
