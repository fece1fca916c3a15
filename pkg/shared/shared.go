package shared

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/lenML/pflow/pkg/domain"
)

// Shared is the cross-node execution context.
type Shared struct {
	id     string
	ctx    context.Context
	cancel context.CancelCauseFunc

	mu   sync.RWMutex
	data map[string]any

	locker *MutexTable
	bus    *Bus
	log    *Logger
}

// Option configures a Shared context.
type Option func(*options)

type options struct {
	data   map[string]any
	logger *slog.Logger
	parent context.Context
}

// WithData seeds the data payload. The map is used directly, not copied,
// so the caller can keep a reference for inspection after the run.
func WithData(data map[string]any) Option {
	return func(o *options) {
		o.data = data
	}
}

// WithLogger injects the slog sink for engine and listener logging.
// Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithContext sets the parent context the abort signal derives from.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		o.parent = ctx
	}
}

// New creates a Shared context with a fresh identity.
func New(opts ...Option) *Shared {
	o := options{
		data:   map[string]any{},
		logger: slog.Default(),
		parent: context.Background(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancelCause(o.parent)
	s := &Shared{
		id:     uuid.NewString(),
		ctx:    ctx,
		cancel: cancel,
		data:   o.data,
		locker: NewMutexTable(),
	}
	s.log = newLogger(o.logger, s.Aborted)
	s.bus = newBus(s.log, s.Aborted)
	return s
}

// ID returns the context's unique identity.
func (s *Shared) ID() string { return s.id }

// Context returns the cancellation context backing the abort signal.
// Long-running node work should select on its Done channel.
func (s *Shared) Context() context.Context { return s.ctx }

// Done is closed once the context is aborted or its parent is canceled.
func (s *Shared) Done() <-chan struct{} { return s.ctx.Done() }

// Abort trips the cancellation signal. The signal is monotonic: the first
// cause wins and no operation resets it. A nil cause records
// domain.ErrAborted.
func (s *Shared) Abort(cause error) {
	if cause == nil {
		cause = domain.ErrAborted
	}
	s.cancel(cause)
}

// Aborted reports whether the signal has tripped.
func (s *Shared) Aborted() bool {
	return s.ctx.Err() != nil
}

// Cause returns the abort reason, or nil while the context is live.
func (s *Shared) Cause() error {
	return context.Cause(s.ctx)
}

// Get reads a key from the data payload.
func (s *Shared) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Set writes a key into the data payload.
func (s *Shared) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Delete removes a key from the data payload.
func (s *Shared) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Len returns the number of keys in the data payload.
func (s *Shared) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Snapshot returns a shallow copy of the data payload.
func (s *Shared) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Locker returns the named FIFO mutex table.
func (s *Shared) Locker() *MutexTable { return s.locker }

// Bus returns the event bus.
func (s *Shared) Bus() *Bus { return s.bus }

// Logger returns the listener-aware logger.
func (s *Shared) Logger() *Logger { return s.log }
