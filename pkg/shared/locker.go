package shared

import (
	"context"
	"sync"

	"github.com/lenML/pflow/pkg/domain"
)

// MutexTable is a table of named, reentrancy-free mutexes. Acquisition is
// granted in strict FIFO arrival order per resource id.
type MutexTable struct {
	mu     sync.Mutex
	queues map[string][]*waiter
}

type waiter struct {
	ready chan struct{}
}

// NewMutexTable creates an empty lock table.
func NewMutexTable() *MutexTable {
	return &MutexTable{queues: make(map[string][]*waiter)}
}

// Acquire blocks until the caller holds id or ctx is done. Waiters are
// queued in arrival order; the queue head holds the lock.
func (t *MutexTable) Acquire(ctx context.Context, id string) error {
	w := &waiter{ready: make(chan struct{})}

	t.mu.Lock()
	t.queues[id] = append(t.queues[id], w)
	if len(t.queues[id]) == 1 {
		close(w.ready)
	}
	t.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		t.mu.Lock()
		defer t.mu.Unlock()
		select {
		case <-w.ready:
			// Granted while we were giving up: pass it on.
			t.releaseLocked(id)
		default:
			t.removeLocked(id, w)
		}
		return ctx.Err()
	}
}

// Release frees id and wakes the next waiter, if any. Releasing an id that
// has no holder returns domain.ErrNotLocked.
func (t *MutexTable) Release(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.queues[id]) == 0 {
		return domain.ErrNotLocked
	}
	t.releaseLocked(id)
	return nil
}

// WithLock runs fn while holding id, releasing on every exit path.
func (t *MutexTable) WithLock(ctx context.Context, id string, fn func() error) error {
	if err := t.Acquire(ctx, id); err != nil {
		return err
	}
	defer t.Release(id)
	return fn()
}

func (t *MutexTable) releaseLocked(id string) {
	q := t.queues[id][1:]
	if len(q) == 0 {
		delete(t.queues, id)
		return
	}
	t.queues[id] = q
	close(q[0].ready)
}

func (t *MutexTable) removeLocked(id string, w *waiter) {
	q := t.queues[id]
	for i, cand := range q {
		if cand == w {
			t.queues[id] = append(q[:i:i], q[i+1:]...)
			break
		}
	}
	if len(t.queues[id]) == 0 {
		delete(t.queues, id)
	}
}
