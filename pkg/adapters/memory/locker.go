// Package memory adapts in-process primitives onto the port interfaces.
package memory

import (
	"context"
	"time"

	"github.com/lenML/pflow/pkg/ports"
	"github.com/lenML/pflow/pkg/shared"
)

// Locker satisfies ports.Locker over a shared context's mutex table. The
// TTL is ignored: in-process locks die with the process, so leases are
// unnecessary.
type Locker struct {
	table *shared.MutexTable
}

// NewLocker wraps the given mutex table. Pass sc.Locker() to coordinate
// with engine-acquired locks on the same shared context.
func NewLocker(table *shared.MutexTable) *Locker {
	return &Locker{table: table}
}

func (l *Locker) Acquire(ctx context.Context, id string, _ time.Duration) (ports.ReleaseFunc, error) {
	if err := l.table.Acquire(ctx, id); err != nil {
		return nil, err
	}
	release := func(context.Context) error {
		return l.table.Release(id)
	}
	return release, nil
}
