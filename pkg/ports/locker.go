// Package ports declares the interfaces the engine depends on for
// infrastructure concerns, so adapters can be swapped without touching
// engine code.
package ports

import (
	"context"
	"time"
)

// ReleaseFunc releases a previously acquired lock.
type ReleaseFunc func(ctx context.Context) error

// Locker coordinates exclusive access to named resources. The in-process
// mutex table inside a shared context satisfies the same contract for a
// single process; adapters extend it across process boundaries.
type Locker interface {
	// Acquire blocks until the lock for id is held, the context is
	// canceled, or the TTL expires on the backing store. The returned
	// ReleaseFunc must be called to give the lock up.
	Acquire(ctx context.Context, id string, ttl time.Duration) (ReleaseFunc, error)
}
