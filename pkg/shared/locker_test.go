package shared_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lenML/pflow/pkg/domain"
	"github.com/lenML/pflow/pkg/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutexTable_AcquireRelease(t *testing.T) {
	table := shared.NewMutexTable()
	ctx := context.Background()

	require.NoError(t, table.Acquire(ctx, "res"))
	require.NoError(t, table.Release("res"))

	assert.ErrorIs(t, table.Release("res"), domain.ErrNotLocked)
}

func TestMutexTable_FIFOOrder(t *testing.T) {
	table := shared.NewMutexTable()
	ctx := context.Background()

	const n = 8
	var mu sync.Mutex
	var order []int
	inSection := 0

	// Hold the lock so all workers queue behind us in a known order.
	require.NoError(t, table.Acquire(ctx, "res"))

	var wg sync.WaitGroup
	started := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i == 0 {
				close(started)
			} else {
				// Stagger arrivals so queue order is deterministic.
				time.Sleep(time.Duration(i) * 20 * time.Millisecond)
			}
			assert.NoError(t, table.Acquire(ctx, "res"))
			mu.Lock()
			inSection++
			assert.Equal(t, 1, inSection, "critical sections must not overlap")
			order = append(order, i)
			inSection--
			mu.Unlock()
			assert.NoError(t, table.Release("res"))
		}(i)
	}

	<-started
	// Give every worker time to enqueue before releasing.
	time.Sleep(time.Duration(n) * 25 * time.Millisecond)
	require.NoError(t, table.Release("res"))

	wg.Wait()

	for i := 0; i < n; i++ {
		assert.Equal(t, i, order[i], "grants must follow arrival order")
	}
}

func TestMutexTable_AcquireCanceled(t *testing.T) {
	table := shared.NewMutexTable()
	require.NoError(t, table.Acquire(context.Background(), "res"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := table.Acquire(ctx, "res")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The canceled waiter must not corrupt the queue for later arrivals.
	require.NoError(t, table.Release("res"))
	require.NoError(t, table.Acquire(context.Background(), "res"))
	require.NoError(t, table.Release("res"))
}

func TestMutexTable_WithLock(t *testing.T) {
	table := shared.NewMutexTable()
	ctx := context.Background()

	boom := errors.New("boom")
	err := table.WithLock(ctx, "res", func() error { return boom })
	assert.ErrorIs(t, err, boom)

	// The lock must be free again even though the body failed.
	done := make(chan error, 1)
	go func() { done <- table.Acquire(ctx, "res") }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("lock was not released after failing body")
	}
}
