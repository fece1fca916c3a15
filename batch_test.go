package pflow_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lenML/pflow"
	"github.com/lenML/pflow/pkg/domain"
	"github.com/lenML/pflow/pkg/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchNode_SequentialOrder(t *testing.T) {
	sc := shared.New(shared.WithLogger(nopLogger()))

	n := pflow.NewBatchNode("double", pflow.Steps{
		Prep: func(ctx context.Context, sc *shared.Shared, params domain.Params) (any, error) {
			return []int{1, 2, 3}, nil
		},
		Exec: func(ctx context.Context, params domain.Params, item any) (any, error) {
			return item.(int) * 2, nil
		},
		Post: func(ctx context.Context, sc *shared.Shared, params domain.Params, prep, exec any) (domain.Action, error) {
			sc.Set("items", prep)
			sc.Set("results", exec)
			return "", nil
		},
	})

	_, err := n.Run(context.Background(), sc)
	require.NoError(t, err)

	items, _ := sc.Get("items")
	results, _ := sc.Get("results")
	assert.Equal(t, []any{1, 2, 3}, items)
	assert.Equal(t, []any{2, 4, 6}, results)
}

func TestBatchNode_EmptySequence(t *testing.T) {
	sc := shared.New(shared.WithLogger(nopLogger()))

	execCalls := 0
	postCalls := 0
	n := pflow.NewBatchNode("empty", pflow.Steps{
		Prep: func(ctx context.Context, sc *shared.Shared, params domain.Params) (any, error) {
			return []any{}, nil
		},
		Exec: func(ctx context.Context, params domain.Params, item any) (any, error) {
			execCalls++
			return nil, nil
		},
		Post: func(ctx context.Context, sc *shared.Shared, params domain.Params, prep, exec any) (domain.Action, error) {
			postCalls++
			assert.Equal(t, []any{}, exec, "empty input yields an empty result sequence")
			return "", nil
		},
	})

	_, err := n.Run(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, 0, execCalls)
	assert.Equal(t, 1, postCalls, "finalize still runs for an empty batch")
}

func TestBatchNode_MalformedPrepTreatedAsEmpty(t *testing.T) {
	sc := shared.New(shared.WithLogger(nopLogger()))

	n := pflow.NewBatchNode("malformed", pflow.Steps{
		Prep: func(ctx context.Context, sc *shared.Shared, params domain.Params) (any, error) {
			return 42, nil // not a sequence
		},
		Post: func(ctx context.Context, sc *shared.Shared, params domain.Params, prep, exec any) (domain.Action, error) {
			sc.Set("results", exec)
			return "", nil
		},
	}, pflow.WithNodeLogger(nopLogger()))

	_, err := n.Run(context.Background(), sc)
	require.NoError(t, err, "malformed batch input is recovered locally")

	results, _ := sc.Get("results")
	assert.Empty(t, results)
}

func TestBatchNode_SequentialStopsAtFirstError(t *testing.T) {
	sc := shared.New(shared.WithLogger(nopLogger()))

	var processed []int
	boom := errors.New("item failed")
	n := pflow.NewBatchNode("failing", pflow.Steps{
		Prep: func(ctx context.Context, sc *shared.Shared, params domain.Params) (any, error) {
			return []int{1, 2, 3, 4}, nil
		},
		Exec: func(ctx context.Context, params domain.Params, item any) (any, error) {
			i := item.(int)
			if i == 2 {
				return nil, boom
			}
			processed = append(processed, i)
			return i, nil
		},
	})

	_, err := n.Run(context.Background(), sc)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{1}, processed, "items after the failure must not run")
}

func TestBatchNode_PerItemRetry(t *testing.T) {
	sc := shared.New(shared.WithLogger(nopLogger()))

	attempts := map[int]int{}
	n := pflow.NewBatchNode("retrying", pflow.Steps{
		Prep: func(ctx context.Context, sc *shared.Shared, params domain.Params) (any, error) {
			return []int{1, 2}, nil
		},
		Exec: func(ctx context.Context, params domain.Params, item any) (any, error) {
			i := item.(int)
			attempts[i]++
			if attempts[i] < 2 {
				return nil, errors.New("transient")
			}
			return i * 10, nil
		},
		Post: func(ctx context.Context, sc *shared.Shared, params domain.Params, prep, exec any) (domain.Action, error) {
			sc.Set("results", exec)
			return "", nil
		},
	}, pflow.WithMaxAttempts(2))

	_, err := n.Run(context.Background(), sc)
	require.NoError(t, err)

	results, _ := sc.Get("results")
	assert.Equal(t, []any{10, 20}, results)
	assert.Equal(t, map[int]int{1: 2, 2: 2}, attempts, "retries are budgeted per item")
}

func TestParallelBatchNode_PreservesInputOrder(t *testing.T) {
	sc := shared.New(shared.WithLogger(nopLogger()))

	// Delays inversely correlated with position: the last item finishes
	// first, so a completion-order join would reverse the sequence.
	n := pflow.NewParallelBatchNode("staggered", pflow.Steps{
		Prep: func(ctx context.Context, sc *shared.Shared, params domain.Params) (any, error) {
			return []int{4, 3, 2, 1}, nil
		},
		Exec: func(ctx context.Context, params domain.Params, item any) (any, error) {
			d := item.(int)
			time.Sleep(time.Duration(d) * 20 * time.Millisecond)
			return d * 100, nil
		},
		Post: func(ctx context.Context, sc *shared.Shared, params domain.Params, prep, exec any) (domain.Action, error) {
			sc.Set("results", exec)
			return "", nil
		},
	})

	_, err := n.Run(context.Background(), sc)
	require.NoError(t, err)

	results, _ := sc.Get("results")
	assert.Equal(t, []any{400, 300, 200, 100}, results,
		"result order matches input order, not completion order")
}

func TestParallelBatchNode_FirstErrorWins(t *testing.T) {
	sc := shared.New(shared.WithLogger(nopLogger()))

	boom := errors.New("fast failure")
	var canceled atomic.Bool
	n := pflow.NewParallelBatchNode("mixed", pflow.Steps{
		Prep: func(ctx context.Context, sc *shared.Shared, params domain.Params) (any, error) {
			return []string{"fail", "slow"}, nil
		},
		Exec: func(ctx context.Context, params domain.Params, item any) (any, error) {
			if item == "fail" {
				return nil, boom
			}
			select {
			case <-ctx.Done():
				canceled.Store(true)
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
				return "done", nil
			}
		},
	})

	start := time.Now()
	_, err := n.Run(context.Background(), sc)
	assert.ErrorIs(t, err, boom)
	assert.Less(t, time.Since(start), time.Second,
		"the join must not wait for slow siblings to report the error")
	assert.True(t, canceled.Load(), "siblings observe cancellation through their context")
}

func TestBatchFlow_RunsOncePerRecord(t *testing.T) {
	sc := shared.New(
		shared.WithData(map[string]any{"langs": []string{}}),
		shared.WithLogger(nopLogger()),
	)

	worker := pflow.NewNode("worker", pflow.Steps{
		Post: func(ctx context.Context, sc *shared.Shared, params domain.Params, prep, exec any) (domain.Action, error) {
			langs, _ := sc.Get("langs")
			sc.Set("langs", append(langs.([]string), params["lang"].(string)))
			return "", nil
		},
	})

	postCalls := 0
	f := pflow.NewBatchFlow("translate", worker, pflow.Steps{
		Prep: func(ctx context.Context, sc *shared.Shared, params domain.Params) (any, error) {
			return []domain.Params{{"lang": "pt"}, {"lang": "fr"}, {"lang": "de"}}, nil
		},
		Post: func(ctx context.Context, sc *shared.Shared, params domain.Params, prep, exec any) (domain.Action, error) {
			postCalls++
			assert.Len(t, prep, 3, "finalize receives the full record sequence")
			return "", nil
		},
	}, pflow.WithParams(domain.Params{"lang": "en", "mode": "fast"}))

	_, err := f.Run(context.Background(), sc)
	require.NoError(t, err)

	langs, _ := sc.Get("langs")
	assert.Equal(t, []string{"pt", "fr", "de"}, langs, "record fields win over flow params")
	assert.Equal(t, 1, postCalls, "finalize runs once after all traversals")
}

func TestParallelBatchFlow_AllTraversalsComplete(t *testing.T) {
	sc := shared.New(shared.WithLogger(nopLogger()))

	var count atomic.Int64
	worker := pflow.NewNode("worker", pflow.Steps{
		Exec: func(ctx context.Context, params domain.Params, prep any) (any, error) {
			time.Sleep(time.Duration(params["delay"].(int)) * 10 * time.Millisecond)
			count.Add(1)
			return nil, nil
		},
	})

	f := pflow.NewParallelBatchFlow("fanout", worker, pflow.Steps{
		Prep: func(ctx context.Context, sc *shared.Shared, params domain.Params) (any, error) {
			return []domain.Params{{"delay": 3}, {"delay": 2}, {"delay": 1}}, nil
		},
	})

	_, err := f.Run(context.Background(), sc)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count.Load())
}
