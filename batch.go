package pflow

import (
	"context"
	"fmt"
	"reflect"

	"github.com/lenML/pflow/pkg/domain"
	"github.com/lenML/pflow/pkg/shared"
	"golang.org/x/sync/errgroup"
)

type batchNode struct {
	baseNode
	itemRetry domain.RetryPolicy
	parallel  bool
}

// NewBatchNode creates a node whose Prep returns a sequence of items and
// whose Exec step runs once per item, each item under its own retry budget.
// Items are processed in order; the first failing item aborts the rest.
func NewBatchNode(name string, steps Steps, opts ...Option) Node {
	return newBatchNode(name, steps, false, opts, "batch", "node")
}

// NewParallelBatchNode is NewBatchNode with all items launched concurrently.
// The result sequence always matches input order. The join is
// all-or-nothing: the first item error cancels the shared group context, so
// in-flight siblings that honor their context stop early.
func NewParallelBatchNode(name string, steps Steps, opts ...Option) Node {
	return newBatchNode(name, steps, true, opts, "parallel_batch", "batch", "node")
}

func newBatchNode(name string, steps Steps, parallel bool, opts []Option, ancestry ...string) *batchNode {
	n := &batchNode{
		baseNode: *newBase(name, ancestry...),
		parallel: parallel,
	}
	n.steps = steps
	for _, opt := range opts {
		opt(&n.baseNode)
	}
	// The retry budget applies per item, not to the whole fan-out.
	n.itemRetry = n.retry
	n.retry = domain.RetryPolicy{MaxAttempts: 1}
	return n
}

// Exec fans the prep sequence out over the configured Exec step.
func (n *batchNode) Exec(ctx context.Context, prep any) (any, error) {
	items, ok := coerceItems(prep)
	if !ok {
		n.log.Warn("batch prep result is not a sequence; treating as empty",
			"node", n.kindLabel())
		items = nil
	}

	results := make([]any, len(items))
	if n.parallel {
		g, gctx := errgroup.WithContext(ctx)
		for i, item := range items {
			i, item := i, item
			g.Go(func() error {
				out, err := n.execItem(gctx, item)
				if err != nil {
					return fmt.Errorf("item %d: %w", i, err)
				}
				results[i] = out
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return results, nil
	}

	for i, item := range items {
		out, err := n.execItem(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		results[i] = out
	}
	return results, nil
}

// execItem applies the per-item retry wrapper around the Exec step, with
// the Fallback step catching the final failure.
func (n *batchNode) execItem(ctx context.Context, item any) (any, error) {
	policy := n.itemRetry.Normalize()

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 && policy.Wait > 0 {
			if err := sleep(ctx, policy.Wait); err != nil {
				return nil, err
			}
		}
		out, err := n.baseNode.Exec(ctx, item)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}

	return n.baseNode.ExecFallback(ctx, item, lastErr)
}

// ExecFallback re-raises: the Fallback step already ran per item.
func (n *batchNode) ExecFallback(ctx context.Context, prep any, execErr error) (any, error) {
	return nil, execErr
}

// Post hands the Post step the item sequence and the position-matched exec
// results. The default reduction is the default action; callers with
// divergent per-item outcomes should override Post to merge them.
func (n *batchNode) Post(ctx context.Context, sc *shared.Shared, prep, exec any) (domain.Action, error) {
	if n.steps.Post == nil {
		return "", nil
	}
	items, _ := coerceItems(prep)
	return n.steps.Post(ctx, sc, n.params, items, exec)
}

func (n *batchNode) Run(ctx context.Context, sc *shared.Shared) (domain.Action, error) {
	warnStandalone(n, sc)
	return RunLifecycle(ctx, sc, n)
}

func (n *batchNode) Clone() Node {
	return &batchNode{
		baseNode:  n.cloneBase(),
		itemRetry: n.itemRetry,
		parallel:  n.parallel,
	}
}

// NewBatchFlow creates a flow whose Prep returns a sequence of parameter
// records; the graph is traversed once per record with the record merged
// over the flow's own params (record fields win). Traversals run in order;
// the first failure stops the rest.
func NewBatchFlow(name string, start Node, steps Steps, opts ...Option) Flow {
	return newFlow(name, start, steps, BatchSequential, opts, "batch_flow", "flow", "node")
}

// NewParallelBatchFlow is NewBatchFlow with all traversals launched
// concurrently under an all-or-nothing join, like NewParallelBatchNode.
func NewParallelBatchFlow(name string, start Node, steps Steps, opts ...Option) Flow {
	return newFlow(name, start, steps, BatchParallel, opts, "parallel_batch_flow", "batch_flow", "flow", "node")
}

// coerceItems turns a prep result into a work-item slice. Any slice or
// array shape is accepted; nil means no items; anything else is malformed.
func coerceItems(v any) ([]any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, true
	case []any:
		return val, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	}
	return nil, false
}

// coerceParamRecords turns a batch flow's prep result into parameter
// records, warning and yielding no records on malformed input.
func coerceParamRecords(prep any, sc *shared.Shared, f Flow) []domain.Params {
	records, ok := toParamRecords(prep)
	if !ok {
		sc.Logger().Warn("batch prep result is not a sequence of parameter records; treating as empty",
			"flow", f.Kinds()[0])
	}
	return records
}

func toParamRecords(v any) ([]domain.Params, bool) {
	switch val := v.(type) {
	case nil:
		return nil, true
	case []domain.Params:
		return val, true
	case []map[string]any:
		out := make([]domain.Params, len(val))
		for i, m := range val {
			out[i] = domain.Params(m)
		}
		return out, true
	}

	items, ok := coerceItems(v)
	if !ok {
		return nil, false
	}
	out := make([]domain.Params, len(items))
	for i, item := range items {
		switch rec := item.(type) {
		case domain.Params:
			out[i] = rec
		case map[string]any:
			out[i] = domain.Params(rec)
		default:
			return nil, false
		}
	}
	return out, true
}
