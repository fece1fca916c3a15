package pflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/lenML/pflow/pkg/domain"
	"github.com/lenML/pflow/pkg/shared"
	"golang.org/x/sync/errgroup"
)

// BatchMode describes how a flow repeats graph traversals.
type BatchMode int

const (
	// BatchOff runs a single traversal per Run.
	BatchOff BatchMode = iota
	// BatchSequential runs one traversal per parameter record, in order.
	BatchSequential
	// BatchParallel launches all traversals concurrently and joins.
	BatchParallel
)

// Flow is a node whose behavior is orchestrating a graph of other nodes.
// Its Prep and Post run once around the traversal(s); invoking Exec
// directly is an error.
type Flow interface {
	Node

	// Start returns the traversal's entry template.
	Start() Node

	// Batching reports how Run repeats traversals.
	Batching() BatchMode

	// Orchestrate runs one full graph traversal with the given params.
	Orchestrate(ctx context.Context, sc *shared.Shared, params domain.Params) error
}

type flow struct {
	baseNode
	start Node
	mode  BatchMode
}

// NewFlow creates a flow over the graph reachable from start. The steps'
// Prep and Post wrap the whole traversal; Exec is never called.
func NewFlow(name string, start Node, steps Steps, opts ...Option) Flow {
	return newFlow(name, start, steps, BatchOff, opts, "flow", "node")
}

func newFlow(name string, start Node, steps Steps, mode BatchMode, opts []Option, ancestry ...string) *flow {
	f := &flow{
		baseNode: *newBase(name, ancestry...),
		start:    start,
		mode:     mode,
	}
	f.steps = steps
	for _, opt := range opts {
		opt(&f.baseNode)
	}
	return f
}

func (f *flow) Start() Node         { return f.start }
func (f *flow) Batching() BatchMode { return f.mode }

// Exec reports an error: a flow's behavior lives in its orchestration.
func (f *flow) Exec(ctx context.Context, prep any) (any, error) {
	return nil, domain.ErrFlowExec
}

func (f *flow) Orchestrate(ctx context.Context, sc *shared.Shared, params domain.Params) error {
	return Traverse(ctx, sc, f.start, params)
}

func (f *flow) Run(ctx context.Context, sc *shared.Shared) (domain.Action, error) {
	warnStandalone(f, sc)
	return RunFlowLifecycle(ctx, sc, f)
}

func (f *flow) Clone() Node {
	cp := &flow{
		baseNode: f.cloneBase(),
		start:    f.start,
		mode:     f.mode,
	}
	return cp
}

// RunFlowLifecycle runs f's composite lifecycle: Prep once, one traversal
// per parameter record (or a single traversal when batching is off), then
// Post once. Exported for the same reason as RunLifecycle.
func RunFlowLifecycle(ctx context.Context, sc *shared.Shared, f Flow) (domain.Action, error) {
	prep, err := f.Prep(ctx, sc)
	if err != nil {
		return "", fmt.Errorf("flow %s: prep: %w", f.Kinds()[0], err)
	}

	switch f.Batching() {
	case BatchOff:
		if err := f.Orchestrate(ctx, sc, f.Params()); err != nil {
			return "", err
		}
		return f.Post(ctx, sc, prep, nil)

	case BatchSequential:
		records := coerceParamRecords(prep, sc, f)
		for _, rec := range records {
			if err := f.Orchestrate(ctx, sc, f.Params().Merge(rec)); err != nil {
				return "", err
			}
		}
		return f.Post(ctx, sc, paramsToAny(records), nil)

	case BatchParallel:
		records := coerceParamRecords(prep, sc, f)
		g, gctx := errgroup.WithContext(ctx)
		for _, rec := range records {
			merged := f.Params().Merge(rec)
			g.Go(func() error {
				return f.Orchestrate(gctx, sc, merged)
			})
		}
		if err := g.Wait(); err != nil {
			return "", err
		}
		return f.Post(ctx, sc, paramsToAny(records), nil)

	default:
		return "", fmt.Errorf("flow %s: unknown batch mode %d", f.Kinds()[0], f.Batching())
	}
}

// Traverse walks the graph from start: clone the current template, hand it
// the caller's params, run it, then resolve the returned action against the
// clone's successor map. An unmatched action terminates the traversal and
// warns only when other edges exist.
func Traverse(ctx context.Context, sc *shared.Shared, start Node, params domain.Params) error {
	if start == nil {
		return errors.New("flow has no start node")
	}

	cur := start.Clone()
	for {
		cur.SetParams(params.Clone())
		action, err := cur.Run(ctx, sc)
		if err != nil {
			return err
		}

		next := successorFor(sc, cur, action)
		if next == nil {
			return nil
		}
		cur = next.Clone()
	}
}

func successorFor(sc *shared.Shared, n Node, action domain.Action) Node {
	next, ok := n.Successor(action)
	if !ok && len(n.Successors()) > 0 {
		sc.Logger().Warn("flow ends: action has no successor",
			"node", n.Kinds()[0],
			"action", string(action.Normalize()),
			"edges", edgeNames(n))
	}
	return next
}

func edgeNames(n Node) []string {
	names := make([]string, 0, len(n.Successors()))
	for a := range n.Successors() {
		names = append(names, string(a))
	}
	return names
}

func paramsToAny(records []domain.Params) []any {
	out := make([]any, len(records))
	for i, r := range records {
		out[i] = r
	}
	return out
}
