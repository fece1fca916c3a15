package tracing

import (
	"context"
	"time"

	"github.com/lenML/pflow"
	"github.com/lenML/pflow/pkg/domain"
	"github.com/lenML/pflow/pkg/shared"
)

// Instrument wraps the graph reachable from n (successor maps plus, for
// flows, the start-reachable subgraph) in trace-emitting decorators. The
// decorators delegate to the original nodes and never alter their results.
// Already-instrumented nodes are returned as-is, so instrumenting
// overlapping graphs never double-emits.
func Instrument(n pflow.Node) pflow.Node {
	w := &walker{seen: map[string]pflow.Node{}}
	return w.wrap(n)
}

type walker struct {
	// seen maps inner node ids to their wrappers, so shared successors
	// get a single wrapper and cycles terminate.
	seen map[string]pflow.Node
}

func (w *walker) wrap(n pflow.Node) pflow.Node {
	if n == nil {
		return nil
	}
	if _, ok := n.(marked); ok {
		return n
	}
	if existing, ok := w.seen[n.ID()]; ok {
		return existing
	}

	if f, ok := n.(pflow.Flow); ok {
		t := &tracedFlow{tracedNode: tracedNode{inner: n}}
		w.seen[n.ID()] = t
		t.start = w.wrap(f.Start())
		t.succ = w.wrapSuccessors(n)
		return t
	}

	t := &tracedNode{inner: n}
	w.seen[n.ID()] = t
	t.succ = w.wrapSuccessors(n)
	return t
}

func (w *walker) wrapSuccessors(n pflow.Node) map[domain.Action]pflow.Node {
	succ := make(map[domain.Action]pflow.Node, len(n.Successors()))
	for action, next := range n.Successors() {
		succ[action] = w.wrap(next)
	}
	return succ
}

// marked is the hidden idempotency marker carried by wrapped nodes.
type marked interface {
	tracedInner() pflow.Node
}

type tracedNode struct {
	inner    pflow.Node
	succ     map[domain.Action]pflow.Node
	viaClone bool

	// sc is the shared context of the current run, captured at Run start
	// so Exec events can carry it. Clones are single-run instances, so
	// this never races across traversals.
	sc *shared.Shared
}

func (t *tracedNode) tracedInner() pflow.Node { return t.inner }

func (t *tracedNode) ID() string            { return t.inner.ID() }
func (t *tracedNode) Kinds() []string       { return t.inner.Kinds() }
func (t *tracedNode) Params() domain.Params { return t.inner.Params() }

func (t *tracedNode) SetParams(p domain.Params) { t.inner.SetParams(p) }

func (t *tracedNode) Successors() map[domain.Action]pflow.Node { return t.succ }

func (t *tracedNode) On(action domain.Action, next pflow.Node) pflow.Node {
	wrapped := Instrument(next)
	t.inner.On(action, next)
	t.succ[action.Normalize()] = wrapped
	return wrapped
}

func (t *tracedNode) Next(next pflow.Node) pflow.Node {
	return t.On(domain.DefaultAction, next)
}

func (t *tracedNode) Successor(action domain.Action) (pflow.Node, bool) {
	next, ok := t.succ[action.Normalize()]
	return next, ok
}

func (t *tracedNode) Retry() domain.RetryPolicy { return t.inner.Retry() }

func (t *tracedNode) Prep(ctx context.Context, sc *shared.Shared) (any, error) {
	t.emit(ctx, sc, domain.TracePrepStart, nil)
	out, err := t.inner.Prep(ctx, sc)
	t.emit(ctx, sc, domain.TracePrepResult, resultPayload(out, err))
	return out, err
}

func (t *tracedNode) Exec(ctx context.Context, prep any) (any, error) {
	t.emit(ctx, t.sc, domain.TraceExecStart, nil)
	out, err := t.inner.Exec(ctx, prep)
	t.emit(ctx, t.sc, domain.TraceExecResult, resultPayload(out, err))
	return out, err
}

func (t *tracedNode) ExecFallback(ctx context.Context, prep any, execErr error) (any, error) {
	return t.inner.ExecFallback(ctx, prep, execErr)
}

func (t *tracedNode) Post(ctx context.Context, sc *shared.Shared, prep, exec any) (domain.Action, error) {
	t.emit(ctx, sc, domain.TracePostStart, nil)
	action, err := t.inner.Post(ctx, sc, prep, exec)
	t.emit(ctx, sc, domain.TracePostResult, resultPayload(string(action), err))
	return action, err
}

func (t *tracedNode) Run(ctx context.Context, sc *shared.Shared) (domain.Action, error) {
	t.sc = sc
	t.warnStandalone(sc)
	t.emit(ctx, sc, domain.TraceRunStart, nil)
	action, err := pflow.RunLifecycle(ctx, sc, t)
	t.emit(ctx, sc, domain.TraceRunResult, resultPayload(string(action), err))
	return action, err
}

func (t *tracedNode) Clone() pflow.Node {
	return &tracedNode{
		inner:    t.inner.Clone(),
		succ:     cloneSuccessors(t.succ),
		viaClone: true,
	}
}

func (t *tracedNode) isClone() bool { return t.viaClone }

func (t *tracedNode) warnStandalone(sc *shared.Shared) {
	if !t.viaClone && len(t.succ) > 0 {
		sc.Logger().Warn("node has successors; standalone run will not follow them",
			"node", t.Kinds()[0], "id", t.ID())
	}
}

func (t *tracedNode) emit(ctx context.Context, sc *shared.Shared, name string, payload any) {
	if sc == nil {
		return
	}
	sc.Bus().Emit(ctx, name, domain.TraceEvent{
		Name:       name,
		NodeKinds:  t.Kinds(),
		NodeID:     t.ID(),
		Params:     SanitizeMap(t.Params()),
		SharedID:   sc.ID(),
		SharedData: SanitizeMap(sc.Snapshot()),
		Payload:    Sanitize(payload),
		Timestamp:  time.Now(),
	})
}

type tracedFlow struct {
	tracedNode
	start pflow.Node
}

func (t *tracedFlow) Start() pflow.Node { return t.start }

func (t *tracedFlow) Batching() pflow.BatchMode {
	return t.inner.(pflow.Flow).Batching()
}

func (t *tracedFlow) Orchestrate(ctx context.Context, sc *shared.Shared, params domain.Params) error {
	t.emit(ctx, sc, domain.TraceOrchestrateStart, nil)
	err := pflow.Traverse(ctx, sc, t.start, params)
	t.emit(ctx, sc, domain.TraceOrchestrateResult, resultPayload(nil, err))
	return err
}

func (t *tracedFlow) Run(ctx context.Context, sc *shared.Shared) (domain.Action, error) {
	t.sc = sc
	t.warnStandalone(sc)
	t.emit(ctx, sc, domain.TraceRunStart, nil)
	action, err := pflow.RunFlowLifecycle(ctx, sc, t)
	t.emit(ctx, sc, domain.TraceRunResult, resultPayload(string(action), err))
	return action, err
}

func (t *tracedFlow) Clone() pflow.Node {
	return &tracedFlow{
		tracedNode: tracedNode{
			inner:    t.inner.Clone(),
			succ:     cloneSuccessors(t.succ),
			viaClone: true,
		},
		start: t.start,
	}
}

func cloneSuccessors(succ map[domain.Action]pflow.Node) map[domain.Action]pflow.Node {
	out := make(map[domain.Action]pflow.Node, len(succ))
	for a, n := range succ {
		out[a] = n
	}
	return out
}

func resultPayload(out any, err error) any {
	if err != nil {
		return err
	}
	return out
}
