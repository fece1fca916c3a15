package pflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lenML/pflow/pkg/domain"
	"github.com/lenML/pflow/pkg/shared"
)

// PrepFunc reads the shared context and returns data for Exec. It receives
// the node's parameter record as set by the orchestrator for this run.
type PrepFunc func(ctx context.Context, sc *shared.Shared, params domain.Params) (any, error)

// ExecFunc is the unit's main effect. It deliberately has no shared context
// access: everything Exec needs must be captured by Prep or carried in the
// parameter record, which keeps retries deterministic over the same inputs.
type ExecFunc func(ctx context.Context, params domain.Params, prep any) (any, error)

// FallbackFunc handles the last attempt's error. Returning a result
// recovers the node; returning an error fails the run.
type FallbackFunc func(ctx context.Context, prep any, execErr error) (any, error)

// PostFunc writes results into the shared context and selects the outgoing
// action. An empty action selects the default edge.
type PostFunc func(ctx context.Context, sc *shared.Shared, params domain.Params, prep, exec any) (domain.Action, error)

// Steps groups a node's lifecycle functions. Every field is optional:
// missing Prep/Exec/Post are no-ops, a missing Fallback re-raises.
type Steps struct {
	Prep     PrepFunc
	Exec     ExecFunc
	Fallback FallbackFunc
	Post     PostFunc
}

// Node is a unit of work in the graph. Implementations are produced by the
// constructors in this package; external packages extend behavior through
// Steps or by decorating an existing Node (see pkg/tracing).
type Node interface {
	// ID is the node's unique identity, regenerated on Clone.
	ID() string

	// Kinds is the node's kind ancestry, most derived first.
	Kinds() []string

	Params() domain.Params
	SetParams(domain.Params)

	// Successors returns the action-keyed successor map. Routing only
	// reads it; it is never mutated during a run.
	Successors() map[domain.Action]Node

	// On registers next under action, overwriting (with a warning) any
	// existing edge. It returns next so registrations chain.
	On(action domain.Action, next Node) Node

	// Next registers next under the default edge and returns it.
	Next(next Node) Node

	// Successor resolves action against the successor map, normalizing
	// the empty action onto the default edge.
	Successor(action domain.Action) (Node, bool)

	Retry() domain.RetryPolicy

	Prep(ctx context.Context, sc *shared.Shared) (any, error)
	Exec(ctx context.Context, prep any) (any, error)
	ExecFallback(ctx context.Context, prep any, execErr error) (any, error)
	Post(ctx context.Context, sc *shared.Shared, prep, exec any) (domain.Action, error)

	// Run executes the node's full lifecycle and returns the outgoing
	// action. Running a node with successors outside a flow warns, since
	// a standalone run never follows edges.
	Run(ctx context.Context, sc *shared.Shared) (domain.Action, error)

	// Clone produces a fresh run instance: new id, copied params, a new
	// successor map with the same entries. Steps and successor nodes are
	// shared references.
	Clone() Node
}

// Option configures a node at construction time.
type Option func(*baseNode)

// WithParams sets the node's initial parameter record.
func WithParams(p domain.Params) Option {
	return func(n *baseNode) {
		n.params = p.Clone()
	}
}

// WithMaxAttempts sets the total number of exec attempts (minimum 1).
func WithMaxAttempts(attempts int) Option {
	return func(n *baseNode) {
		n.retry.MaxAttempts = attempts
	}
}

// WithWait sets the pause between failed exec attempts.
func WithWait(wait time.Duration) Option {
	return func(n *baseNode) {
		n.retry.Wait = wait
	}
}

// WithNodeLogger sets the logger used for graph-wiring warnings emitted
// before any shared context exists. Defaults to slog.Default().
func WithNodeLogger(l *slog.Logger) Option {
	return func(n *baseNode) {
		n.log = l
	}
}

type baseNode struct {
	id     string
	kinds  []string
	params domain.Params
	succ   map[domain.Action]Node
	steps  Steps
	retry  domain.RetryPolicy
	log    *slog.Logger

	// viaClone marks run instances produced by Clone; the standalone-run
	// warning only applies to templates run directly.
	viaClone bool
}

// NewNode creates a node template from the given lifecycle steps.
func NewNode(name string, steps Steps, opts ...Option) Node {
	n := newBase(name, "node")
	n.steps = steps
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func newBase(name string, ancestry ...string) *baseNode {
	kinds := ancestry
	if name != "" {
		kinds = append([]string{name}, ancestry...)
	}
	return &baseNode{
		id:     uuid.NewString(),
		kinds:  kinds,
		params: domain.Params{},
		succ:   map[domain.Action]Node{},
		retry:  domain.RetryPolicy{MaxAttempts: 1},
		log:    slog.Default(),
	}
}

func (n *baseNode) ID() string            { return n.id }
func (n *baseNode) Kinds() []string       { return n.kinds }
func (n *baseNode) Params() domain.Params { return n.params }

func (n *baseNode) SetParams(p domain.Params) { n.params = p }

func (n *baseNode) Successors() map[domain.Action]Node { return n.succ }

func (n *baseNode) On(action domain.Action, next Node) Node {
	action = action.Normalize()
	if _, exists := n.succ[action]; exists {
		n.log.Warn("overwriting successor", "action", string(action), "node", n.kindLabel())
	}
	n.succ[action] = next
	return next
}

func (n *baseNode) Next(next Node) Node {
	return n.On(domain.DefaultAction, next)
}

func (n *baseNode) Successor(action domain.Action) (Node, bool) {
	next, ok := n.succ[action.Normalize()]
	return next, ok
}

func (n *baseNode) Retry() domain.RetryPolicy { return n.retry }

func (n *baseNode) Prep(ctx context.Context, sc *shared.Shared) (any, error) {
	if n.steps.Prep == nil {
		return nil, nil
	}
	return n.steps.Prep(ctx, sc, n.params)
}

func (n *baseNode) Exec(ctx context.Context, prep any) (any, error) {
	if n.steps.Exec == nil {
		return nil, nil
	}
	return n.steps.Exec(ctx, n.params, prep)
}

func (n *baseNode) ExecFallback(ctx context.Context, prep any, execErr error) (any, error) {
	if n.steps.Fallback == nil {
		return nil, execErr
	}
	return n.steps.Fallback(ctx, prep, execErr)
}

func (n *baseNode) Post(ctx context.Context, sc *shared.Shared, prep, exec any) (domain.Action, error) {
	if n.steps.Post == nil {
		return "", nil
	}
	return n.steps.Post(ctx, sc, n.params, prep, exec)
}

func (n *baseNode) Run(ctx context.Context, sc *shared.Shared) (domain.Action, error) {
	warnStandalone(n, sc)
	return RunLifecycle(ctx, sc, n)
}

func (n *baseNode) Clone() Node {
	cp := n.cloneBase()
	return &cp
}

func (n *baseNode) cloneBase() baseNode {
	cp := *n
	cp.id = uuid.NewString()
	cp.params = n.params.Clone()
	cp.succ = make(map[domain.Action]Node, len(n.succ))
	for a, s := range n.succ {
		cp.succ[a] = s
	}
	cp.viaClone = true
	return cp
}

func (n *baseNode) kindLabel() string {
	return n.kinds[0]
}

func warnStandalone(n Node, sc *shared.Shared) {
	if b, ok := n.(interface{ isClone() bool }); ok && b.isClone() {
		return
	}
	if len(n.Successors()) > 0 {
		sc.Logger().Warn("node has successors; standalone run will not follow them",
			"node", n.Kinds()[0], "id", n.ID())
	}
}

func (n *baseNode) isClone() bool { return n.viaClone }

// RunLifecycle executes n's full lifecycle against sc: Prep, Exec under the
// node's retry policy, then Post. It is the building block behind every
// non-flow Run implementation, exported so decorators can reuse it while
// substituting their own phase methods.
func RunLifecycle(ctx context.Context, sc *shared.Shared, n Node) (domain.Action, error) {
	prep, err := n.Prep(ctx, sc)
	if err != nil {
		return "", fmt.Errorf("node %s: prep: %w", n.Kinds()[0], err)
	}

	exec, err := execWithRetry(ctx, n, prep)
	if err != nil {
		return "", err
	}

	return n.Post(ctx, sc, prep, exec)
}

// execWithRetry calls n.Exec up to the policy's attempt budget, sleeping
// between failures. The last error is handed to ExecFallback exactly once.
func execWithRetry(ctx context.Context, n Node, prep any) (any, error) {
	policy := n.Retry().Normalize()

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 && policy.Wait > 0 {
			if err := sleep(ctx, policy.Wait); err != nil {
				return nil, err
			}
		}
		out, err := n.Exec(ctx, prep)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}

	return n.ExecFallback(ctx, prep, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
