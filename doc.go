/*
Package pflow is a graph-based task execution engine. Units of work (nodes)
are connected by named transitions (actions); a flow walks the graph at
runtime, executing each node's Prep/Exec/Post lifecycle and choosing the
next node by the action the previous one returned.

Nodes are reusable templates: the orchestrator clones a node immediately
before each execution, so per-run state never leaks between runs or between
concurrent fan-outs sharing the same template.

A minimal pipeline:

	greet := pflow.NewNode("greet", pflow.Steps{
		Post: func(ctx context.Context, sc *shared.Shared, params domain.Params, prep, exec any) (domain.Action, error) {
			sc.Set("greeting", "hello")
			return domain.DefaultAction, nil
		},
	})
	shout := pflow.NewNode("shout", pflow.Steps{
		Exec: func(ctx context.Context, params domain.Params, prep any) (any, error) {
			return "HELLO!", nil
		},
	})
	greet.Next(shout)

	f := pflow.NewFlow("pipeline", greet, pflow.Steps{})
	sc := shared.New()
	_, err := f.Run(sc.Context(), sc)

See pkg/shared for the cross-node context, pkg/tracing for non-invasive
execution traces, and pkg/loader for YAML-defined pipelines.
*/
package pflow
