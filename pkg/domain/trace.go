package domain

import "time"

// Trace event names, one start/result pair per lifecycle method. They are
// emitted on the shared context's event bus by the tracing package.
const (
	TracePrepStart         = "trace:prep:start"
	TracePrepResult        = "trace:prep:result"
	TraceExecStart         = "trace:exec:start"
	TraceExecResult        = "trace:exec:result"
	TracePostStart         = "trace:post:start"
	TracePostResult        = "trace:post:result"
	TraceRunStart          = "trace:run:start"
	TraceRunResult         = "trace:run:result"
	TraceOrchestrateStart  = "trace:orchestrate:start"
	TraceOrchestrateResult = "trace:orchestrate:result"
)

// TraceEventNames lists every defined trace event name.
func TraceEventNames() []string {
	return []string{
		TracePrepStart, TracePrepResult,
		TraceExecStart, TraceExecResult,
		TracePostStart, TracePostResult,
		TraceRunStart, TraceRunResult,
		TraceOrchestrateStart, TraceOrchestrateResult,
	}
}

// TraceEvent is an immutable snapshot taken around a lifecycle phase.
// Every field is plain serializable data; values that cannot be represented
// are replaced by a textual placeholder before the event is built.
type TraceEvent struct {
	// Name is one of the Trace* constants.
	Name string `json:"event"`

	// NodeKinds is the node's kind ancestry, most derived first
	// (e.g. ["resize", "parallel_batch", "batch", "node"]).
	NodeKinds []string `json:"node_kinds"`

	NodeID string `json:"node_id"`

	// Params is a sanitized projection of the node's parameter record.
	Params map[string]any `json:"params"`

	SharedID string `json:"shared_context_id"`

	// SharedData is a sanitized deep copy of the shared data payload at
	// the moment the event was taken.
	SharedData map[string]any `json:"shared_data"`

	// Payload carries the phase argument or result, when there is one.
	Payload any `json:"payload,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}
