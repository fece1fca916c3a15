package domain

// Action names a transition out of a node. A node's Post step returns an
// Action; the orchestrator looks it up in the node's successor map to pick
// the next node.
type Action string

// DefaultAction is the unparameterized default edge. An empty Action
// resolves to the same edge, so `return ""` and `return DefaultAction`
// are equivalent in a Post step.
const DefaultAction Action = "default"

// Normalize maps the empty action onto the default edge.
func (a Action) Normalize() Action {
	if a == "" {
		return DefaultAction
	}
	return a
}
