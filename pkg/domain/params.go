package domain

// Params is the per-node parameter record. The shape is caller-defined;
// the engine only copies and merges it.
type Params map[string]any

// Clone returns a shallow copy. Nested reference values are shared.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns a new record with other's fields layered over p.
// Fields from other win on conflict.
func (p Params) Merge(other Params) Params {
	out := p.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}
