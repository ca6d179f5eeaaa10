// Package patch implements the subset of RFC 6902 JSON Patch that board
// streams carry: add, replace and remove, addressed by RFC 6901 JSON
// Pointers, applied in order against the generic JSON object model
// (map[string]any, []any, scalars).
//
// Apply never mutates its input document. It deep-clones first and applies
// to the clone, so a failed batch leaves the caller's document untouched.
package patch

import "reflect"

// Supported operation names.
const (
	OpAdd     = "add"
	OpReplace = "replace"
	OpRemove  = "remove"
)

// Op is a single patch operation. Value is ignored for remove.
type Op struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// Batch is an ordered sequence of operations applied atomically.
type Batch []Op

// Compact returns the batch with unsupported operations dropped and
// consecutive duplicates collapsed. A batch that compacts to zero length
// must be treated as a no-op by callers: applying it is not an error, but
// must not produce a new snapshot either.
func (b Batch) Compact() Batch {
	out := make(Batch, 0, len(b))
	for _, op := range b {
		switch op.Op {
		case OpAdd, OpReplace, OpRemove:
		default:
			continue
		}
		if n := len(out); n > 0 && sameOp(out[n-1], op) {
			continue
		}
		out = append(out, op)
	}
	return out
}

func sameOp(a, b Op) bool {
	return a.Op == b.Op && a.Path == b.Path && reflect.DeepEqual(a.Value, b.Value)
}
