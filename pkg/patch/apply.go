package patch

import (
	"errors"
	"fmt"
)

// Apply deep-clones doc, applies every operation of batch in order to the
// clone, and returns the clone. On any failure the original doc is returned
// unchanged alongside the error; the partially patched clone is discarded.
// The first failing operation aborts the rest of the batch.
func Apply(doc any, batch Batch) (any, error) {
	next := Clone(doc)
	for i, op := range batch {
		var err error
		next, err = applyOp(next, op)
		if err != nil {
			return doc, fmt.Errorf("op %d (%s %s): %w", i, op.Op, op.Path, err)
		}
	}
	return next, nil
}

func applyOp(doc any, op Op) (any, error) {
	switch op.Op {
	case OpAdd, OpReplace, OpRemove:
	default:
		return nil, fmt.Errorf("unsupported op %q", op.Op)
	}

	tokens, err := ParsePointer(op.Path)
	if err != nil {
		return nil, err
	}

	if len(tokens) == 0 {
		if op.Op == OpRemove {
			return nil, errors.New("cannot remove the document root")
		}
		return Clone(op.Value), nil
	}

	return applyAt(doc, tokens, op)
}

// applyAt applies op at the pointer tokens relative to node and returns the
// possibly replaced node. Values written into the document are cloned so a
// snapshot never aliases the decoded batch.
func applyAt(node any, tokens []string, op Op) (any, error) {
	tok := tokens[0]
	switch n := node.(type) {
	case map[string]any:
		if len(tokens) == 1 {
			return applyToMap(n, tok, op)
		}
		child, ok := n[tok]
		if !ok {
			return nil, fmt.Errorf("path segment %q not found", tok)
		}
		next, err := applyAt(child, tokens[1:], op)
		if err != nil {
			return nil, err
		}
		n[tok] = next
		return n, nil
	case []any:
		if len(tokens) == 1 {
			return applyToSlice(n, tok, op)
		}
		idx, err := arrayIndex(tok, len(n), false)
		if err != nil {
			return nil, err
		}
		next, err := applyAt(n[idx], tokens[1:], op)
		if err != nil {
			return nil, err
		}
		n[idx] = next
		return n, nil
	default:
		return nil, fmt.Errorf("cannot descend into %T at %q", node, tok)
	}
}

func applyToMap(m map[string]any, key string, op Op) (any, error) {
	switch op.Op {
	case OpAdd:
		m[key] = Clone(op.Value)
	case OpReplace:
		if _, ok := m[key]; !ok {
			return nil, fmt.Errorf("replace target %q does not exist", key)
		}
		m[key] = Clone(op.Value)
	case OpRemove:
		if _, ok := m[key]; !ok {
			return nil, fmt.Errorf("remove target %q does not exist", key)
		}
		delete(m, key)
	}
	return m, nil
}

func applyToSlice(s []any, tok string, op Op) (any, error) {
	switch op.Op {
	case OpAdd:
		idx, err := arrayIndex(tok, len(s), true)
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(s)+1)
		out = append(out, s[:idx]...)
		out = append(out, Clone(op.Value))
		out = append(out, s[idx:]...)
		return out, nil
	case OpReplace:
		idx, err := arrayIndex(tok, len(s), false)
		if err != nil {
			return nil, err
		}
		s[idx] = Clone(op.Value)
		return s, nil
	default: // OpRemove, validated by applyOp
		idx, err := arrayIndex(tok, len(s), false)
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(s)-1)
		out = append(out, s[:idx]...)
		out = append(out, s[idx+1:]...)
		return out, nil
	}
}
