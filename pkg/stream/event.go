package stream

import "github.com/taskboard/taskboard.go/pkg/patch"

// EventOp classifies the effect a patch operation had on one entity of a
// streamed collection.
type EventOp int

const (
	// OpReset means the whole collection was replaced, for example by the
	// initial snapshot batch.
	OpReset EventOp = iota

	// OpInsert means an entity appeared under the collection root.
	OpInsert

	// OpUpdate means an entity, or a field inside it, changed.
	OpUpdate

	// OpDelete means an entity was removed from the collection.
	OpDelete
)

func (o EventOp) String() string {
	switch o {
	case OpReset:
		return "reset"
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is an entity-level change derived from an applied patch operation.
type Event struct {
	Op EventOp

	// Collection is the first path token, e.g. "tasks" for /tasks/<id>.
	// Empty when the operation targeted the document root.
	Collection string

	// Key is the entity key under the collection root. Empty for OpReset.
	Key string
}

// DeriveEvents maps an applied batch to entity-level events, one per
// operation, in batch order.
//
//   - /<collection> (or the document root): OpReset
//   - /<collection>/<key>: add is OpInsert, replace is OpUpdate, remove
//     is OpDelete
//   - anything deeper touches a field of <key>, so it is OpUpdate
//
// Only call this with a batch the snapshot store accepted; operations
// whose paths do not parse are skipped.
func DeriveEvents(batch patch.Batch) []Event {
	events := make([]Event, 0, len(batch))
	for _, op := range batch {
		tokens, err := patch.ParsePointer(op.Path)
		if err != nil {
			continue
		}

		switch {
		case len(tokens) == 0:
			events = append(events, Event{Op: OpReset})
		case len(tokens) == 1:
			events = append(events, Event{Op: OpReset, Collection: tokens[0]})
		case len(tokens) == 2:
			ev := Event{Collection: tokens[0], Key: tokens[1]}
			switch op.Op {
			case patch.OpAdd:
				ev.Op = OpInsert
			case patch.OpReplace:
				ev.Op = OpUpdate
			case patch.OpRemove:
				ev.Op = OpDelete
			default:
				continue
			}
			events = append(events, ev)
		default:
			events = append(events, Event{Op: OpUpdate, Collection: tokens[0], Key: tokens[1]})
		}
	}
	return events
}
