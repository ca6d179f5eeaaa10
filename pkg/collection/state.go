package collection

import "fmt"

// MutationState tracks one mutation through the ledger.
//
// The happy path is optimistic -> pending_remote -> reconciling ->
// settled; a failed remote call branches to rolled_back. Settled and
// rolled back entries leave the ledger immediately.
type MutationState int

const (
	// StateOptimistic means the change is applied locally only.
	StateOptimistic MutationState = iota

	// StatePendingRemote means the REST call is in flight.
	StatePendingRemote

	// StateReconciling means the remote accepted the change and the
	// ledger is waiting for the stream to echo it back.
	StateReconciling

	// StateSettled means the mutation is complete, either confirmed by a
	// stream event or silently settled after the reconcile timeout.
	StateSettled

	// StateRolledBack means the remote rejected the change and the local
	// state was restored.
	StateRolledBack
)

func (s MutationState) String() string {
	switch s {
	case StateOptimistic:
		return "optimistic"
	case StatePendingRemote:
		return "pending_remote"
	case StateReconciling:
		return "reconciling"
	case StateSettled:
		return "settled"
	case StateRolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}
