package stream

import "fmt"

// State is the lifecycle state of a Subscription.
type State int

const (
	// StateConnecting means a dial is in flight. This is the initial state.
	StateConnecting State = iota

	// StateOpen means the socket is connected and messages are flowing.
	StateOpen

	// StateRetrying means the connection was lost and a reconnect attempt
	// is scheduled.
	StateRetrying

	// StateFinished means the server declared the stream complete.
	// Terminal: socket closures observed afterwards must not schedule
	// another reconnect.
	StateFinished

	// StateDisabled means the subscription was stopped locally, either by
	// Unsubscribe or by context cancellation. Terminal.
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateRetrying:
		return "retrying"
	case StateFinished:
		return "finished"
	case StateDisabled:
		return "disabled"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are possible from s.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateDisabled
}

// validateTransitionTo returns an error if the transition from s to
// newState is not allowed.
func (s State) validateTransitionTo(newState State) error {
	switch s {
	case StateConnecting:
		switch newState {
		case StateOpen, StateRetrying, StateFinished, StateDisabled:
			return nil
		}
	case StateOpen:
		switch newState {
		case StateRetrying, StateFinished, StateDisabled:
			return nil
		}
	case StateRetrying:
		switch newState {
		case StateConnecting, StateFinished, StateDisabled:
			return nil
		}
	case StateFinished, StateDisabled:
		// Terminal states allow no transitions.
	}
	return fmt.Errorf("invalid state transition from %v to %v", s, newState)
}
