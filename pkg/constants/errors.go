package constants

import "errors"

// Errors
var (
	ErrTimeout       = errors.New("timeout")
	ErrNoEndpoint    = errors.New("endpoint not set")
	ErrNoMarshaler   = errors.New("marshaler is not set")
	ErrNoUnmarshaler = errors.New("unmarshaler is not set")

	// ErrFinished is returned when an operation is attempted on a
	// subscription whose stream signalled it will send no more updates.
	ErrFinished = errors.New("stream finished")

	// ErrDisabled is returned when an operation is attempted on a
	// subscription that has been torn down.
	ErrDisabled = errors.New("subscription disabled")

	// ErrNoSnapshot is returned when a typed view is requested before the
	// first message arrived.
	ErrNoSnapshot = errors.New("no snapshot yet")

	// ErrNoKey is returned when no key can be derived for an entity:
	// it has neither an id field nor any foreign-key fields.
	ErrNoKey = errors.New("entity has no derivable key")

	// ErrUnknownKey is returned when a mutation targets a key the
	// collection has never seen.
	ErrUnknownKey = errors.New("unknown entity key")

	// ErrSessionInterrupted is reported by a terminal session whose socket
	// closed before the shell sent an exit frame.
	ErrSessionInterrupted = errors.New("terminal session interrupted")
)
