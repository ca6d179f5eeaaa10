package stream

// Handlers is the callback set of a Subscription. All callbacks run on the
// connection's read goroutine, in message order, so they must not block;
// hand heavy work off to another goroutine. A nil field is skipped.
//
// Swap the whole set at any time with Subscription.Rebind.
type Handlers struct {
	// OnSnapshot fires after every applied patch batch with the new
	// document and its version. The document is shared with later reads;
	// treat it as read-only.
	OnSnapshot func(doc any, version uint64)

	// OnEvents fires with the entity-level events derived from every
	// applied patch batch.
	OnEvents func(events []Event)

	// OnStdout and OnStderr receive raw log lines on process log streams.
	OnStdout func(line string)
	OnStderr func(line string)

	// OnSessionID receives the session identifier announced by the server.
	OnSessionID func(id string)

	// OnStateChange observes lifecycle transitions.
	OnStateChange func(s State)

	// OnError observes non-fatal stream errors: messages that failed to
	// decode and batches the snapshot store rejected. The subscription
	// keeps running after these.
	OnError func(err error)
}
