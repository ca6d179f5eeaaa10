// Package stream implements the WebSocket patch-stream client: a
// Subscription dials a stream endpoint, decodes the server's envelope
// messages, applies JsonPatch batches to a snapshot store, and keeps the
// connection alive with exponential backoff until the server declares the
// stream finished or the subscription is stopped locally.
//
// A subscription moves through five states: connecting, open, retrying,
// finished and disabled. The last two are terminal. Reconnect delays
// follow the configured Retryer; the default doubles from one second up
// to a cap of eight seconds and retries forever.
//
// Callbacks are bound through Handlers and may be swapped at any time
// with Rebind. They all run on the connection's read goroutine, so
// snapshots and events are observed in the order the server sent them.
package stream
