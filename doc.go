// The [taskboard] package is a Go client SDK for patch-streamed board
// servers: REST for mutations, JSON Patch over WebSocket for reads.
//
// # Connecting
//
// Provide an http or https base URL to [New]; stream subscriptions opened
// through the returned [Client] derive their ws or wss endpoints from it,
// so mutations and mirrored state always target the same server. An empty
// endpoint falls back to the TASKBOARD_ENDPOINT environment variable.
//
// # Live collections
//
// [Client.SubscribeTasks] and [Client.SubscribeNotes] return typed views
// that the server keeps current by streaming patch batches. Mutations
// through those views are optimistic: they apply locally first, then run
// the REST call, and finally reconcile against the stream's echo. A failed
// REST call rolls the local change back, so the view converges on server
// truth either way. See [github.com/taskboard/taskboard.go/pkg/collection]
// for the reconciliation rules.
//
// For streams without a typed wrapper, build a
// [github.com/taskboard/taskboard.go/pkg/stream.Subscription] directly;
// the subscription machinery is the same one the typed views use.
//
// # Process logs and terminals
//
// [Client.StreamProcessLogs] tails an execution process into a caller-owned
// [github.com/taskboard/taskboard.go/pkg/logcache.Cache].
// [Client.OpenTerminal] attaches to an interactive terminal session;
// unlike other streams, a terminal never reconnects.
//
// # Authentication
//
// Pass [WithToken] for a fixed bearer token, or [WithTokenSource] with
// [NewRefreshTokenSource] when tokens expire; refreshes collapse into a
// single flight no matter how many requests need one.
package taskboard
