package constants

import "time"

var (
	WebsocketScheme       = "ws"
	WebsocketSecureScheme = "wss"
	HTTPScheme            = "http"
	HTTPSecureScheme      = "https"
)

const (
	// CloseMessageCode is the close code sent when a stream shuts down on
	// purpose: a finished stream, a disabled subscription, or client
	// teardown. Servers treat it as a clean close.
	CloseMessageCode = 1000

	// RequestIDLength is the length of generated request correlation ids.
	RequestIDLength = 16

	// DefaultReconcileTimeout bounds how long an optimistic mutation waits
	// for the stream to confirm it before settling anyway.
	DefaultReconcileTimeout = 5 * time.Second

	// DefaultInitialRetryDelay and DefaultMaxRetryDelay shape the
	// reconnection backoff: min(DefaultMaxRetryDelay, initial*2^attempt).
	DefaultInitialRetryDelay = 1 * time.Second
	DefaultMaxRetryDelay     = 8 * time.Second
)
