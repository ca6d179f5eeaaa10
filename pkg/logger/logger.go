// Package logger defines the logging contract shared by every component of
// the SDK. Components take a Logger at construction time and never log
// through package-level state.
//
// The default implementation wraps log/slog; NewBuild provides a
// zerolog-backed builder for file destinations, used by the CLI.
package logger

// Logger is the minimal structured-logging interface the SDK depends on.
// args are alternating key/value pairs, as in log/slog.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}
