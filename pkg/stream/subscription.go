package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/taskboard/taskboard.go/pkg/constants"
	"github.com/taskboard/taskboard.go/pkg/logger"
	"github.com/taskboard/taskboard.go/pkg/patch"
	"github.com/taskboard/taskboard.go/pkg/snapshot"
)

// Subscription is a reconnecting patch-stream client. It dials the stream
// endpoint, applies every JsonPatch message to its snapshot store, and
// dials again with backoff whenever the socket drops, until the server
// declares the stream finished or the subscription is stopped locally.
//
// The zero value is not usable; build one with NewSubscription and start
// it with Connect.
type Subscription struct {
	config *Config

	store    *snapshot.Store
	handlers atomic.Pointer[Handlers]
	logger   logger.Logger
	retryer  Retryer

	state   State
	stateMu sync.Mutex
	started bool
	cancel  context.CancelFunc

	// attempt counts consecutive failed connection epochs. Owned by the
	// run goroutine.
	attempt int

	conn   *WebSocketConnection
	connMu sync.Mutex

	lastErr error
	errMu   sync.Mutex

	doneCh chan int
}

func NewSubscription(config *Config) (*Subscription, error) {
	if config == nil {
		return nil, errors.New("stream: config must not be nil")
	}
	if config.Unmarshaler == nil {
		return nil, constants.ErrNoUnmarshaler
	}
	switch config.URL.Scheme {
	case constants.WebsocketScheme, constants.WebsocketSecureScheme:
	default:
		return nil, fmt.Errorf("stream: endpoint scheme must be %q or %q, got %q",
			constants.WebsocketScheme, constants.WebsocketSecureScheme, config.URL.Scheme)
	}

	lg := config.Logger
	if lg == nil {
		lg = logger.New(slog.NewTextHandler(os.Stdout, nil))
	}
	retryer := config.Retryer
	if retryer == nil {
		retryer = NewExponentialBackoffRetryer()
	}

	s := &Subscription{
		config:  config,
		store:   snapshot.NewStore(config.Factory),
		logger:  lg,
		retryer: retryer,
		state:   StateConnecting,
		doneCh:  make(chan int, 1),
	}
	s.handlers.Store(&Handlers{})
	return s, nil
}

// Connect starts the connection loop and returns immediately; the first
// dial happens on the loop goroutine so that initial failures go through
// the same retry schedule as later ones. Bind handlers before calling
// Connect to observe every message, including the initial snapshot.
//
// The context governs the subscription's whole lifetime: canceling it
// disables the subscription the same way Unsubscribe does.
func (s *Subscription) Connect(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	s.stateMu.Lock()
	if s.started {
		s.stateMu.Unlock()
		cancel()
		return errors.New("stream: subscription already started")
	}
	s.started = true
	s.cancel = cancel
	s.stateMu.Unlock()

	go s.run(runCtx)
	return nil
}

// Rebind atomically replaces the callback set. Messages dispatched after
// Rebind use the new set; a dispatch already in flight may still use the
// old one.
func (s *Subscription) Rebind(h Handlers) {
	s.handlers.Store(&h)
}

// State returns the current lifecycle state.
func (s *Subscription) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// Connected reports whether the socket is currently open.
func (s *Subscription) Connected() bool {
	return s.State() == StateOpen
}

// Err returns the most recent connection error, or nil if none occurred.
func (s *Subscription) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastErr
}

// Snapshot returns the current document and its version. The document is
// shared with the store; treat it as read-only.
func (s *Subscription) Snapshot() (any, uint64) {
	return s.store.Current()
}

// Store exposes the subscription's snapshot store.
func (s *Subscription) Store() *snapshot.Store {
	return s.store
}

// Done returns a channel that is closed once the subscription has fully
// stopped, whether it finished or was disabled.
func (s *Subscription) Done() <-chan int {
	return s.doneCh
}

// Unsubscribe disables the subscription: handlers are unbound first so no
// new callbacks fire, then the connection loop is stopped and the socket
// closed, and finally the snapshot store is reset. It is idempotent.
//
// The context bounds how long to wait for the loop to wind down.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	s.disable()

	s.stateMu.Lock()
	cancel := s.cancel
	wasStarted := s.started
	// Keeps a later Connect from starting the loop on a dead subscription.
	s.started = true
	s.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if !wasStarted {
		close(s.doneCh)
	}

	select {
	case <-s.doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.store.Reset()
	return nil
}

// run owns the connection epochs: dial, stay open until the socket drops,
// wait out the retry delay, dial again. Being the only goroutine that
// sleeps between attempts, it guarantees at most one pending reconnect
// timer at any time.
func (s *Subscription) run(ctx context.Context) {
	defer close(s.doneCh)

	for {
		connClosed := make(chan error, 1)
		conn := NewWebSocketConnection(NewConnectionParams{
			URL:       s.config.URL,
			Marshaler: s.config.Marshaler,
			Logger:    s.logger,
			OnFrame:   s.handleFrame,
			OnClose:   func(err error) { connClosed <- err },
		})

		if err := s.dial(ctx, conn); err != nil {
			if ctx.Err() != nil {
				s.disable()
				return
			}
			if !s.waitRetry(ctx, err) {
				return
			}
			continue
		}

		s.setConn(conn)

		if err := s.transitionTo(StateOpen); err != nil {
			// Unsubscribed, or finished, while the dial was in flight.
			_ = conn.Close(context.Background())
			return
		}
		s.attempt = 0
		s.retryer.Reset()
		s.logger.Info("stream connected", "url", s.config.URL.String())

		select {
		case <-ctx.Done():
			s.disable()
			return
		case err := <-connClosed:
			s.setConn(nil)
			if s.State().Terminal() {
				return
			}
			if !s.waitRetry(ctx, err) {
				return
			}
		}
	}
}

func (s *Subscription) dial(ctx context.Context, conn *WebSocketConnection) error {
	dialCtx := ctx
	if s.config.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, s.config.DialTimeout)
		defer cancel()
	}
	return conn.Connect(dialCtx)
}

// waitRetry schedules and sleeps out one reconnect delay. It reports
// whether the loop should dial again; false means the subscription turned
// terminal meanwhile or the retryer gave up.
func (s *Subscription) waitRetry(ctx context.Context, cause error) bool {
	if err := s.transitionTo(StateRetrying); err != nil {
		return false
	}
	if cause != nil {
		s.setErr(cause)
		s.logger.Warn("stream connection lost", "error", cause)
	}

	delay, ok := s.retryer.NextDelay(s.attempt, cause)
	if !ok {
		s.logger.Error("stream retries exhausted", "attempts", s.attempt, "error", cause)
		if err := s.transitionTo(StateDisabled); err != nil {
			s.logger.Error("BUG: stream failed to transition to disabled state", "error", err)
		}
		return false
	}
	s.attempt++
	s.logger.Debug("stream reconnect scheduled", "attempt", s.attempt, "delay", delay)

	select {
	case <-ctx.Done():
		s.disable()
		return false
	case <-time.After(delay):
	}

	// The subscription may have been disabled while we slept.
	if err := s.transitionTo(StateConnecting); err != nil {
		return false
	}
	return true
}

// handleFrame decodes and dispatches one message. It runs on the read
// goroutine, so batches apply and callbacks fire in receipt order.
func (s *Subscription) handleFrame(data []byte) {
	var env Envelope
	if err := s.config.Unmarshaler.Unmarshal(data, &env); err != nil {
		s.logger.Error("failed to decode stream message", "error", err)
		s.notifyError(fmt.Errorf("decode stream message: %w", err))
		return
	}

	switch h := s.currentHandlers(); {
	case env.IsFinished():
		s.finish()
	case env.JSONPatch != nil:
		s.applyBatch(*env.JSONPatch)
	case env.Stdout != nil:
		if h.OnStdout != nil {
			h.OnStdout(*env.Stdout)
		}
	case env.Stderr != nil:
		if h.OnStderr != nil {
			h.OnStderr(*env.Stderr)
		}
	case env.SessionID != nil:
		if h.OnSessionID != nil {
			h.OnSessionID(*env.SessionID)
		}
	default:
		s.logger.Warn("ignoring unknown stream message")
	}
}

func (s *Subscription) applyBatch(batch patch.Batch) {
	applied, err := s.store.Apply(batch)
	if err != nil {
		s.logger.Error("failed to apply patch batch", "error", err, "ops", len(batch))
		s.notifyError(fmt.Errorf("apply patch batch: %w", err))
		return
	}
	if !applied {
		return
	}

	h := s.currentHandlers()
	if h.OnSnapshot != nil {
		doc, version := s.store.Current()
		h.OnSnapshot(doc, version)
	}
	if h.OnEvents != nil {
		if events := DeriveEvents(batch); len(events) > 0 {
			h.OnEvents(events)
		}
	}
}

// finish handles the end-of-stream marker. The state turns terminal
// before the socket goes down, so the closure that follows cannot
// schedule a reconnect.
func (s *Subscription) finish() {
	if err := s.transitionTo(StateFinished); err != nil {
		s.logger.Warn("ignoring finished marker", "error", err)
		return
	}
	s.logger.Info("stream finished")

	if conn := s.currentConn(); conn != nil {
		if err := conn.Close(context.Background()); err != nil {
			s.logger.Error("failed to close finished stream", "error", err)
		}
	}
}

// disable moves the subscription to StateDisabled, unbinding handlers
// first and tearing the socket down. Safe to call from any goroutine;
// later calls are no-ops.
func (s *Subscription) disable() {
	s.handlers.Store(&Handlers{})
	if err := s.transitionTo(StateDisabled); err != nil {
		return
	}
	if conn := s.currentConn(); conn != nil {
		if err := conn.Close(context.Background()); err != nil {
			s.logger.Error("failed to close stream connection", "error", err)
		}
	}
}

func (s *Subscription) transitionTo(newState State) error {
	s.stateMu.Lock()
	if err := s.state.validateTransitionTo(newState); err != nil {
		s.stateMu.Unlock()
		return err
	}
	s.state = newState
	s.stateMu.Unlock()

	s.logger.Debug("stream state transitioned", "new_state", newState)
	if h := s.currentHandlers(); h.OnStateChange != nil {
		h.OnStateChange(newState)
	}
	return nil
}

func (s *Subscription) currentHandlers() Handlers {
	if h := s.handlers.Load(); h != nil {
		return *h
	}
	return Handlers{}
}

func (s *Subscription) setConn(conn *WebSocketConnection) {
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
}

func (s *Subscription) currentConn() *WebSocketConnection {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn
}

func (s *Subscription) setErr(err error) {
	s.errMu.Lock()
	s.lastErr = err
	s.errMu.Unlock()
}

func (s *Subscription) notifyError(err error) {
	if h := s.currentHandlers(); h.OnError != nil {
		h.OnError(err)
	}
}
