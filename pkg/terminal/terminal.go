// Package terminal attaches to a server-side shell over a WebSocket and
// exchanges framed input and output with it.
//
// A session is single-shot: when the shell exits, or the socket drops,
// the session is over. There is no reconnection, because a new socket
// would reach a new shell with none of the old state.
package terminal

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/taskboard/taskboard.go/boardjson"
	"github.com/taskboard/taskboard.go/internal/codec"
	"github.com/taskboard/taskboard.go/pkg/constants"
	"github.com/taskboard/taskboard.go/pkg/logger"
	"github.com/taskboard/taskboard.go/pkg/stream"
)

// Frame types on the terminal socket. The server sends output, error and
// exit; the client sends input and resize.
const (
	frameOutput = "output"
	frameError  = "error"
	frameExit   = "exit"
	frameInput  = "input"
	frameResize = "resize"
)

// frame is one JSON message on the terminal socket. Data carries base64
// bytes for output, error and input frames, and the decimal exit code for
// exit frames.
type frame struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
	Cols int    `json:"cols,omitempty"`
	Rows int    `json:"rows,omitempty"`
}

// Handlers receives terminal events. Callbacks run on the socket's read
// goroutine in frame order; nil fields are skipped.
type Handlers struct {
	// OnOutput receives decoded stdout bytes.
	OnOutput func(data []byte)

	// OnErrorOutput receives decoded stderr bytes.
	OnErrorOutput func(data []byte)

	// OnExit receives the shell's exit code. It fires at most once and is
	// the last callback of a session that ended normally.
	OnExit func(code int)
}

// Config carries everything Attach needs to dial a terminal endpoint.
type Config struct {
	// URL is the full WebSocket endpoint of the terminal session.
	URL url.URL

	// Marshaler encodes outbound input and resize frames.
	Marshaler codec.Marshaler

	// Unmarshaler decodes inbound frames.
	Unmarshaler codec.Unmarshaler

	// Logger receives skipped-frame and lifecycle diagnostics.
	Logger logger.Logger

	// DialTimeout bounds the dial. Zero means no bound beyond the caller's
	// context.
	DialTimeout time.Duration
}

// NewConfig creates a Config for the given terminal endpoint with the
// default JSON codec and logger.
func NewConfig(u *url.URL) *Config {
	c := boardjson.New()
	return &Config{
		URL:         *u,
		Marshaler:   c,
		Unmarshaler: c,
		Logger:      logger.New(slog.NewTextHandler(os.Stdout, nil)),
		DialTimeout: 10 * time.Second,
	}
}

// Session is one attached terminal.
type Session struct {
	conn        *stream.WebSocketConnection
	unmarshaler codec.Unmarshaler
	logger      logger.Logger
	handlers    Handlers

	mu     sync.Mutex
	exited bool
	err    error

	doneCh chan struct{}
}

// Attach dials the terminal endpoint and starts dispatching frames to h.
func Attach(ctx context.Context, config *Config, h Handlers) (*Session, error) {
	switch config.URL.Scheme {
	case constants.WebsocketScheme, constants.WebsocketSecureScheme:
	default:
		return nil, fmt.Errorf("terminal: endpoint scheme must be %q or %q, got %q",
			constants.WebsocketScheme, constants.WebsocketSecureScheme, config.URL.Scheme)
	}
	if config.Marshaler == nil {
		return nil, constants.ErrNoMarshaler
	}
	if config.Unmarshaler == nil {
		return nil, constants.ErrNoUnmarshaler
	}
	lg := config.Logger
	if lg == nil {
		lg = logger.New(slog.NewTextHandler(os.Stdout, nil))
	}

	s := &Session{
		unmarshaler: config.Unmarshaler,
		logger:      lg,
		handlers:    h,
		doneCh:      make(chan struct{}),
	}
	s.conn = stream.NewWebSocketConnection(stream.NewConnectionParams{
		URL:       config.URL,
		Marshaler: config.Marshaler,
		Logger:    lg,
		OnFrame:   s.handleFrame,
		OnClose:   s.handleClose,
	})

	if config.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.DialTimeout)
		defer cancel()
	}
	if err := s.conn.Connect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// SendInput forwards raw bytes to the shell's stdin.
func (s *Session) SendInput(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.conn.Write(frame{
		Type: frameInput,
		Data: base64.StdEncoding.EncodeToString(data),
	})
}

// Resize tells the shell the viewport changed.
func (s *Session) Resize(ctx context.Context, cols, rows int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.conn.Write(frame{
		Type: frameResize,
		Cols: cols,
		Rows: rows,
	})
}

// Done is closed when the session ends, whether by exit frame, socket
// loss or Close.
func (s *Session) Done() <-chan struct{} {
	return s.doneCh
}

// Exited reports whether the shell sent an exit frame.
func (s *Session) Exited() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exited
}

// Err reports why the session ended. It is nil while the session runs,
// nil after a normal exit, and ErrSessionInterrupted when the socket
// closed before the shell exited.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close tears the session down. A running shell keeps running server
// side; only the attachment ends.
func (s *Session) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}

func (s *Session) handleFrame(data []byte) {
	var f frame
	if err := s.unmarshaler.Unmarshal(data, &f); err != nil {
		s.logger.Warn("skipping malformed terminal frame", "error", err)
		return
	}

	switch f.Type {
	case frameOutput:
		payload, err := base64.StdEncoding.DecodeString(f.Data)
		if err != nil {
			s.logger.Warn("skipping undecodable output frame", "error", err)
			return
		}
		if s.handlers.OnOutput != nil {
			s.handlers.OnOutput(payload)
		}
	case frameError:
		payload, err := base64.StdEncoding.DecodeString(f.Data)
		if err != nil {
			s.logger.Warn("skipping undecodable error frame", "error", err)
			return
		}
		if s.handlers.OnErrorOutput != nil {
			s.handlers.OnErrorOutput(payload)
		}
	case frameExit:
		code, err := strconv.Atoi(f.Data)
		if err != nil {
			s.logger.Warn("skipping exit frame with undecodable code", "data", f.Data)
			return
		}
		s.mu.Lock()
		s.exited = true
		s.mu.Unlock()
		if s.handlers.OnExit != nil {
			s.handlers.OnExit(code)
		}
		// The shell is gone; close our side without waiting on anyone.
		_ = s.conn.Close(context.Background())
	default:
		s.logger.Debug("ignoring unknown terminal frame", "type", f.Type)
	}
}

func (s *Session) handleClose(err error) {
	s.mu.Lock()
	if !s.exited {
		if err == nil {
			err = constants.ErrSessionInterrupted
		}
		s.err = err
	}
	s.mu.Unlock()
	close(s.doneCh)
}
