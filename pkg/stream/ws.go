package stream

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"sync"

	gorilla "github.com/gorilla/websocket"

	"github.com/taskboard/taskboard.go/internal/codec"
	"github.com/taskboard/taskboard.go/pkg/constants"
	"github.com/taskboard/taskboard.go/pkg/logger"
)

// DefaultDialer is the default gorilla dialer used by the WebSocketConnection
//
// It uses the default gorilla dialer as of gorilla/websocket v1.5.3 with
// compression enabled. The stream protocol is plain JSON text, so no
// subprotocol is negotiated.
var DefaultDialer = &gorilla.Dialer{
	Proxy:             gorilla.DefaultDialer.Proxy,
	HandshakeTimeout:  gorilla.DefaultDialer.HandshakeTimeout,
	EnableCompression: true,
}

// NewConnectionParams configures a single WebSocketConnection.
type NewConnectionParams struct {
	URL       url.URL
	Marshaler codec.Marshaler
	Logger    logger.Logger

	// OnFrame receives every text frame, called synchronously from the
	// read goroutine so frames arrive in order.
	OnFrame func(data []byte)

	// OnClose fires exactly once when the read loop exits, with the error
	// that ended it. A nil error means a clean close.
	OnClose func(err error)
}

// WebSocketConnection is one dialed socket. It lives for a single connection
// epoch: the reconnect controller makes a fresh one for every attempt.
type WebSocketConnection struct {
	Conn     *gorilla.Conn
	connLock sync.Mutex

	url       url.URL
	marshaler codec.Marshaler
	logger    logger.Logger

	onFrame func(data []byte)
	onClose func(err error)

	closeChan  chan int
	closed     bool
	closeError error
}

func NewWebSocketConnection(p NewConnectionParams) *WebSocketConnection {
	return &WebSocketConnection{
		url:       p.URL,
		marshaler: p.Marshaler,
		logger:    p.Logger,
		onFrame:   p.OnFrame,
		onClose:   p.OnClose,
		closeChan: make(chan int),
	}
}

func (ws *WebSocketConnection) Connect(ctx context.Context) error {
	connection, res, err := DefaultDialer.DialContext(ctx, ws.url.String(), nil)
	if err != nil {
		if res != nil {
			_ = res.Body.Close()
		}
		return err
	}
	defer res.Body.Close()

	ws.Conn = connection

	go ws.initialize()
	return nil
}

// Write marshals v and sends it as a text frame.
func (ws *WebSocketConnection) Write(v any) error {
	select {
	case <-ws.closeChan:
		return net.ErrClosed
	default:
	}

	if ws.marshaler == nil {
		return constants.ErrNoMarshaler
	}
	data, err := ws.marshaler.Marshal(v)
	if err != nil {
		return err
	}

	ws.connLock.Lock()
	defer ws.connLock.Unlock()
	return ws.Conn.WriteMessage(gorilla.TextMessage, data)
}

// Close closes the WebSocket connection and stops the read loop. It is
// safe to call more than once.
//
// The context lets the caller bound the close handshake: if it is canceled
// before the close frame goes out, the underlying connection is torn down
// anyway.
func (ws *WebSocketConnection) Close(ctx context.Context) error {
	ws.connLock.Lock()
	defer ws.connLock.Unlock()

	if ws.closed {
		return nil
	}
	ws.closed = true

	// Signal that we're closing so that the goroutine reading from the
	// connection can stop reading messages and exit.
	close(ws.closeChan)

	// Phase 1: try to send the close frame so the server knows this is a
	// deliberate close. If the write fails we still close the connection
	// locally rather than leak it.
	writeErr := make(chan error, 1)
	go func() {
		writeErr <- ws.Conn.WriteMessage(gorilla.CloseMessage, gorilla.FormatCloseMessage(constants.CloseMessageCode, ""))
	}()

	select {
	case err := <-writeErr:
		if err != nil {
			ws.logger.Error("failed to write close message", "error", err)
		}
	case <-ctx.Done():
	}

	// Phase 2: close the underlying connection. gorilla's Close is
	// instantaneous, so the context no longer matters here.
	return ws.Conn.Close()
}

// initialize reads frames until the connection dies, dispatching each one
// synchronously so patch batches apply in receipt order.
func (ws *WebSocketConnection) initialize() {
	defer func() {
		if ws.onClose != nil {
			ws.onClose(ws.closeError)
		}
	}()

	for {
		select {
		case <-ws.closeChan:
			return
		default:
			_, data, err := ws.Conn.ReadMessage()
			if err != nil {
				ws.recordCloseError(err)
				return
			}
			if ws.onFrame != nil {
				ws.onFrame(data)
			}
		}
	}
}

// recordCloseError classifies the read error that ended the connection.
// Once ReadMessage fails the gorilla connection is unusable, so every
// error ends the epoch; the classification only decides what OnClose sees.
func (ws *WebSocketConnection) recordCloseError(err error) {
	switch {
	case errors.Is(err, net.ErrClosed):
		// Local close raced the read; not a failure.
		ws.closeError = nil
	case gorilla.IsCloseError(err, constants.CloseMessageCode):
		// Clean close from the peer.
		ws.closeError = nil
	case gorilla.IsUnexpectedCloseError(err):
		ws.closeError = io.ErrClosedPipe
	default:
		ws.closeError = err
	}
}
