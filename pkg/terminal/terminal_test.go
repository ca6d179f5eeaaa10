package terminal_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskboard/taskboard.go/pkg/constants"
	"github.com/taskboard/taskboard.go/pkg/logger"
	"github.com/taskboard/taskboard.go/pkg/terminal"
)

// scriptServer accepts one WebSocket connection and hands it to script.
type scriptServer struct {
	server   *httptest.Server
	upgrader gorilla.Upgrader
}

func newScriptServer(t *testing.T, script func(conn *gorilla.Conn)) *scriptServer {
	t.Helper()
	s := &scriptServer{}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		script(conn)
	}))
	t.Cleanup(s.server.Close)
	return s
}

func writeText(t *testing.T, conn *gorilla.Conn, msg string) {
	if err := conn.WriteMessage(gorilla.TextMessage, []byte(msg)); err != nil {
		t.Logf("server write failed: %v", err)
	}
}

func drainUntilClose(conn *gorilla.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func testConfig(t *testing.T, baseURL string) *terminal.Config {
	t.Helper()
	u, err := url.Parse(baseURL)
	require.NoError(t, err)
	u.Scheme = constants.WebsocketScheme
	u.Path = "/api/terminal/s1/ws"

	config := terminal.NewConfig(u)
	config.Logger = logger.New(slog.NewTextHandler(io.Discard, nil))
	return config
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a terminal callback")
		panic("unreachable")
	}
}

func waitDone(t *testing.T, session *terminal.Session) {
	t.Helper()
	select {
	case <-session.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the session to end")
	}
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestSessionDispatchesOutputAndExit(t *testing.T) {
	srv := newScriptServer(t, func(conn *gorilla.Conn) {
		writeText(t, conn, `{"type":"output","data":"`+b64("hello ")+`"}`)
		writeText(t, conn, `{"type":"error","data":"`+b64("oops")+`"}`)
		writeText(t, conn, `{"type":"exit","data":"0"}`)
		drainUntilClose(conn)
	})

	outputs := make(chan string, 8)
	errOutputs := make(chan string, 8)
	exits := make(chan int, 1)
	session, err := terminal.Attach(context.Background(), testConfig(t, srv.server.URL), terminal.Handlers{
		OnOutput:      func(data []byte) { outputs <- string(data) },
		OnErrorOutput: func(data []byte) { errOutputs <- string(data) },
		OnExit:        func(code int) { exits <- code },
	})
	require.NoError(t, err)

	assert.Equal(t, "hello ", waitFor(t, outputs))
	assert.Equal(t, "oops", waitFor(t, errOutputs))
	assert.Zero(t, waitFor(t, exits))

	waitDone(t, session)
	assert.True(t, session.Exited())
	assert.NoError(t, session.Err(), "a session ended by an exit frame is not an error")
}

func TestSessionSendsInputAndResize(t *testing.T) {
	type raw struct {
		Type string `json:"type"`
		Data string `json:"data"`
		Cols int    `json:"cols"`
		Rows int    `json:"rows"`
	}
	frames := make(chan raw, 8)
	srv := newScriptServer(t, func(conn *gorilla.Conn) {
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var f raw
			if err := json.Unmarshal(data, &f); err == nil {
				frames <- f
			}
		}
	})

	session, err := terminal.Attach(context.Background(), testConfig(t, srv.server.URL), terminal.Handlers{})
	require.NoError(t, err)
	defer session.Close(context.Background())

	ctx := context.Background()
	require.NoError(t, session.SendInput(ctx, []byte("ls -la\n")))
	require.NoError(t, session.Resize(ctx, 120, 40))

	input := waitFor(t, frames)
	assert.Equal(t, "input", input.Type)
	assert.Equal(t, b64("ls -la\n"), input.Data)

	resize := waitFor(t, frames)
	assert.Equal(t, "resize", resize.Type)
	assert.Equal(t, 120, resize.Cols)
	assert.Equal(t, 40, resize.Rows)
}

func TestSessionSkipsMalformedFrames(t *testing.T) {
	srv := newScriptServer(t, func(conn *gorilla.Conn) {
		writeText(t, conn, `this is not json`)
		writeText(t, conn, `{"type":"output","data":"!!! not base64 !!!"}`)
		writeText(t, conn, `{"type":"exit","data":"not a number"}`)
		writeText(t, conn, `{"type":"output","data":"`+b64("still alive")+`"}`)
		drainUntilClose(conn)
	})

	outputs := make(chan string, 8)
	session, err := terminal.Attach(context.Background(), testConfig(t, srv.server.URL), terminal.Handlers{
		OnOutput: func(data []byte) { outputs <- string(data) },
	})
	require.NoError(t, err)
	defer session.Close(context.Background())

	assert.Equal(t, "still alive", waitFor(t, outputs))
	assert.False(t, session.Exited(), "a malformed exit frame must not end the session")
}

func TestSessionInterruptedWhenSocketDropsBeforeExit(t *testing.T) {
	srv := newScriptServer(t, func(conn *gorilla.Conn) {
		writeText(t, conn, `{"type":"output","data":"`+b64("partial")+`"}`)
		// Close without an exit frame, as if the server went away.
		_ = conn.Close()
	})

	outputs := make(chan string, 8)
	session, err := terminal.Attach(context.Background(), testConfig(t, srv.server.URL), terminal.Handlers{
		OnOutput: func(data []byte) { outputs <- string(data) },
	})
	require.NoError(t, err)

	assert.Equal(t, "partial", waitFor(t, outputs))
	waitDone(t, session)
	assert.False(t, session.Exited())
	assert.Error(t, session.Err())
}

func TestAttachValidatesConfig(t *testing.T) {
	u, err := url.Parse("http://localhost:3001/api/terminal/s1/ws")
	require.NoError(t, err)

	config := terminal.NewConfig(u)
	_, err = terminal.Attach(context.Background(), config, terminal.Handlers{})
	assert.ErrorContains(t, err, "scheme", "http scheme must be rejected")

	wsURL, err := url.Parse("ws://localhost:3001/api/terminal/s1/ws")
	require.NoError(t, err)
	config = terminal.NewConfig(wsURL)
	config.Marshaler = nil
	_, err = terminal.Attach(context.Background(), config, terminal.Handlers{})
	assert.ErrorIs(t, err, constants.ErrNoMarshaler)
}
