package taskboard_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskboard/taskboard.go/internal/fakeboard"
	"github.com/taskboard/taskboard.go/pkg/logcache"
	"github.com/taskboard/taskboard.go/pkg/models"
	"github.com/taskboard/taskboard.go/pkg/terminal"
)

func TestStreamProcessLogsFillsCache(t *testing.T) {
	srv := startServer(t)
	c := newTestClient(t, srv)
	processID := models.NewProcessID()
	cache := logcache.NewCache(0, 0)

	sub, err := c.StreamProcessLogs(context.Background(), processID, cache)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Unsubscribe(context.Background()) })

	key := fakeboard.LogStreamKey(processID.String())
	require.Eventually(t, func() bool {
		return srv.Subscribers(key) == 1
	}, 5*time.Second, 10*time.Millisecond, "log stream never attached")

	srv.PushStdout(key, "compiling")
	srv.PushStderr(key, "warning: deprecated flag")
	srv.PushStdout(key, "done")

	require.Eventually(t, func() bool {
		return len(cache.Lines(processID)) == 3
	}, 5*time.Second, 10*time.Millisecond)

	lines := cache.Lines(processID)
	assert.Equal(t, logcache.LogLine{Stream: logcache.StreamStdout, Text: "compiling"}, lines[0])
	assert.Equal(t, logcache.LogLine{Stream: logcache.StreamStderr, Text: "warning: deprecated flag"}, lines[1])
	assert.Equal(t, logcache.LogLine{Stream: logcache.StreamStdout, Text: "done"}, lines[2])
}

func TestStreamProcessLogsValidates(t *testing.T) {
	srv := startServer(t)
	c := newTestClient(t, srv)

	_, err := c.StreamProcessLogs(context.Background(), models.ProcessID{}, logcache.NewCache(0, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "process id")

	_, err = c.StreamProcessLogs(context.Background(), models.NewProcessID(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache")
}

func TestOpenTerminalRoundTrip(t *testing.T) {
	srv := startServer(t)
	c := newTestClient(t, srv)
	ctx := context.Background()

	outputs := make(chan string, 8)
	exits := make(chan int, 1)
	session, err := c.OpenTerminal(ctx, "build-1", terminal.Handlers{
		OnOutput: func(data []byte) { outputs <- string(data) },
		OnExit:   func(code int) { exits <- code },
	})
	require.NoError(t, err)

	require.NoError(t, session.SendInput(ctx, []byte("make test\n")))
	select {
	case out := <-outputs:
		assert.Equal(t, "make test\n", out, "the fake echoes input back")
	case <-time.After(5 * time.Second):
		t.Fatal("echo never arrived")
	}

	srv.ExitTerminal("build-1", 2)
	select {
	case code := <-exits:
		assert.Equal(t, 2, code)
	case <-time.After(5 * time.Second):
		t.Fatal("exit never arrived")
	}

	select {
	case <-session.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session never ended")
	}
	assert.True(t, session.Exited())
	assert.NoError(t, session.Err())
}

func TestOpenTerminalRequiresSessionID(t *testing.T) {
	srv := startServer(t)
	c := newTestClient(t, srv)

	_, err := c.OpenTerminal(context.Background(), "", terminal.Handlers{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session id")
}
