package stream_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskboard/taskboard.go/boardjson"
	"github.com/taskboard/taskboard.go/pkg/patch"
	"github.com/taskboard/taskboard.go/pkg/stream"
)

func TestEnvelopeDecode(t *testing.T) {
	t.Run("json patch", func(t *testing.T) {
		var env stream.Envelope
		require.NoError(t, boardjson.Unmarshal([]byte(
			`{"JsonPatch":[{"op":"replace","path":"/tasks","value":{"t1":{"id":"t1"}}}]}`,
		), &env))

		require.NotNil(t, env.JSONPatch)
		require.Len(t, *env.JSONPatch, 1)
		op := (*env.JSONPatch)[0]
		assert.Equal(t, patch.OpReplace, op.Op)
		assert.Equal(t, "/tasks", op.Path)
		assert.False(t, env.IsFinished())
	})

	t.Run("finished marker", func(t *testing.T) {
		var env stream.Envelope
		require.NoError(t, boardjson.Unmarshal([]byte(`{"finished":true}`), &env))
		assert.True(t, env.IsFinished())
		assert.Nil(t, env.JSONPatch)
	})

	t.Run("finished false is not finished", func(t *testing.T) {
		var env stream.Envelope
		require.NoError(t, boardjson.Unmarshal([]byte(`{"finished":false}`), &env))
		assert.False(t, env.IsFinished())
	})

	t.Run("stdout line", func(t *testing.T) {
		var env stream.Envelope
		require.NoError(t, boardjson.Unmarshal([]byte(`{"Stdout":"compiling main.rs"}`), &env))
		require.NotNil(t, env.Stdout)
		assert.Equal(t, "compiling main.rs", *env.Stdout)
	})

	t.Run("stderr line", func(t *testing.T) {
		var env stream.Envelope
		require.NoError(t, boardjson.Unmarshal([]byte(`{"Stderr":"warning: unused import"}`), &env))
		require.NotNil(t, env.Stderr)
		assert.Equal(t, "warning: unused import", *env.Stderr)
	})

	t.Run("session id", func(t *testing.T) {
		var env stream.Envelope
		require.NoError(t, boardjson.Unmarshal([]byte(`{"SessionId":"sess-42"}`), &env))
		require.NotNil(t, env.SessionID)
		assert.Equal(t, "sess-42", *env.SessionID)
	})

	t.Run("unknown message leaves every field unset", func(t *testing.T) {
		var env stream.Envelope
		require.NoError(t, boardjson.Unmarshal([]byte(`{"Heartbeat":1}`), &env))
		assert.Nil(t, env.JSONPatch)
		assert.Nil(t, env.Stdout)
		assert.Nil(t, env.Stderr)
		assert.Nil(t, env.SessionID)
		assert.Nil(t, env.Finished)
	})
}
