package boardjson_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskboard/taskboard.go/boardjson"
)

func TestCodecRoundTrip(t *testing.T) {
	c := boardjson.New()

	in := map[string]any{
		"id":     "t1",
		"status": "todo",
		"labels": []any{"bug", "p1"},
	}

	data, err := c.Marshal(in)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, c.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestCodecStream(t *testing.T) {
	c := boardjson.New()
	buf := &bytes.Buffer{}

	enc := c.NewEncoder(buf)
	require.NoError(t, enc.Encode(map[string]any{"finished": true}))
	require.NoError(t, enc.Encode(map[string]any{"Stdout": "hello"}))

	dec := c.NewDecoder(buf)

	var first map[string]any
	require.NoError(t, dec.Decode(&first))
	assert.Equal(t, map[string]any{"finished": true}, first)

	var second map[string]any
	require.NoError(t, dec.Decode(&second))
	assert.Equal(t, map[string]any{"Stdout": "hello"}, second)
}
