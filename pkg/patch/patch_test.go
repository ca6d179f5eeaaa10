package patch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskboard/taskboard.go/pkg/patch"
)

func TestCompact(t *testing.T) {
	t.Run("drops unsupported ops", func(t *testing.T) {
		b := patch.Batch{
			{Op: "test", Path: "/tasks/t1"},
			{Op: "add", Path: "/tasks/t1", Value: 1},
			{Op: "copy", Path: "/tasks/t2"},
		}
		got := b.Compact()
		require.Len(t, got, 1)
		assert.Equal(t, "add", got[0].Op)
	})

	t.Run("collapses consecutive duplicates", func(t *testing.T) {
		op := patch.Op{Op: "replace", Path: "/tasks/t1/status", Value: "done"}
		b := patch.Batch{op, op, op}
		assert.Len(t, b.Compact(), 1)
	})

	t.Run("keeps non-adjacent duplicates", func(t *testing.T) {
		a := patch.Op{Op: "replace", Path: "/tasks/t1/status", Value: "done"}
		other := patch.Op{Op: "replace", Path: "/tasks/t2/status", Value: "todo"}
		b := patch.Batch{a, other, a}
		assert.Len(t, b.Compact(), 3)
	})

	t.Run("all dropped compacts to empty", func(t *testing.T) {
		b := patch.Batch{{Op: "move", Path: "/a"}, {Op: "test", Path: "/b"}}
		assert.Empty(t, b.Compact())
	})
}

func TestParsePointer(t *testing.T) {
	cases := []struct {
		path    string
		want    []string
		wantErr bool
	}{
		{path: "", want: nil},
		{path: "/tasks", want: []string{"tasks"}},
		{path: "/tasks/t1/status", want: []string{"tasks", "t1", "status"}},
		{path: "/a~1b/~0c", want: []string{"a/b", "~c"}},
		{path: "/~01", want: []string{"~1"}},
		{path: "//empty", want: []string{"", "empty"}},
		{path: "tasks", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			got, err := patch.ParsePointer(tc.path)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCloneIndependence(t *testing.T) {
	src := map[string]any{
		"tasks":  map[string]any{"t1": map[string]any{"status": "todo"}},
		"labels": []any{"a", []any{"nested"}},
	}

	dst := patch.Clone(src).(map[string]any)
	dst["tasks"].(map[string]any)["t1"].(map[string]any)["status"] = "done"
	dst["labels"].([]any)[1].([]any)[0] = "changed"

	assert.Equal(t, "todo", src["tasks"].(map[string]any)["t1"].(map[string]any)["status"])
	assert.Equal(t, "nested", src["labels"].([]any)[1].([]any)[0])
}
