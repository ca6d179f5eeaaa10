package taskboard_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	taskboard "github.com/taskboard/taskboard.go"
	"github.com/taskboard/taskboard.go/pkg/models"
)

func TestListDirectory(t *testing.T) {
	srv := startServer(t)
	c := newTestClient(t, srv)
	ctx := context.Background()

	srv.SetDirectory("/repo", []models.DirectoryEntry{
		{Name: "README.md", Path: "/repo/README.md"},
		{Name: "magic.go", Path: "/repo/magic.go"},
		{Name: "main.go", Path: "/repo/main.go"},
		{Name: "pkg", Path: "/repo/pkg", IsDir: true},
	})

	// Empty query keeps the server's order.
	all, err := c.ListDirectory(ctx, "/repo", "")
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "README.md", all[0].Name)
	assert.True(t, all[3].IsDir)

	// A query fuzzy-filters by name, best match first.
	matched, err := c.ListDirectory(ctx, "/repo", "ma")
	require.NoError(t, err)
	require.Len(t, matched, 2)
	assert.Equal(t, "main.go", matched[0].Name)
	assert.Equal(t, "magic.go", matched[1].Name)

	none, err := c.ListDirectory(ctx, "/repo", "zzz")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListDirectoryMissingPath(t *testing.T) {
	srv := startServer(t)
	c := newTestClient(t, srv)

	_, err := c.ListDirectory(context.Background(), "/nowhere", "")
	require.Error(t, err)
	assert.True(t, taskboard.IsNotFound(err))
}
