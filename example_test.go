package taskboard_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	taskboard "github.com/taskboard/taskboard.go"
	"github.com/taskboard/taskboard.go/internal/fakeboard"
	"github.com/taskboard/taskboard.go/pkg/logger"
	"github.com/taskboard/taskboard.go/pkg/models"
)

// Example_board subscribes to a project's tasks, creates one and moves it
// across the board. The fake server stands in for a real board server;
// point New at your own endpoint instead.
func Example_board() {
	srv := fakeboard.NewServer()
	srv.Start()
	defer srv.Stop()

	client, err := taskboard.New(srv.URL(),
		taskboard.WithLogger(logger.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	projectID := models.NewProjectID()
	tasks, err := client.SubscribeTasks(ctx, projectID)
	if err != nil {
		panic(err)
	}
	defer tasks.Unsubscribe(ctx)

	created, err := tasks.Insert(ctx, models.Task{
		ProjectID: projectID,
		Title:     "Ship the release notes",
	})
	if err != nil {
		panic(err)
	}
	if err := tasks.Move(ctx, created.ID, models.StatusInProgress); err != nil {
		panic(err)
	}

	for _, bucket := range tasks.Board() {
		fmt.Printf("%s: %d\n", bucket.Status, len(bucket.Tasks))
	}

	// Output:
	// todo: 0
	// inprogress: 1
	// inreview: 0
	// done: 0
	// cancelled: 0
}

// ExampleClient_ListDirectory filters a server-side directory listing
// with a fuzzy query.
func ExampleClient_ListDirectory() {
	srv := fakeboard.NewServer()
	srv.Start()
	defer srv.Stop()
	srv.SetDirectory("/workspace", []models.DirectoryEntry{
		{Name: "README.md", Path: "/workspace/README.md"},
		{Name: "service_test.go", Path: "/workspace/service_test.go"},
		{Name: "server.go", Path: "/workspace/server.go"},
	})

	client, err := taskboard.New(srv.URL(),
		taskboard.WithLogger(logger.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		panic(err)
	}

	entries, err := client.ListDirectory(context.Background(), "/workspace", "serv")
	if err != nil {
		panic(err)
	}
	for _, e := range entries {
		fmt.Println(e.Name)
	}

	// Output:
	// server.go
	// service_test.go
}
