// Command boardwatch follows one project's task board and reprints the
// status columns whenever they change, locally or on the server.
//
// Usage:
//
//	boardwatch -endpoint http://localhost:8887 -project <uuid>
//
// The endpoint and token flags fall back to the TASKBOARD_ENDPOINT and
// TASKBOARD_TOKEN environment variables.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	taskboard "github.com/taskboard/taskboard.go"
	"github.com/taskboard/taskboard.go/pkg/logger"
	"github.com/taskboard/taskboard.go/pkg/models"
)

type config struct {
	endpoint string
	project  string
	token    string
	logFile  string
	statuses string
}

func (c *config) validate() error {
	if c.endpoint == "" {
		return fmt.Errorf("an endpoint is required: set -endpoint or %s", taskboard.EnvEndpoint)
	}
	if c.project == "" {
		return fmt.Errorf("a project id is required: set -project")
	}
	if _, err := models.ParseProjectID(c.project); err != nil {
		return err
	}
	_, err := c.statusOrder()
	return err
}

// statusOrder resolves the -statuses override, defaulting to the full
// board column order.
func (c *config) statusOrder() ([]models.TaskStatus, error) {
	if c.statuses == "" {
		return models.AllTaskStatuses, nil
	}
	parts := strings.Split(c.statuses, ",")
	order := make([]models.TaskStatus, 0, len(parts))
	for _, part := range parts {
		status := models.TaskStatus(strings.TrimSpace(part))
		if !status.Valid() {
			return nil, fmt.Errorf("unknown status %q", strings.TrimSpace(part))
		}
		order = append(order, status)
	}
	return order, nil
}

func main() {
	var cfg config
	flag.StringVar(&cfg.endpoint, "endpoint", taskboard.GetEnvOrDefault(taskboard.EnvEndpoint, ""), "board server base URL")
	flag.StringVar(&cfg.project, "project", "", "project id to watch (required)")
	flag.StringVar(&cfg.token, "token", taskboard.GetEnvOrDefault(taskboard.EnvToken, ""), "bearer token for API calls")
	flag.StringVar(&cfg.logFile, "log-file", "", "append diagnostics to this file instead of stderr")
	flag.StringVar(&cfg.statuses, "statuses", "", "comma-separated status column order, e.g. todo,inprogress,done")
	flag.Parse()

	if err := cfg.validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg config) error {
	lg, closeLog, err := buildLogger(cfg.logFile)
	if err != nil {
		return err
	}
	defer closeLog()

	projectID, err := models.ParseProjectID(cfg.project)
	if err != nil {
		return err
	}
	order, err := cfg.statusOrder()
	if err != nil {
		return err
	}

	opts := []taskboard.Option{taskboard.WithLogger(lg)}
	if cfg.token != "" {
		opts = append(opts, taskboard.WithToken(cfg.token))
	}
	client, err := taskboard.New(cfg.endpoint, opts...)
	if err != nil {
		return err
	}

	tasks, err := client.SubscribeTasks(ctx, projectID)
	if err != nil {
		return err
	}
	defer tasks.Unsubscribe(context.Background())

	// Coalesce change callbacks into at most one pending redraw; the
	// callback runs on the stream goroutine and must not block.
	redraw := make(chan struct{}, 1)
	tasks.OnChange(func() {
		select {
		case redraw <- struct{}{}:
		default:
		}
	})

	printBoard(tasks, order)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tasks.Done():
			return tasks.Err()
		case <-redraw:
			printBoard(tasks, order)
		}
	}
}

// buildLogger routes diagnostics to -log-file when given, keeping the
// board rendering on stdout undisturbed, and to stderr at warn level
// otherwise.
func buildLogger(path string) (logger.Logger, func(), error) {
	if path == "" {
		h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})
		return logger.New(h), func() {}, nil
	}
	data, err := logger.NewBuild().FromPath(path).Make()
	if err != nil {
		return nil, nil, err
	}
	return data, func() { _ = data.LogFile.Close() }, nil
}

func printBoard(tasks *taskboard.TasksSubscription, order []models.TaskStatus) {
	fmt.Print("\033[H\033[2J")
	for _, bucket := range tasks.Board(order...) {
		fmt.Printf("%s (%d)\n", bucket.Status, len(bucket.Tasks))
		for _, task := range bucket.Tasks {
			fmt.Printf("  %s (%s)\n", task.Title, shortID(task.ID))
		}
	}
}

func shortID(id models.TaskID) string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
