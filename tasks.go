package taskboard

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/taskboard/taskboard.go/boardjson"
	"github.com/taskboard/taskboard.go/httpclient"
	"github.com/taskboard/taskboard.go/pkg/collection"
	"github.com/taskboard/taskboard.go/pkg/models"
	"github.com/taskboard/taskboard.go/pkg/projection"
	"github.com/taskboard/taskboard.go/pkg/stream"
)

// Resource satisfies the collection's remote side directly.
var _ collection.Remote = (*httpclient.Resource)(nil)

// TasksSubscription is a live, optimistically mutable view of one
// project's tasks. The server streams JSON Patch batches that keep the
// view current; Insert, Update and Delete apply locally first and then
// reconcile against the stream.
type TasksSubscription struct {
	sub   *stream.Subscription
	coll  *collection.Collection[models.Task]
	codec *boardjson.Codec

	mu       sync.Mutex
	latest   map[string]models.Task
	onChange func()
}

// SubscribeTasks opens the task stream for one project and returns a view
// that stays current until Unsubscribe. ctx bounds the initial dial only;
// the subscription then lives until Unsubscribe or a terminal stream
// state.
func (c *Client) SubscribeTasks(ctx context.Context, projectID models.ProjectID) (*TasksSubscription, error) {
	if projectID.IsZero() {
		return nil, fmt.Errorf("subscribe tasks: project id is required")
	}

	config, err := c.streamConfig("/api/tasks/stream/ws", url.Values{
		"project_id": {projectID.String()},
	})
	if err != nil {
		return nil, err
	}
	config.Factory = func() any {
		return map[string]any{"tasks": map[string]any{}}
	}

	sub, err := stream.NewSubscription(config)
	if err != nil {
		return nil, err
	}

	ts := &TasksSubscription{
		sub:   sub,
		codec: c.codec,
		coll: collection.New[models.Task](collection.Params{
			Name:             "tasks",
			Remote:           c.api.Resource("/api/tasks"),
			Logger:           c.logger,
			Marshaler:        c.codec,
			Unmarshaler:      c.codec,
			ReconcileTimeout: c.reconcileTimeout,
		}),
	}
	sub.Rebind(stream.Handlers{
		OnSnapshot: ts.handleSnapshot,
		OnEvents:   ts.handleEvents,
	})

	if err := sub.Connect(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.taskSubs[projectID.String()] = ts
	c.mu.Unlock()
	return ts, nil
}

// Tasks returns the optimistic collection of the live task subscription
// for projectID, or nil when no subscription is open. Open one with
// SubscribeTasks first.
func (c *Client) Tasks(projectID models.ProjectID) *collection.Collection[models.Task] {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts, ok := c.taskSubs[projectID.String()]
	if !ok {
		return nil
	}
	if ts.sub.State().Terminal() {
		delete(c.taskSubs, projectID.String())
		return nil
	}
	return ts.coll
}

// handleSnapshot decodes the tasks branch of the document and stashes it
// for the events callback that follows the same batch.
func (ts *TasksSubscription) handleSnapshot(doc any, _ uint64) {
	root, ok := doc.(map[string]any)
	if !ok {
		return
	}
	raw, err := ts.codec.Marshal(root["tasks"])
	if err != nil {
		return
	}
	var tasks map[string]models.Task
	if err := ts.codec.Unmarshal(raw, &tasks); err != nil {
		return
	}
	ts.mu.Lock()
	ts.latest = tasks
	ts.mu.Unlock()
}

// handleEvents feeds the stashed server state into the collection, which
// reconciles in-flight mutations, then notifies the change callback. Both
// callbacks run in order on the stream's read goroutine, so the stash
// always belongs to the batch being handled.
func (ts *TasksSubscription) handleEvents(events []stream.Event) {
	ts.mu.Lock()
	latest := ts.latest
	fn := ts.onChange
	ts.mu.Unlock()
	if latest == nil {
		return
	}
	ts.coll.Feed(latest, events)
	if fn != nil {
		fn()
	}
}

// OnChange registers fn to run after every applied update, local or
// remote. fn runs on the stream's read goroutine and must not block; hand
// heavy work off to another goroutine. A nil fn unregisters.
func (ts *TasksSubscription) OnChange(fn func()) {
	ts.mu.Lock()
	ts.onChange = fn
	ts.mu.Unlock()
}

// Tasks returns a copy of the current task set keyed by task id,
// optimistic mutations included.
func (ts *TasksSubscription) Tasks() map[string]models.Task {
	return ts.coll.Snapshot()
}

// Task returns the current view of one task.
func (ts *TasksSubscription) Task(id models.TaskID) (models.Task, bool) {
	return ts.coll.Get(id.String())
}

// Board groups the current tasks into status columns. With no arguments
// the columns follow AllTaskStatuses; pass an explicit order to restrict
// or rearrange them.
func (ts *TasksSubscription) Board(order ...models.TaskStatus) []projection.Bucket {
	if len(order) == 0 {
		order = models.AllTaskStatuses
	}
	return projection.Buckets(ts.coll.Snapshot(), order)
}

// Insert creates a task. A zero ID is assigned client-side so the
// optimistic entry and the server's echo share a key; a zero Status
// defaults to todo. The completed task is returned before the create is
// confirmed.
func (ts *TasksSubscription) Insert(ctx context.Context, task models.Task) (models.Task, error) {
	if task.ID.IsZero() {
		task.ID = models.NewTaskID()
	}
	if task.Status == "" {
		task.Status = models.StatusTodo
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = now
	}
	if err := ts.coll.Insert(ctx, task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// Update applies the set fields of update to one task, optimistically
// first and against the server second.
func (ts *TasksSubscription) Update(ctx context.Context, id models.TaskID, update models.UpdateTask) error {
	changes, err := ts.wireFields(update)
	if err != nil {
		return err
	}
	return ts.coll.Update(ctx, id.String(), changes)
}

// Move is shorthand for updating just the status of a task.
func (ts *TasksSubscription) Move(ctx context.Context, id models.TaskID, status models.TaskStatus) error {
	return ts.Update(ctx, id, models.UpdateTask{Status: &status})
}

// Delete removes a task, optimistically first and against the server
// second.
func (ts *TasksSubscription) Delete(ctx context.Context, id models.TaskID) error {
	return ts.coll.Delete(ctx, id.String())
}

// Collection exposes the underlying collection for callers that need
// pending counts or raw keys.
func (ts *TasksSubscription) Collection() *collection.Collection[models.Task] {
	return ts.coll
}

// Subscription exposes the underlying stream subscription.
func (ts *TasksSubscription) Subscription() *stream.Subscription {
	return ts.sub
}

// Connected reports whether the stream socket is currently open.
func (ts *TasksSubscription) Connected() bool {
	return ts.sub.Connected()
}

// Err returns the terminal error of the stream, if any.
func (ts *TasksSubscription) Err() error {
	return ts.sub.Err()
}

// Done closes when the subscription reaches a terminal state.
func (ts *TasksSubscription) Done() <-chan int {
	return ts.sub.Done()
}

// Unsubscribe tears the stream down.
func (ts *TasksSubscription) Unsubscribe(ctx context.Context) error {
	return ts.sub.Unsubscribe(ctx)
}

// wireFields converts a typed value to its wire-shaped field map, so
// omitted optional fields stay omitted.
func (ts *TasksSubscription) wireFields(v any) (map[string]any, error) {
	raw, err := ts.codec.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := ts.codec.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
