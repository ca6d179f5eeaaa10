package taskboard

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/taskboard/taskboard.go/boardjson"
	"github.com/taskboard/taskboard.go/pkg/collection"
	"github.com/taskboard/taskboard.go/pkg/models"
	"github.com/taskboard/taskboard.go/pkg/stream"
)

// NotesSubscription is a live, optimistically mutable view of one
// workspace's scratch notes. It mirrors the "scratch" collection of the
// workspace stream the same way TasksSubscription mirrors tasks.
type NotesSubscription struct {
	sub   *stream.Subscription
	coll  *collection.Collection[models.ScratchNote]
	codec *boardjson.Codec

	mu       sync.Mutex
	latest   map[string]models.ScratchNote
	onChange func()
}

// SubscribeNotes opens the scratch note stream for one workspace. ctx
// bounds the initial dial only.
func (c *Client) SubscribeNotes(ctx context.Context, workspaceID models.WorkspaceID) (*NotesSubscription, error) {
	if workspaceID.IsZero() {
		return nil, fmt.Errorf("subscribe notes: workspace id is required")
	}

	config, err := c.streamConfig("/api/scratch/stream/ws", url.Values{
		"workspace_id": {workspaceID.String()},
	})
	if err != nil {
		return nil, err
	}
	config.Factory = func() any {
		return map[string]any{"scratch": map[string]any{}}
	}

	sub, err := stream.NewSubscription(config)
	if err != nil {
		return nil, err
	}

	ns := &NotesSubscription{
		sub:   sub,
		codec: c.codec,
		coll: collection.New[models.ScratchNote](collection.Params{
			Name:             "scratch",
			Remote:           c.api.Resource("/api/scratch"),
			Logger:           c.logger,
			Marshaler:        c.codec,
			Unmarshaler:      c.codec,
			ReconcileTimeout: c.reconcileTimeout,
		}),
	}
	sub.Rebind(stream.Handlers{
		OnSnapshot: ns.handleSnapshot,
		OnEvents:   ns.handleEvents,
	})

	if err := sub.Connect(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.noteSubs[workspaceID.String()] = ns
	c.mu.Unlock()
	return ns, nil
}

// Notes returns the optimistic collection of the live note subscription
// for workspaceID, or nil when no subscription is open. Open one with
// SubscribeNotes first.
func (c *Client) Notes(workspaceID models.WorkspaceID) *collection.Collection[models.ScratchNote] {
	c.mu.Lock()
	defer c.mu.Unlock()
	ns, ok := c.noteSubs[workspaceID.String()]
	if !ok {
		return nil
	}
	if ns.sub.State().Terminal() {
		delete(c.noteSubs, workspaceID.String())
		return nil
	}
	return ns.coll
}

func (ns *NotesSubscription) handleSnapshot(doc any, _ uint64) {
	root, ok := doc.(map[string]any)
	if !ok {
		return
	}
	raw, err := ns.codec.Marshal(root["scratch"])
	if err != nil {
		return
	}
	var notes map[string]models.ScratchNote
	if err := ns.codec.Unmarshal(raw, &notes); err != nil {
		return
	}
	ns.mu.Lock()
	ns.latest = notes
	ns.mu.Unlock()
}

func (ns *NotesSubscription) handleEvents(events []stream.Event) {
	ns.mu.Lock()
	latest := ns.latest
	fn := ns.onChange
	ns.mu.Unlock()
	if latest == nil {
		return
	}
	ns.coll.Feed(latest, events)
	if fn != nil {
		fn()
	}
}

// OnChange registers fn to run after every applied update. fn runs on the
// stream's read goroutine and must not block. A nil fn unregisters.
func (ns *NotesSubscription) OnChange(fn func()) {
	ns.mu.Lock()
	ns.onChange = fn
	ns.mu.Unlock()
}

// Notes returns a copy of the current note set keyed by note id.
func (ns *NotesSubscription) Notes() map[string]models.ScratchNote {
	return ns.coll.Snapshot()
}

// Note returns the current view of one note.
func (ns *NotesSubscription) Note(id models.NoteID) (models.ScratchNote, bool) {
	return ns.coll.Get(id.String())
}

// Insert creates a note. A zero ID is assigned client-side so the
// optimistic entry and the server's echo share a key.
func (ns *NotesSubscription) Insert(ctx context.Context, note models.ScratchNote) (models.ScratchNote, error) {
	if note.ID.IsZero() {
		note.ID = models.NewNoteID()
	}
	now := time.Now().UTC()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	if note.UpdatedAt.IsZero() {
		note.UpdatedAt = now
	}
	if err := ns.coll.Insert(ctx, note); err != nil {
		return models.ScratchNote{}, err
	}
	return note, nil
}

// Update applies the set fields of update to one note.
func (ns *NotesSubscription) Update(ctx context.Context, id models.NoteID, update models.UpdateScratchNote) error {
	raw, err := ns.codec.Marshal(update)
	if err != nil {
		return err
	}
	var changes map[string]any
	if err := ns.codec.Unmarshal(raw, &changes); err != nil {
		return err
	}
	return ns.coll.Update(ctx, id.String(), changes)
}

// Delete removes a note.
func (ns *NotesSubscription) Delete(ctx context.Context, id models.NoteID) error {
	return ns.coll.Delete(ctx, id.String())
}

// Collection exposes the underlying collection.
func (ns *NotesSubscription) Collection() *collection.Collection[models.ScratchNote] {
	return ns.coll
}

// Subscription exposes the underlying stream subscription.
func (ns *NotesSubscription) Subscription() *stream.Subscription {
	return ns.sub
}

// Connected reports whether the stream socket is currently open.
func (ns *NotesSubscription) Connected() bool {
	return ns.sub.Connected()
}

// Err returns the terminal error of the stream, if any.
func (ns *NotesSubscription) Err() error {
	return ns.sub.Err()
}

// Done closes when the subscription reaches a terminal state.
func (ns *NotesSubscription) Done() <-chan int {
	return ns.sub.Done()
}

// Unsubscribe tears the stream down.
func (ns *NotesSubscription) Unsubscribe(ctx context.Context) error {
	return ns.sub.Unsubscribe(ctx)
}
