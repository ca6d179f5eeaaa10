package taskboard

import (
	"context"
	"sync"

	"github.com/taskboard/taskboard.go/boardjson"
	"github.com/taskboard/taskboard.go/pkg/models"
	"github.com/taskboard/taskboard.go/pkg/stream"
)

// WorkspacesSubscription is a live, read-only mirror of every workspace
// on the server. Workspaces are not mutated through this SDK, so there is
// no optimistic collection behind it, just the streamed document.
type WorkspacesSubscription struct {
	sub   *stream.Subscription
	codec *boardjson.Codec

	mu       sync.Mutex
	latest   map[string]models.Workspace
	onChange func()
}

// SubscribeWorkspaces opens the workspace stream. ctx bounds the initial
// dial only.
func (c *Client) SubscribeWorkspaces(ctx context.Context) (*WorkspacesSubscription, error) {
	config, err := c.streamConfig("/api/workspaces/stream/ws", nil)
	if err != nil {
		return nil, err
	}
	config.Factory = func() any {
		return map[string]any{"workspaces": map[string]any{}}
	}

	sub, err := stream.NewSubscription(config)
	if err != nil {
		return nil, err
	}

	ws := &WorkspacesSubscription{sub: sub, codec: c.codec}
	sub.Rebind(stream.Handlers{
		OnSnapshot: ws.handleSnapshot,
	})

	if err := sub.Connect(ctx); err != nil {
		return nil, err
	}
	return ws, nil
}

func (ws *WorkspacesSubscription) handleSnapshot(doc any, _ uint64) {
	root, ok := doc.(map[string]any)
	if !ok {
		return
	}
	raw, err := ws.codec.Marshal(root["workspaces"])
	if err != nil {
		return
	}
	var workspaces map[string]models.Workspace
	if err := ws.codec.Unmarshal(raw, &workspaces); err != nil {
		return
	}
	ws.mu.Lock()
	ws.latest = workspaces
	fn := ws.onChange
	ws.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// OnChange registers fn to run after every applied update. fn runs on the
// stream's read goroutine and must not block. A nil fn unregisters.
func (ws *WorkspacesSubscription) OnChange(fn func()) {
	ws.mu.Lock()
	ws.onChange = fn
	ws.mu.Unlock()
}

// Workspaces returns a copy of the current workspace set keyed by
// workspace id.
func (ws *WorkspacesSubscription) Workspaces() map[string]models.Workspace {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	out := make(map[string]models.Workspace, len(ws.latest))
	for k, v := range ws.latest {
		out[k] = v
	}
	return out
}

// Subscription exposes the underlying stream subscription.
func (ws *WorkspacesSubscription) Subscription() *stream.Subscription {
	return ws.sub
}

// Connected reports whether the stream socket is currently open.
func (ws *WorkspacesSubscription) Connected() bool {
	return ws.sub.Connected()
}

// Err returns the terminal error of the stream, if any.
func (ws *WorkspacesSubscription) Err() error {
	return ws.sub.Err()
}

// Done closes when the subscription reaches a terminal state.
func (ws *WorkspacesSubscription) Done() <-chan int {
	return ws.sub.Done()
}

// Unsubscribe tears the stream down.
func (ws *WorkspacesSubscription) Unsubscribe(ctx context.Context) error {
	return ws.sub.Unsubscribe(ctx)
}
