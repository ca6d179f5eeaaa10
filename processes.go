package taskboard

import (
	"context"
	"fmt"
	"net/url"

	"github.com/taskboard/taskboard.go/pkg/logcache"
	"github.com/taskboard/taskboard.go/pkg/models"
	"github.com/taskboard/taskboard.go/pkg/stream"
	"github.com/taskboard/taskboard.go/pkg/terminal"
)

// StreamProcessLogs opens the raw log stream of one execution process and
// appends every stdout and stderr line to cache. The caller owns the
// cache; one cache can collect logs from many processes, bounded by its
// own eviction limits.
//
// The returned subscription reconnects on socket loss like any other
// stream; close it with Unsubscribe.
func (c *Client) StreamProcessLogs(ctx context.Context, processID models.ProcessID, cache *logcache.Cache) (*stream.Subscription, error) {
	if processID.IsZero() {
		return nil, fmt.Errorf("stream process logs: process id is required")
	}
	if cache == nil {
		return nil, fmt.Errorf("stream process logs: cache is required")
	}

	config, err := c.streamConfig("/api/execution-processes/"+processID.String()+"/raw-logs/ws", nil)
	if err != nil {
		return nil, err
	}

	sub, err := stream.NewSubscription(config)
	if err != nil {
		return nil, err
	}
	sub.Rebind(stream.Handlers{
		OnStdout: func(line string) {
			cache.Append(processID, logcache.LogLine{Stream: logcache.StreamStdout, Text: line})
		},
		OnStderr: func(line string) {
			cache.Append(processID, logcache.LogLine{Stream: logcache.StreamStderr, Text: line})
		},
		OnSessionID: func(id string) {
			c.logger.Debug("process log stream announced session",
				"process_id", processID.String(), "session_id", id)
		},
	})

	if err := sub.Connect(ctx); err != nil {
		return nil, err
	}
	return sub, nil
}

// OpenTerminal attaches to an interactive terminal session on the server.
// The session is single-shot: it ends with the shell's exit frame or, on
// socket loss, with ErrSessionInterrupted.
func (c *Client) OpenTerminal(ctx context.Context, sessionID string, h terminal.Handlers) (*terminal.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("open terminal: session id is required")
	}

	u, err := stream.StreamURL(c.baseURL, "/api/terminal/"+url.PathEscape(sessionID)+"/ws", nil)
	if err != nil {
		return nil, err
	}
	config := terminal.NewConfig(u)
	config.Marshaler = c.codec
	config.Unmarshaler = c.codec
	config.Logger = c.logger
	config.DialTimeout = c.dialTimeout

	return terminal.Attach(ctx, config, h)
}
