// Package logcache buffers the raw log lines of execution processes so a
// view can reopen a process's logs without replaying the stream from the
// start. The cache is bounded both ways: a fixed number of processes,
// evicted least-recently-appended first, and a fixed number of lines per
// process, keeping the newest.
//
// A Cache is an explicit dependency: the owner constructs one and hands
// it to Client.StreamProcessLogs. There is no package-level instance.
package logcache

import (
	"container/list"
	"sync"

	"github.com/taskboard/taskboard.go/pkg/models"
)

// Defaults applied by NewCache for non-positive bounds.
const (
	DefaultMaxProcesses       = 64
	DefaultMaxLinesPerProcess = 5000
)

// Stream says which output stream a line came from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// LogLine is one captured line.
type LogLine struct {
	Stream Stream
	Text   string
}

type procEntry struct {
	id    models.ProcessID
	lines []LogLine
}

// Cache is a bounded, concurrency-safe store of per-process log lines.
type Cache struct {
	mu           sync.Mutex
	maxProcesses int
	maxLines     int
	// order holds *procEntry values, most recently appended at the front.
	order *list.List
	index map[models.ProcessID]*list.Element
}

// NewCache returns a cache holding at most maxProcesses processes with at
// most maxLinesPerProcess lines each.
func NewCache(maxProcesses, maxLinesPerProcess int) *Cache {
	if maxProcesses <= 0 {
		maxProcesses = DefaultMaxProcesses
	}
	if maxLinesPerProcess <= 0 {
		maxLinesPerProcess = DefaultMaxLinesPerProcess
	}
	return &Cache{
		maxProcesses: maxProcesses,
		maxLines:     maxLinesPerProcess,
		order:        list.New(),
		index:        make(map[models.ProcessID]*list.Element),
	}
}

// Append records one line for id, marking id most recently used. When the
// process bound is exceeded the least-recently-appended process is
// dropped wholesale; when the line bound is reached the oldest line of id
// is dropped.
func (c *Cache) Append(id models.ProcessID, line LogLine) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[id]
	if !ok {
		elem = c.order.PushFront(&procEntry{id: id})
		c.index[id] = elem
		if c.order.Len() > c.maxProcesses {
			oldest := c.order.Back()
			c.order.Remove(oldest)
			delete(c.index, oldest.Value.(*procEntry).id)
		}
	} else {
		c.order.MoveToFront(elem)
	}

	entry := elem.Value.(*procEntry)
	if len(entry.lines) == c.maxLines {
		copy(entry.lines, entry.lines[1:])
		entry.lines[len(entry.lines)-1] = line
		return
	}
	entry.lines = append(entry.lines, line)
}

// Lines returns a copy of the buffered lines for id, oldest first. It
// does not count as use for eviction purposes.
func (c *Cache) Lines(id models.ProcessID) []LogLine {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[id]
	if !ok {
		return nil
	}
	entry := elem.Value.(*procEntry)
	out := make([]LogLine, len(entry.lines))
	copy(out, entry.lines)
	return out
}

// Len returns the number of processes currently buffered.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Remove drops all lines buffered for id.
func (c *Cache) Remove(id models.ProcessID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[id]; ok {
		c.order.Remove(elem)
		delete(c.index, id)
	}
}
