// Package collection implements optimistic mutations over a streamed
// entity collection. A Collection applies each change locally first, then
// performs the REST call, and finally waits for the patch stream to echo
// the change back. Failed REST calls revert the local change; a stream
// that stays quiet past the reconcile timeout settles the mutation
// silently, because the remote already accepted it.
//
// Every mutation is tracked as a ledger entry with its own ULID, so
// concurrent mutations on the same key reconcile independently.
package collection

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/taskboard/taskboard.go/boardjson"
	"github.com/taskboard/taskboard.go/internal/codec"
	"github.com/taskboard/taskboard.go/pkg/constants"
	"github.com/taskboard/taskboard.go/pkg/logger"
	"github.com/taskboard/taskboard.go/pkg/stream"
)

// Remote performs the REST side of a mutation. httpclient.Resource
// implements it against the board server's API.
type Remote interface {
	Create(ctx context.Context, body any) error
	Update(ctx context.Context, key string, body any) error
	Delete(ctx context.Context, key string) error
}

// Params configures a Collection.
type Params struct {
	// Name is the collection's path token in stream events, e.g. "tasks".
	Name string

	// Remote performs the REST mutations.
	Remote Remote

	Logger      logger.Logger
	Marshaler   codec.Marshaler
	Unmarshaler codec.Unmarshaler

	// ReconcileTimeout bounds how long a successful mutation waits for
	// the stream to confirm it. Defaults to
	// constants.DefaultReconcileTimeout.
	ReconcileTimeout time.Duration
}

// Collection is an optimistically mutable view over one streamed
// collection of entities keyed by DeriveKey.
type Collection[T any] struct {
	name        string
	remote      Remote
	logger      logger.Logger
	marshaler   codec.Marshaler
	unmarshaler codec.Unmarshaler
	timeout     time.Duration

	mu       sync.Mutex
	entities map[string]T
	ledger   map[string]*entry[T]
}

// entry is one ledger row: a single in-flight mutation.
type entry[T any] struct {
	id      string
	key     string
	expect  stream.EventOp
	state   MutationState
	prior   T
	existed bool
	matched bool
	done    chan int
}

func New[T any](p Params) *Collection[T] {
	lg := p.Logger
	if lg == nil {
		lg = logger.New(slog.NewTextHandler(os.Stdout, nil))
	}
	marshaler, unmarshaler := p.Marshaler, p.Unmarshaler
	if marshaler == nil || unmarshaler == nil {
		c := boardjson.New()
		if marshaler == nil {
			marshaler = c
		}
		if unmarshaler == nil {
			unmarshaler = c
		}
	}
	timeout := p.ReconcileTimeout
	if timeout <= 0 {
		timeout = constants.DefaultReconcileTimeout
	}

	return &Collection[T]{
		name:        p.Name,
		remote:      p.Remote,
		logger:      lg,
		marshaler:   marshaler,
		unmarshaler: unmarshaler,
		timeout:     timeout,
		entities:    make(map[string]T),
		ledger:      make(map[string]*entry[T]),
	}
}

// Get returns the entity stored under key.
func (c *Collection[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entities[key]
	return v, ok
}

// Len returns the number of entities currently visible.
func (c *Collection[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entities)
}

// Snapshot returns a copy of the visible entities.
func (c *Collection[T]) Snapshot() map[string]T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]T, len(c.entities))
	for k, v := range c.entities {
		out[k] = v
	}
	return out
}

// Pending returns the number of mutations not yet settled or rolled back.
func (c *Collection[T]) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ledger)
}

// Sync replaces the whole base state, e.g. when attaching to an already
// populated snapshot.
func (c *Collection[T]) Sync(entities map[string]T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replaceLocked(entities)
}

// Feed ingests one applied stream batch: entities carries the server
// state of this collection after the batch, events the entity-level
// changes derived from it. Only keys named by events take the server
// value; everything else keeps its local, possibly optimistic, value.
//
// Events also resolve ledger entries waiting for confirmation: an insert
// waits for its own insert event, while updates and deletes also accept a
// whole-collection reset as confirmation.
func (c *Collection[T]) Feed(entities map[string]T, events []stream.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ev := range events {
		if ev.Collection != "" && ev.Collection != c.name {
			continue
		}
		switch ev.Op {
		case stream.OpReset:
			c.replaceLocked(entities)
		case stream.OpInsert, stream.OpUpdate:
			if v, ok := entities[ev.Key]; ok {
				c.entities[ev.Key] = v
			}
		case stream.OpDelete:
			delete(c.entities, ev.Key)
		}
		c.resolveLocked(ev)
	}
}

// Insert applies entity locally, creates it remotely, and waits for the
// stream to confirm. The key derives from the entity's wire fields. On
// remote failure the local insert is reverted and the server's error
// message surfaces in the returned error.
func (c *Collection[T]) Insert(ctx context.Context, entity T) error {
	fields, err := c.wireFields(entity)
	if err != nil {
		return fmt.Errorf("collection %s: encode entity: %w", c.name, err)
	}
	key, err := DeriveKey(fields)
	if err != nil {
		return fmt.Errorf("collection %s: %w", c.name, err)
	}

	c.mu.Lock()
	prior, existed := c.entities[key]
	c.entities[key] = entity
	e := c.newEntryLocked(key, stream.OpInsert, prior, existed)
	c.mu.Unlock()

	return c.run(ctx, e, func(ctx context.Context) error {
		return c.remote.Create(ctx, entity)
	})
}

// Update merges the sparse changes into the entity under key locally and
// sends the same changes to the remote. Rollback restores the exact
// prior value.
func (c *Collection[T]) Update(ctx context.Context, key string, changes map[string]any) error {
	c.mu.Lock()
	prior, existed := c.entities[key]
	if !existed {
		c.mu.Unlock()
		return fmt.Errorf("collection %s: update %q: %w", c.name, key, constants.ErrUnknownKey)
	}
	merged, err := c.merge(prior, changes)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("collection %s: update %q: %w", c.name, key, err)
	}
	c.entities[key] = merged
	e := c.newEntryLocked(key, stream.OpUpdate, prior, true)
	c.mu.Unlock()

	return c.run(ctx, e, func(ctx context.Context) error {
		return c.remote.Update(ctx, key, changes)
	})
}

// Delete removes the entity under key locally and remotely.
func (c *Collection[T]) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	prior, existed := c.entities[key]
	if !existed {
		c.mu.Unlock()
		return fmt.Errorf("collection %s: delete %q: %w", c.name, key, constants.ErrUnknownKey)
	}
	delete(c.entities, key)
	e := c.newEntryLocked(key, stream.OpDelete, prior, true)
	c.mu.Unlock()

	return c.run(ctx, e, func(ctx context.Context) error {
		return c.remote.Delete(ctx, key)
	})
}

func (c *Collection[T]) replaceLocked(entities map[string]T) {
	next := make(map[string]T, len(entities))
	for k, v := range entities {
		next[k] = v
	}
	c.entities = next
}

func (c *Collection[T]) newEntryLocked(key string, expect stream.EventOp, prior T, existed bool) *entry[T] {
	e := &entry[T]{
		id:      ulid.Make().String(),
		key:     key,
		expect:  expect,
		state:   StateOptimistic,
		prior:   prior,
		existed: existed,
		done:    make(chan int),
	}
	c.ledger[e.id] = e
	c.logger.Debug("mutation applied locally",
		"collection", c.name, "mutation_id", e.id, "key", key, "op", expect)
	return e
}

// run drives a registered entry through the remote call and the
// reconcile wait.
func (c *Collection[T]) run(ctx context.Context, e *entry[T], call func(context.Context) error) error {
	c.setState(e, StatePendingRemote)

	if err := call(ctx); err != nil {
		c.rollback(e, err)
		return fmt.Errorf("collection %s: %s %q failed: %w", c.name, e.expect, e.key, err)
	}

	c.setState(e, StateReconciling)
	c.await(ctx, e)
	return nil
}

func (c *Collection[T]) setState(e *entry[T], state MutationState) {
	c.mu.Lock()
	e.state = state
	c.mu.Unlock()
}

// rollback restores the pre-mutation value and retires the entry.
func (c *Collection[T]) rollback(e *entry[T], cause error) {
	c.mu.Lock()
	if e.existed {
		c.entities[e.key] = e.prior
	} else {
		delete(c.entities, e.key)
	}
	c.finishLocked(e, StateRolledBack)
	c.mu.Unlock()

	c.logger.Warn("mutation rolled back",
		"collection", c.name, "mutation_id", e.id, "key", e.key, "error", cause)
}

// await blocks until the stream confirms the mutation, the reconcile
// timeout lapses, or the context ends. A timeout settles silently: the
// remote accepted the change, so a quiet stream is not an error.
func (c *Collection[T]) await(ctx context.Context, e *entry[T]) {
	select {
	case <-e.done:
	case <-time.After(c.timeout):
		c.logger.Debug("reconcile timed out, settling",
			"collection", c.name, "mutation_id", e.id, "key", e.key)
	case <-ctx.Done():
		c.logger.Debug("context ended during reconcile, settling",
			"collection", c.name, "mutation_id", e.id, "key", e.key)
	}

	c.mu.Lock()
	if _, live := c.ledger[e.id]; live {
		c.finishLocked(e, StateSettled)
	}
	c.mu.Unlock()
}

func (c *Collection[T]) resolveLocked(ev stream.Event) {
	for _, e := range c.ledger {
		if e.matched || !e.confirms(ev) {
			continue
		}
		e.matched = true
		close(e.done)
		if e.state == StateReconciling {
			c.finishLocked(e, StateSettled)
		}
	}
}

// finishLocked moves e to a terminal state and prunes it from the ledger.
func (c *Collection[T]) finishLocked(e *entry[T], state MutationState) {
	e.state = state
	delete(c.ledger, e.id)
	c.logger.Debug("mutation finished",
		"collection", c.name, "mutation_id", e.id, "key", e.key, "state", state)
}

func (e *entry[T]) confirms(ev stream.Event) bool {
	switch e.expect {
	case stream.OpInsert:
		return ev.Op == stream.OpInsert && ev.Key == e.key
	case stream.OpUpdate:
		return ev.Op == stream.OpReset || (ev.Op == stream.OpUpdate && ev.Key == e.key)
	case stream.OpDelete:
		return ev.Op == stream.OpReset || (ev.Op == stream.OpDelete && ev.Key == e.key)
	}
	return false
}

// wireFields round-trips the entity through the codec to see it the way
// the server does.
func (c *Collection[T]) wireFields(entity T) (map[string]any, error) {
	data, err := c.marshaler.Marshal(entity)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := c.unmarshaler.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// merge applies sparse field changes on top of base through the wire
// representation, so json tags and omitted fields behave exactly like a
// server-side update.
func (c *Collection[T]) merge(base T, changes map[string]any) (T, error) {
	var merged T
	fields, err := c.wireFields(base)
	if err != nil {
		return merged, err
	}
	for k, v := range changes {
		fields[k] = v
	}
	data, err := c.marshaler.Marshal(fields)
	if err != nil {
		return merged, err
	}
	if err := c.unmarshaler.Unmarshal(data, &merged); err != nil {
		return merged, err
	}
	return merged, nil
}
