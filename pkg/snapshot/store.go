// Package snapshot holds the client-side mirror of one streamed collection
// and guarantees that every observable snapshot is either the previous one
// unchanged or a fully applied next one. Consumers must treat snapshots as
// read-only; all mutation happens inside Apply, against a clone.
package snapshot

import (
	"sync"

	"github.com/taskboard/taskboard.go/pkg/patch"
)

// Factory produces the initial snapshot document. It runs lazily, at most
// once per store lifetime; Reset arms it again.
type Factory func() any

type Store struct {
	mu      sync.RWMutex
	factory Factory
	doc     any
	created bool
	version uint64
}

// NewStore returns a store whose initial document comes from factory.
// A nil factory means the store starts without a document and silently
// drops batches until one is installed some other way; this mirrors a
// consumer that subscribed without providing initial data.
func NewStore(factory Factory) *Store {
	return &Store{factory: factory}
}

// Current returns the published snapshot and its version. Before the first
// successful apply the snapshot is nil and the version 0. The version
// increments only when a new snapshot is published, so it doubles as a
// cheap change detector for memoizing consumers.
func (s *Store) Current() (any, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc, s.version
}

// Initialized reports whether the lazy factory has run.
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.created
}

// Apply compacts the batch and applies it to a clone of the current
// document, publishing the clone on success. The returned bool reports
// whether a new snapshot was published.
//
//   - An empty (post-compaction) batch is a no-op: same reference, same
//     version, nil error.
//   - A batch arriving while no document exists and no factory is set is
//     dropped silently.
//   - On failure the previously published snapshot stays published and the
//     error is returned for the caller to record.
func (s *Store) Apply(batch patch.Batch) (bool, error) {
	batch = batch.Compact()
	if len(batch) == 0 {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.created {
		if s.factory == nil {
			return false, nil
		}
		s.doc = s.factory()
		s.created = true
	}

	next, err := patch.Apply(s.doc, batch)
	if err != nil {
		return false, err
	}

	s.doc = next
	s.version++
	return true, nil
}

// Reset returns the store to its pre-creation state: document released,
// version zeroed, factory armed to run again on the next apply.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = nil
	s.created = false
	s.version = 0
}
