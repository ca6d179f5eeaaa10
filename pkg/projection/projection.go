// Package projection derives render-ready views from task snapshots.
// Projections are pure: they never mutate their input, and identical
// input yields structurally identical output regardless of map iteration
// order.
package projection

import (
	"sort"

	"github.com/taskboard/taskboard.go/pkg/models"
)

// Bucket holds the tasks of one status column, newest first.
type Bucket struct {
	Status models.TaskStatus
	Tasks  []models.Task
}

// Option configures a projection.
type Option func(*options)

type options struct {
	fallback    models.TaskStatus
	hasFallback bool
}

// WithFallback routes tasks whose status is not part of the bucket order
// into the bucket of the given status instead of dropping them.
func WithFallback(status models.TaskStatus) Option {
	return func(o *options) {
		o.fallback = status
		o.hasFallback = true
	}
}

// Buckets groups tasks into one bucket per status in order, every bucket
// present even when empty. Within a bucket tasks sort by CreatedAt
// descending; ties break on the id, ascending, so the layout is stable.
//
// A task whose status is not in order is skipped, unless WithFallback
// placed it somewhere.
func Buckets(tasks map[string]models.Task, order []models.TaskStatus, opts ...Option) []Bucket {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	index := make(map[models.TaskStatus]int, len(order))
	buckets := make([]Bucket, len(order))
	for i, status := range order {
		index[status] = i
		buckets[i] = Bucket{Status: status}
	}

	for _, task := range tasks {
		i, ok := index[task.Status]
		if !ok {
			if !o.hasFallback {
				continue
			}
			if i, ok = index[o.fallback]; !ok {
				continue
			}
		}
		buckets[i].Tasks = append(buckets[i].Tasks, task)
	}

	for i := range buckets {
		sortNewestFirst(buckets[i].Tasks)
	}
	return buckets
}

func sortNewestFirst(tasks []models.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}
