// Package models holds the entities mirrored from a board server and the
// typed ids used to address them. JSON field names match the server's
// snake_case wire format; timestamps are RFC3339.
package models

import (
	"time"
)

// TaskStatus is the lifecycle column a task sits in on the board.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "inprogress"
	StatusInReview   TaskStatus = "inreview"
	StatusDone       TaskStatus = "done"
	StatusCancelled  TaskStatus = "cancelled"
)

// AllTaskStatuses is the fixed board column order.
var AllTaskStatuses = []TaskStatus{
	StatusTodo,
	StatusInProgress,
	StatusInReview,
	StatusDone,
	StatusCancelled,
}

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusInReview, StatusDone, StatusCancelled:
		return true
	}
	return false
}

func (s TaskStatus) String() string { return string(s) }

type Task struct {
	ID          TaskID     `json:"id"`
	ProjectID   ProjectID  `json:"project_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      TaskStatus `json:"status"`

	// ParentTaskAttempt links a follow-up task back to the attempt that
	// spawned it. Nil for tasks created directly on the board.
	ParentTaskAttempt *string `json:"parent_task_attempt"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateTask is the request body for creating a task. The server assigns
// id and timestamps; status defaults to todo when omitted.
type CreateTask struct {
	ProjectID         ProjectID   `json:"project_id"`
	Title             string      `json:"title"`
	Description       *string     `json:"description,omitempty"`
	Status            *TaskStatus `json:"status,omitempty"`
	ParentTaskAttempt *string     `json:"parent_task_attempt,omitempty"`
}

// UpdateTask is the sparse request body for patching a task: only non-nil
// fields are sent, so an absent field is "leave unchanged", not "clear".
type UpdateTask struct {
	Title             *string     `json:"title,omitempty"`
	Description       *string     `json:"description,omitempty"`
	Status            *TaskStatus `json:"status,omitempty"`
	ParentTaskAttempt *string     `json:"parent_task_attempt,omitempty"`
}
