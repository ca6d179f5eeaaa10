package models

import (
	"time"
)

type Project struct {
	ID        ProjectID `json:"id"`
	Name      string    `json:"name"`
	RepoPath  string    `json:"repo_path"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Workspace groups projects for display; the workspace stream mirrors all
// of them at once.
type Workspace struct {
	ID        WorkspaceID `json:"id"`
	Name      string      `json:"name"`
	Projects  []Project   `json:"projects"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type ScratchNote struct {
	ID          NoteID      `json:"id"`
	WorkspaceID WorkspaceID `json:"workspace_id"`
	Content     string      `json:"content"`
	Pinned      bool        `json:"pinned"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// CreateScratchNote is the request body for creating a note. The client
// may pre-assign the id so the optimistic row and the synced row share a key.
type CreateScratchNote struct {
	ID          *NoteID     `json:"id,omitempty"`
	WorkspaceID WorkspaceID `json:"workspace_id"`
	Content     string      `json:"content"`
	Pinned      bool        `json:"pinned"`
}

// UpdateScratchNote is the sparse request body for patching a note: only
// non-nil fields are sent.
type UpdateScratchNote struct {
	Content *string `json:"content,omitempty"`
	Pinned  *bool   `json:"pinned,omitempty"`
}

type ProcessStatus string

const (
	ProcessRunning   ProcessStatus = "running"
	ProcessCompleted ProcessStatus = "completed"
	ProcessFailed    ProcessStatus = "failed"
	ProcessKilled    ProcessStatus = "killed"
)

type ExecutionProcess struct {
	ID          ProcessID     `json:"id"`
	TaskID      TaskID        `json:"task_id"`
	Status      ProcessStatus `json:"status"`
	ExitCode    *int64        `json:"exit_code"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at"`
}

// TaskTag links a task to a tag. It carries no id of its own; its identity
// is the (tag_id, task_id) pair.
type TaskTag struct {
	TaskID string `json:"task_id"`
	TagID  string `json:"tag_id"`
}

// DirectoryEntry is one row of a filesystem listing.
type DirectoryEntry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
}
