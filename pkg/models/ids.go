package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ProjectID is a typed ID for projects
type ProjectID struct {
	uuid uuid.UUID
}

func NewProjectID() ProjectID {
	return ProjectID{uuid: uuid.New()}
}

func NewProjectIDFromUUID(id uuid.UUID) ProjectID {
	return ProjectID{uuid: id}
}

func ParseProjectID(s string) (ProjectID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ProjectID{}, fmt.Errorf("invalid project ID: %w", err)
	}
	return ProjectID{uuid: id}, nil
}

func (p ProjectID) UUID() uuid.UUID { return p.uuid }
func (p ProjectID) String() string  { return p.uuid.String() }
func (p ProjectID) IsZero() bool    { return p.uuid == uuid.Nil }

func (p ProjectID) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.uuid.String())
}

func (p *ProjectID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	p.uuid = id
	return nil
}

// TaskID is a typed ID for tasks
type TaskID struct {
	uuid uuid.UUID
}

func NewTaskID() TaskID {
	return TaskID{uuid: uuid.New()}
}

func NewTaskIDFromUUID(id uuid.UUID) TaskID {
	return TaskID{uuid: id}
}

func ParseTaskID(s string) (TaskID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return TaskID{}, fmt.Errorf("invalid task ID: %w", err)
	}
	return TaskID{uuid: id}, nil
}

func (t TaskID) UUID() uuid.UUID { return t.uuid }
func (t TaskID) String() string  { return t.uuid.String() }
func (t TaskID) IsZero() bool    { return t.uuid == uuid.Nil }

func (t TaskID) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.uuid.String())
}

func (t *TaskID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	t.uuid = id
	return nil
}

// WorkspaceID is a typed ID for workspaces
type WorkspaceID struct {
	uuid uuid.UUID
}

func NewWorkspaceID() WorkspaceID {
	return WorkspaceID{uuid: uuid.New()}
}

func NewWorkspaceIDFromUUID(id uuid.UUID) WorkspaceID {
	return WorkspaceID{uuid: id}
}

func ParseWorkspaceID(s string) (WorkspaceID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return WorkspaceID{}, fmt.Errorf("invalid workspace ID: %w", err)
	}
	return WorkspaceID{uuid: id}, nil
}

func (w WorkspaceID) UUID() uuid.UUID { return w.uuid }
func (w WorkspaceID) String() string  { return w.uuid.String() }
func (w WorkspaceID) IsZero() bool    { return w.uuid == uuid.Nil }

func (w WorkspaceID) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.uuid.String())
}

func (w *WorkspaceID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	w.uuid = id
	return nil
}

// ProcessID is a typed ID for execution processes
type ProcessID struct {
	uuid uuid.UUID
}

func NewProcessID() ProcessID {
	return ProcessID{uuid: uuid.New()}
}

func NewProcessIDFromUUID(id uuid.UUID) ProcessID {
	return ProcessID{uuid: id}
}

func ParseProcessID(s string) (ProcessID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ProcessID{}, fmt.Errorf("invalid process ID: %w", err)
	}
	return ProcessID{uuid: id}, nil
}

func (p ProcessID) UUID() uuid.UUID { return p.uuid }
func (p ProcessID) String() string  { return p.uuid.String() }
func (p ProcessID) IsZero() bool    { return p.uuid == uuid.Nil }

func (p ProcessID) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.uuid.String())
}

func (p *ProcessID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	p.uuid = id
	return nil
}

// NoteID is a typed ID for scratch notes
type NoteID struct {
	uuid uuid.UUID
}

func NewNoteID() NoteID {
	return NoteID{uuid: uuid.New()}
}

func NewNoteIDFromUUID(id uuid.UUID) NoteID {
	return NoteID{uuid: id}
}

func ParseNoteID(s string) (NoteID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return NoteID{}, fmt.Errorf("invalid note ID: %w", err)
	}
	return NoteID{uuid: id}, nil
}

func (n NoteID) UUID() uuid.UUID { return n.uuid }
func (n NoteID) String() string  { return n.uuid.String() }
func (n NoteID) IsZero() bool    { return n.uuid == uuid.Nil }

func (n NoteID) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.uuid.String())
}

func (n *NoteID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	n.uuid = id
	return nil
}
