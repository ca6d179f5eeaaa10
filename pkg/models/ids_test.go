package models_test

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskboard/taskboard.go/pkg/models"
)

func TestTaskIDJSON(t *testing.T) {
	raw := uuid.New()
	id := models.NewTaskIDFromUUID(raw)

	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"`+raw.String()+`"`, string(data))

	var back models.TaskID
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, id, back)
}

func TestParseTaskID(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		id, err := models.ParseTaskID("01963099-0000-7000-8000-000000000001")
		require.NoError(t, err)
		assert.False(t, id.IsZero())
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := models.ParseTaskID("not-a-uuid")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid task ID")
	})
}

func TestIDZeroValues(t *testing.T) {
	assert.True(t, models.TaskID{}.IsZero())
	assert.True(t, models.ProjectID{}.IsZero())
	assert.True(t, models.WorkspaceID{}.IsZero())
	assert.True(t, models.ProcessID{}.IsZero())
	assert.True(t, models.NoteID{}.IsZero())
	assert.False(t, models.NewTaskID().IsZero())
}

func TestTaskJSONFieldNames(t *testing.T) {
	task := models.Task{
		ID:        models.NewTaskID(),
		ProjectID: models.NewProjectID(),
		Title:     "wire the stream",
		Status:    models.StatusTodo,
	}

	data, err := json.Marshal(task)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, field := range []string{"id", "project_id", "title", "status", "created_at", "updated_at"} {
		assert.Contains(t, m, field)
	}
	assert.Equal(t, "todo", m["status"])
}

func TestTaskStatusValid(t *testing.T) {
	for _, s := range models.AllTaskStatuses {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, models.TaskStatus("archived").Valid())
}
