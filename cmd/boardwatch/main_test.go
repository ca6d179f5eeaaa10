package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskboard/taskboard.go/pkg/models"
)

func TestValidate(t *testing.T) {
	valid := config{
		endpoint: "http://localhost:8887",
		project:  models.NewProjectID().String(),
	}
	assert.NoError(t, valid.validate())

	noEndpoint := valid
	noEndpoint.endpoint = ""
	assert.ErrorContains(t, noEndpoint.validate(), "endpoint")

	noProject := valid
	noProject.project = ""
	assert.ErrorContains(t, noProject.validate(), "project id")

	badProject := valid
	badProject.project = "not-a-uuid"
	assert.ErrorContains(t, badProject.validate(), "invalid project ID")

	badStatuses := valid
	badStatuses.statuses = "todo,blocked"
	assert.ErrorContains(t, badStatuses.validate(), `unknown status "blocked"`)
}

func TestStatusOrder(t *testing.T) {
	cfg := config{}
	order, err := cfg.statusOrder()
	require.NoError(t, err)
	assert.Equal(t, models.AllTaskStatuses, order)

	cfg.statuses = "done, todo"
	order, err = cfg.statusOrder()
	require.NoError(t, err)
	assert.Equal(t, []models.TaskStatus{models.StatusDone, models.StatusTodo}, order)
}
