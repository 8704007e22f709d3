package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldwork/taskd/internal/models"
)

func strptr(s string) *string { return &s }
func intptr(i int) *int       { return &i }

func TestResolveTaskMutationDelayRequiresReason(t *testing.T) {
	task := models.Task{Status: models.TaskInProgress, Progress: 40}

	_, err := resolveTaskMutation(task, updateTaskRequest{Status: strptr("delayed")})
	require.Error(t, err)

	_, err = resolveTaskMutation(task, updateTaskRequest{Status: strptr("delayed"), DelayReason: strptr("")})
	require.Error(t, err)

	mut, err := resolveTaskMutation(task, updateTaskRequest{Status: strptr("delayed"), DelayReason: strptr("parts missing")})
	require.NoError(t, err)
	assert.Equal(t, models.TaskDelayed, mut.status)
	assert.True(t, mut.statusChanged)
}

func TestResolveTaskMutationCompletionForcesProgress(t *testing.T) {
	task := models.Task{Status: models.TaskInProgress, Progress: 40}

	mut, err := resolveTaskMutation(task, updateTaskRequest{Status: strptr("completed")})
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, mut.status)
	assert.Equal(t, 100, mut.progress)
}

func TestResolveTaskMutationFullProgressMeansCompletion(t *testing.T) {
	task := models.Task{Status: models.TaskInProgress, Progress: 80}

	mut, err := resolveTaskMutation(task, updateTaskRequest{Progress: intptr(100)})
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, mut.status)
	assert.Equal(t, 100, mut.progress)
}

func TestResolveTaskMutationRejectsFullProgressOnOtherStatus(t *testing.T) {
	task := models.Task{Status: models.TaskInProgress, Progress: 80}

	_, err := resolveTaskMutation(task, updateTaskRequest{Status: strptr("in-progress"), Progress: intptr(100)})
	assert.Error(t, err)
}

func TestResolveTaskMutationReopenResetsProgress(t *testing.T) {
	task := models.Task{Status: models.TaskCompleted, Progress: 100}

	mut, err := resolveTaskMutation(task, updateTaskRequest{Status: strptr("assigned")})
	require.NoError(t, err)
	assert.Equal(t, models.TaskAssigned, mut.status)
	assert.Equal(t, 0, mut.progress)
}

func TestResolveTaskMutationRejectsUnknownStatusAndRange(t *testing.T) {
	task := models.Task{Status: models.TaskInProgress, Progress: 10}

	_, err := resolveTaskMutation(task, updateTaskRequest{Status: strptr("done")})
	assert.Error(t, err)

	_, err = resolveTaskMutation(task, updateTaskRequest{Progress: intptr(101)})
	assert.Error(t, err)

	_, err = resolveTaskMutation(task, updateTaskRequest{Progress: intptr(-1)})
	assert.Error(t, err)
}

func TestResolveTaskMutationNoChange(t *testing.T) {
	task := models.Task{Status: models.TaskInProgress, Progress: 40}

	mut, err := resolveTaskMutation(task, updateTaskRequest{Progress: intptr(40)})
	require.NoError(t, err)
	assert.False(t, mut.statusChanged)
	assert.False(t, mut.progressChanged)
}
