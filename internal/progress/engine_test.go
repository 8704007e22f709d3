package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fieldwork/taskd/internal/models"
	"github.com/fieldwork/taskd/internal/notify"
	"github.com/fieldwork/taskd/internal/storage"
)

type fakeTaskStore struct {
	tasks map[primitive.ObjectID]models.Task
}

func (f *fakeTaskStore) GetTask(_ context.Context, id primitive.ObjectID) (models.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return models.Task{}, storage.ErrNotFound
	}
	return t, nil
}

func (f *fakeTaskStore) ListTasksByProject(_ context.Context, projectID primitive.ObjectID) ([]models.Task, error) {
	var out []models.Task
	for _, t := range f.tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeProjectStore struct {
	project   models.Project
	updateErr error
	updates   int
}

func (f *fakeProjectStore) GetProject(_ context.Context, id primitive.ObjectID) (models.Project, error) {
	if id != f.project.ID {
		return models.Project{}, storage.ErrNotFound
	}
	return f.project, nil
}

func (f *fakeProjectStore) UpdateProjectFields(_ context.Context, id primitive.ObjectID, fields bson.M) (models.Project, error) {
	if f.updateErr != nil {
		return models.Project{}, f.updateErr
	}
	if id != f.project.ID {
		return models.Project{}, storage.ErrNotFound
	}
	f.updates++
	if v, ok := fields["tasks_count"].(int); ok {
		f.project.TasksCount = v
	}
	if v, ok := fields["completed_tasks"].(int); ok {
		f.project.CompletedTasks = v
	}
	if v, ok := fields["completion_percentage"].(int); ok {
		f.project.CompletionPercentage = v
	}
	if v, ok := fields["status"].(models.ProjectStatus); ok {
		f.project.Status = v
	}
	if v, ok := fields["end_date"].(*time.Time); ok {
		f.project.EndDate = v
	}
	return f.project, nil
}

type notification struct {
	userID primitive.ObjectID
	role   models.Role
}

type fakeNotifier struct {
	userCalls []notification
	roleCalls []notification
}

func (f *fakeNotifier) NotifyUser(_ context.Context, userID primitive.ObjectID, _ notify.Payload) (models.Notification, error) {
	f.userCalls = append(f.userCalls, notification{userID: userID})
	return models.Notification{ID: primitive.NewObjectID()}, nil
}

func (f *fakeNotifier) NotifyRole(_ context.Context, role models.Role, _ notify.Payload) ([]models.Notification, error) {
	f.roleCalls = append(f.roleCalls, notification{role: role})
	return nil, nil
}

type fixture struct {
	engine   *Engine
	tasks    *fakeTaskStore
	projects *fakeProjectStore
	notifier *fakeNotifier
	taskIDs  []primitive.ObjectID
}

func newFixture(t *testing.T, taskCount int) *fixture {
	t.Helper()
	managerID := primitive.NewObjectID()
	project := models.Project{
		ID:        primitive.NewObjectID(),
		Name:      "refit",
		ManagerID: managerID,
		Status:    models.ProjectPlanning,
	}
	tasks := &fakeTaskStore{tasks: map[primitive.ObjectID]models.Task{}}
	var ids []primitive.ObjectID
	for i := 0; i < taskCount; i++ {
		id := primitive.NewObjectID()
		tasks.tasks[id] = models.Task{ID: id, ProjectID: project.ID, Status: models.TaskAssigned}
		ids = append(ids, id)
	}
	projects := &fakeProjectStore{project: project}
	notifier := &fakeNotifier{}
	return &fixture{
		engine:   NewEngine(tasks, projects, notifier, nil),
		tasks:    tasks,
		projects: projects,
		notifier: notifier,
		taskIDs:  ids,
	}
}

func (f *fixture) setStatus(id primitive.ObjectID, status models.TaskStatus) {
	task := f.tasks.tasks[id]
	task.Status = status
	f.tasks.tasks[id] = task
}

func TestPropagationScenarioFourTasks(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	// All assigned: 0%, still planning.
	p, err := f.engine.PropagateTaskChange(ctx, f.taskIDs[0])
	require.NoError(t, err)
	assert.Equal(t, 0, p.CompletionPercentage)
	assert.Equal(t, models.ProjectPlanning, p.Status)

	// First completion moves the project to in-progress at 25%.
	f.setStatus(f.taskIDs[0], models.TaskCompleted)
	p, err = f.engine.PropagateTaskChange(ctx, f.taskIDs[0])
	require.NoError(t, err)
	assert.Equal(t, 1, p.CompletedTasks)
	assert.Equal(t, 4, p.TasksCount)
	assert.Equal(t, 25, p.CompletionPercentage)
	assert.Equal(t, models.ProjectInProgress, p.Status)

	// Completing the rest finishes the project and stamps the end date.
	for _, id := range f.taskIDs[1:] {
		f.setStatus(id, models.TaskCompleted)
		p, err = f.engine.PropagateTaskChange(ctx, id)
		require.NoError(t, err)
	}
	assert.Equal(t, 100, p.CompletionPercentage)
	assert.Equal(t, models.ProjectCompleted, p.Status)
	require.NotNil(t, p.EndDate)

	// Reopening one task reverts the project to in-progress at 75%.
	f.setStatus(f.taskIDs[3], models.TaskInProgress)
	p, err = f.engine.PropagateTaskChange(ctx, f.taskIDs[3])
	require.NoError(t, err)
	assert.Equal(t, 3, p.CompletedTasks)
	assert.Equal(t, 75, p.CompletionPercentage)
	assert.Equal(t, models.ProjectInProgress, p.Status)
}

func TestPropagationIsIdempotent(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	f.setStatus(f.taskIDs[0], models.TaskCompleted)

	first, err := f.engine.PropagateTaskChange(ctx, f.taskIDs[0])
	require.NoError(t, err)
	second, err := f.engine.PropagateTaskChange(ctx, f.taskIDs[0])
	require.NoError(t, err)

	assert.Equal(t, first.TasksCount, second.TasksCount)
	assert.Equal(t, first.CompletedTasks, second.CompletedTasks)
	assert.Equal(t, first.CompletionPercentage, second.CompletionPercentage)
	assert.Equal(t, first.Status, second.Status)
}

func TestPropagationEmptyProjectIsZero(t *testing.T) {
	f := newFixture(t, 0)
	p, err := f.engine.Recompute(context.Background(), f.projects.project.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, p.TasksCount)
	assert.Equal(t, 0, p.CompletionPercentage)
	assert.Equal(t, models.ProjectPlanning, p.Status)
}

func TestPropagationRoundsPercentage(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	f.setStatus(f.taskIDs[0], models.TaskCompleted)
	f.setStatus(f.taskIDs[1], models.TaskCompleted)

	p, err := f.engine.PropagateTaskChange(ctx, f.taskIDs[0])
	require.NoError(t, err)
	// round(100 * 2/3) = 67
	assert.Equal(t, 67, p.CompletionPercentage)
}

func TestDelayedAndOnHoldAreSticky(t *testing.T) {
	for _, sticky := range []models.ProjectStatus{models.ProjectDelayed, models.ProjectOnHold} {
		f := newFixture(t, 2)
		f.projects.project.Status = sticky
		f.setStatus(f.taskIDs[0], models.TaskCompleted)

		p, err := f.engine.PropagateTaskChange(context.Background(), f.taskIDs[0])
		require.NoError(t, err)
		assert.Equal(t, sticky, p.Status, "a completed task must not override %s", sticky)
		assert.Equal(t, 50, p.CompletionPercentage)
	}
}

func TestDelayedTaskDoesNotChangeProjectStatus(t *testing.T) {
	f := newFixture(t, 2)
	f.setStatus(f.taskIDs[0], models.TaskDelayed)

	p, err := f.engine.PropagateTaskChange(context.Background(), f.taskIDs[0])
	require.NoError(t, err)
	assert.Equal(t, models.ProjectPlanning, p.Status)
	assert.Equal(t, 0, p.CompletionPercentage)
}

func TestNotifiesOnlyOnLifecycleTransition(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	// Planning -> in-progress: one transition, one manager + one role notify.
	f.setStatus(f.taskIDs[0], models.TaskCompleted)
	_, err := f.engine.PropagateTaskChange(ctx, f.taskIDs[0])
	require.NoError(t, err)
	assert.Len(t, f.notifier.userCalls, 1)
	assert.Equal(t, f.projects.project.ManagerID, f.notifier.userCalls[0].userID)
	require.Len(t, f.notifier.roleCalls, 1)
	assert.Equal(t, models.RoleSuperadmin, f.notifier.roleCalls[0].role)

	// A pure percentage tick stays quiet.
	f.setStatus(f.taskIDs[1], models.TaskCompleted)
	_, err = f.engine.PropagateTaskChange(ctx, f.taskIDs[1])
	require.NoError(t, err)
	assert.Len(t, f.notifier.userCalls, 1)
	assert.Len(t, f.notifier.roleCalls, 1)
}

func TestEndDateIsSetOnce(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	f.setStatus(f.taskIDs[0], models.TaskCompleted)
	p, err := f.engine.PropagateTaskChange(ctx, f.taskIDs[0])
	require.NoError(t, err)
	require.NotNil(t, p.EndDate)
	first := *p.EndDate

	// Reopen and complete again: the original completion stamp survives.
	f.setStatus(f.taskIDs[0], models.TaskInProgress)
	_, err = f.engine.PropagateTaskChange(ctx, f.taskIDs[0])
	require.NoError(t, err)
	f.setStatus(f.taskIDs[0], models.TaskCompleted)
	p, err = f.engine.PropagateTaskChange(ctx, f.taskIDs[0])
	require.NoError(t, err)
	require.NotNil(t, p.EndDate)
	assert.Equal(t, first, *p.EndDate)
}

func TestCompletedProjectReopensEvenWithNoCompletedTasks(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	f.setStatus(f.taskIDs[0], models.TaskCompleted)
	p, err := f.engine.PropagateTaskChange(ctx, f.taskIDs[0])
	require.NoError(t, err)
	require.Equal(t, models.ProjectCompleted, p.Status)

	// Resetting the only task all the way back to assigned leaves zero
	// completed tasks. Completed still yields to in-progress: the status is
	// derived, and a project with open work is no longer finished.
	f.setStatus(f.taskIDs[0], models.TaskAssigned)
	p, err = f.engine.PropagateTaskChange(ctx, f.taskIDs[0])
	require.NoError(t, err)
	assert.Equal(t, models.ProjectInProgress, p.Status)
	assert.Equal(t, 0, p.CompletedTasks)

	// Same when the last task is deleted outright.
	f.projects.project.Status = models.ProjectCompleted
	delete(f.tasks.tasks, f.taskIDs[0])
	p, err = f.engine.Recompute(ctx, f.projects.project.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectInProgress, p.Status)
	assert.Equal(t, 0, p.TasksCount)
}

func TestForgetReleasesProjectLock(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.engine.Recompute(context.Background(), f.projects.project.ID)
	require.NoError(t, err)
	require.Len(t, f.engine.locks, 1)

	f.engine.Forget(f.projects.project.ID)
	assert.Empty(t, f.engine.locks)

	// Forgetting an id with no lock is a no-op.
	f.engine.Forget(primitive.NewObjectID())
	assert.Empty(t, f.engine.locks)
}

func TestPropagateUnknownTaskIsNotFound(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.engine.PropagateTaskChange(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPersistenceFailureSurfacesToCaller(t *testing.T) {
	f := newFixture(t, 1)
	f.projects.updateErr = errors.New("write rejected")
	f.setStatus(f.taskIDs[0], models.TaskCompleted)

	_, err := f.engine.PropagateTaskChange(context.Background(), f.taskIDs[0])
	require.Error(t, err)
	assert.Empty(t, f.notifier.userCalls, "no notification without persisted state")
}
