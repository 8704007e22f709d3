// Package progress implements the status-propagation engine: it keeps a
// project's derived fields consistent with its tasks' statuses and decides
// lifecycle transitions.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fieldwork/taskd/internal/models"
	"github.com/fieldwork/taskd/internal/notify"
)

// TaskStore is the slice of the document store the engine reads tasks from.
type TaskStore interface {
	GetTask(ctx context.Context, id primitive.ObjectID) (models.Task, error)
	ListTasksByProject(ctx context.Context, projectID primitive.ObjectID) ([]models.Task, error)
}

// ProjectStore reads and partially updates project documents.
type ProjectStore interface {
	GetProject(ctx context.Context, id primitive.ObjectID) (models.Project, error)
	UpdateProjectFields(ctx context.Context, id primitive.ObjectID, fields bson.M) (models.Project, error)
}

// Notifier is the dispatcher surface the engine publishes transitions to.
type Notifier interface {
	NotifyUser(ctx context.Context, userID primitive.ObjectID, p notify.Payload) (models.Notification, error)
	NotifyRole(ctx context.Context, role models.Role, p notify.Payload) ([]models.Notification, error)
}

// Engine recomputes project derived fields whenever a constituent task
// changes. Invocations are serialized per project id so two concurrent task
// mutations of the same project cannot overwrite each other's recompute with
// a stale task set.
type Engine struct {
	tasks    TaskStore
	projects ProjectStore
	notifier Notifier
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine constructs the engine; the dispatcher is injected, never reached
// through a global.
func NewEngine(tasks TaskStore, projects ProjectStore, notifier Notifier, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		tasks:    tasks,
		projects: projects,
		notifier: notifier,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (e *Engine) projectLock(id primitive.ObjectID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := id.Hex()
	l, ok := e.locks[key]
	if !ok {
		l = &sync.Mutex{}
		e.locks[key] = l
	}
	return l
}

// Forget drops the serialization lock of a deleted project so the lock map
// does not grow with every project ever recomputed.
func (e *Engine) Forget(projectID primitive.ObjectID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.locks, projectID.Hex())
}

// PropagateTaskChange recomputes and persists the derived state of the
// project owning the given task, and returns the updated project. Called
// after every task status or progress mutation.
func (e *Engine) PropagateTaskChange(ctx context.Context, taskID primitive.ObjectID) (models.Project, error) {
	task, err := e.tasks.GetTask(ctx, taskID)
	if err != nil {
		return models.Project{}, fmt.Errorf("load task %s: %w", taskID.Hex(), err)
	}
	return e.Recompute(ctx, task.ProjectID)
}

// Recompute reloads the full task set of a project, derives the aggregate
// fields, persists them in one document write and notifies on lifecycle
// transitions. Idempotent: with no intervening task change a second call
// derives and persists identical fields.
func (e *Engine) Recompute(ctx context.Context, projectID primitive.ObjectID) (models.Project, error) {
	lock := e.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	project, err := e.projects.GetProject(ctx, projectID)
	if err != nil {
		return models.Project{}, fmt.Errorf("load project %s: %w", projectID.Hex(), err)
	}

	// The full set, not just the mutated task, to avoid drift from partial
	// updates.
	tasks, err := e.tasks.ListTasksByProject(ctx, projectID)
	if err != nil {
		return models.Project{}, fmt.Errorf("load tasks of %s: %w", projectID.Hex(), err)
	}

	total := len(tasks)
	completed := 0
	for _, t := range tasks {
		if t.Status == models.TaskCompleted {
			completed++
		}
	}
	percentage := 0
	if total > 0 {
		percentage = int(math.Round(100 * float64(completed) / float64(total)))
	}

	newStatus, endDate := nextStatus(project, total, completed)

	fields := bson.M{
		"tasks_count":           total,
		"completed_tasks":       completed,
		"completion_percentage": percentage,
	}
	if newStatus != project.Status {
		fields["status"] = newStatus
	}
	if endDate != nil {
		fields["end_date"] = endDate
	}

	updated, err := e.projects.UpdateProjectFields(ctx, projectID, fields)
	if err != nil {
		return models.Project{}, fmt.Errorf("persist derived fields of %s: %w", projectID.Hex(), err)
	}

	// Only an actual lifecycle transition notifies; pure percentage ticks
	// stay quiet.
	if newStatus != project.Status {
		e.notifyTransition(ctx, updated, project.Status, newStatus)
	}
	return updated, nil
}

// nextStatus decides the project lifecycle transition, first match wins.
// Delayed and on-hold are sticky: people set them and people clear them.
func nextStatus(p models.Project, total, completed int) (models.ProjectStatus, *time.Time) {
	switch {
	case total > 0 && completed == total:
		if p.EndDate == nil {
			now := time.Now().UTC()
			return models.ProjectCompleted, &now
		}
		return models.ProjectCompleted, nil
	case p.Status == models.ProjectCompleted:
		// A reopened task moves a finished project back to in-progress.
		return models.ProjectInProgress, nil
	case completed > 0 && p.Status == models.ProjectPlanning:
		return models.ProjectInProgress, nil
	default:
		return p.Status, nil
	}
}

func (e *Engine) notifyTransition(ctx context.Context, p models.Project, from, to models.ProjectStatus) {
	payload := notify.Payload{
		Title:    "Project status changed",
		Message:  fmt.Sprintf("Project %q moved from %s to %s (%d%% complete)", p.Name, from, to, p.CompletionPercentage),
		Type:     models.NotifyInfo,
		Priority: models.PriorityMedium,
		Category: "project",
	}
	if to == models.ProjectCompleted {
		payload.Type = models.NotifySuccess
	}

	if _, err := e.notifier.NotifyUser(ctx, p.ManagerID, payload); err != nil {
		e.logger.Error("manager notification failed",
			slog.String("project", p.ID.Hex()), slog.String("error", err.Error()))
	}
	if _, err := e.notifier.NotifyRole(ctx, models.RoleSuperadmin, payload); err != nil {
		e.logger.Error("superadmin notification failed",
			slog.String("project", p.ID.Hex()), slog.String("error", err.Error()))
	}
}
