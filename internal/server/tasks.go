package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fieldwork/taskd/internal/auth"
	"github.com/fieldwork/taskd/internal/models"
	"github.com/fieldwork/taskd/internal/notify"
)

type createTaskRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	AssignedTo  string     `json:"assigned_to" binding:"required"`
	DueDate     *time.Time `json:"due_date"`
}

type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Progress    *int    `json:"progress"`
	DelayReason *string `json:"delay_reason"`
	Comment     *string `json:"comment"`
}

// handleListTasks fetches the tasks of a project visible to the caller.
func (s *Server) handleListTasks(c *gin.Context) {
	project, ok := s.loadVisibleProject(c)
	if !ok {
		return
	}
	tasks, err := s.store.ListTasksByProject(c.Request.Context(), project.ID)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": tasks})
}

// handleMyTasks returns the tasks assigned to the caller.
func (s *Server) handleMyTasks(c *gin.Context) {
	tasks, err := s.store.ListTasksByAssignee(c.Request.Context(), auth.UserIDFrom(c))
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": tasks})
}

// handleCreateTask assigns a new task to a technician, recomputes the
// project and notifies the assignee.
func (s *Server) handleCreateTask(c *gin.Context) {
	project, ok := s.loadVisibleProject(c)
	if !ok {
		return
	}

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	assigneeID, err := primitive.ObjectIDFromHex(req.AssignedTo)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("invalid assignee id"))
		return
	}
	assignee, err := s.store.GetUser(c.Request.Context(), assigneeID)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if assignee.Role != models.RoleTechnician || !assignee.Active {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("tasks are assigned to active technicians"))
		return
	}

	task, err := s.store.CreateTask(c.Request.Context(), models.Task{
		Title:       req.Title,
		Description: req.Description,
		ProjectID:   project.ID,
		AssignedTo:  assigneeID,
		AssignedBy:  auth.UserIDFrom(c),
		Status:      models.TaskAssigned,
		DueDate:     req.DueDate,
	})
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	summary, err := s.progress.Recompute(c.Request.Context(), project.ID)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}

	if _, err := s.dispatcher.NotifyUser(c.Request.Context(), assigneeID, notify.Payload{
		Title:    "New task assigned",
		Message:  fmt.Sprintf("Task %q was assigned to you in project %q", task.Title, project.Name),
		Type:     models.NotifyInfo,
		Priority: models.PriorityMedium,
		Category: "task",
	}); err != nil {
		s.logger.Error("task assignment notification failed", slog.String("error", err.Error()))
	}

	respondSuccess(c, http.StatusCreated, gin.H{"task": task, "project": summary})
}

// handleGetTask returns one task visible to the caller.
func (s *Server) handleGetTask(c *gin.Context) {
	task, _, ok := s.loadEditableTask(c)
	if !ok {
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleUpdateTask mutates task fields. A status change enforces the
// progress invariants and the delay-reason requirement, appends to the
// status log, recomputes the owning project and notifies the counterparty.
func (s *Server) handleUpdateTask(c *gin.Context) {
	task, project, ok := s.loadEditableTask(c)
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	// Rejections happen before any write: no recompute and no notification.
	mut, err := resolveTaskMutation(task, req)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	status := mut.status

	fields := bson.M{}
	if req.Title != nil && *req.Title != "" {
		fields["title"] = *req.Title
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}

	statusChanged := mut.statusChanged
	progressChanged := mut.progressChanged
	if statusChanged || progressChanged {
		fields["status"] = mut.status
		fields["progress"] = mut.progress
	}
	if status == models.TaskDelayed {
		if req.DelayReason != nil && *req.DelayReason != "" {
			fields["delay_reason"] = *req.DelayReason
		}
	} else if statusChanged && task.Status == models.TaskDelayed {
		fields["delay_reason"] = ""
	}
	if len(fields) == 0 {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("no fields to update"))
		return
	}

	updated, err := s.store.UpdateTaskFields(c.Request.Context(), task.ID, fields)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	if statusChanged {
		entry := models.StatusLogEntry{
			Status:    status,
			ChangedBy: auth.UserIDFrom(c),
			ChangedAt: time.Now().UTC(),
		}
		if req.Comment != nil {
			entry.Comment = *req.Comment
		}
		if err := s.store.AppendStatusLog(c.Request.Context(), task.ID, entry); err != nil {
			s.logger.Error("status log append failed",
				slog.String("task", task.ID.Hex()), slog.String("error", err.Error()))
		}
	}

	var summary models.Project
	if statusChanged || progressChanged {
		summary, err = s.progress.PropagateTaskChange(c.Request.Context(), task.ID)
		if err != nil {
			// The task write is already committed; surface the stale
			// derived state instead of masking it.
			s.respondError(c, http.StatusInternalServerError, err)
			return
		}
	} else {
		summary = project
	}

	if statusChanged {
		s.notifyTaskStatusChange(c, updated, project, status)
	}

	respondSuccess(c, http.StatusOK, gin.H{"task": updated, "project": summary})
}

// handleDeleteTask removes a task and recomputes the project.
func (s *Server) handleDeleteTask(c *gin.Context) {
	task, _, ok := s.loadEditableTask(c)
	if !ok {
		return
	}
	if err := s.store.DeleteTask(c.Request.Context(), task.ID); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	summary, err := s.progress.Recompute(c.Request.Context(), task.ProjectID)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted", "project": summary})
}

// taskMutation is the validated outcome of an update request applied to the
// task's current state.
type taskMutation struct {
	status          models.TaskStatus
	progress        int
	statusChanged   bool
	progressChanged bool
}

// resolveTaskMutation validates the requested status/progress change against
// the task invariants: progress = 100 iff completed, progress = 0 iff
// assigned, and a delay reason required exactly when entering delayed.
func resolveTaskMutation(task models.Task, req updateTaskRequest) (taskMutation, error) {
	status := task.Status
	progress := task.Progress

	if req.Status != nil {
		status = models.TaskStatus(*req.Status)
		if _, valid := models.ValidTaskStatuses[status]; !valid {
			return taskMutation{}, fmt.Errorf("invalid task status %q", *req.Status)
		}
	}
	if req.Progress != nil {
		if *req.Progress < 0 || *req.Progress > 100 {
			return taskMutation{}, fmt.Errorf("progress must be between 0 and 100")
		}
		progress = *req.Progress
	}

	// Progress 100 without an explicit status means completion.
	if req.Status == nil && progress == 100 {
		status = models.TaskCompleted
	}
	if forced := models.ProgressForStatus(status); forced >= 0 {
		progress = forced
	} else if progress == 100 {
		return taskMutation{}, fmt.Errorf("progress 100 requires completed status")
	}

	if status == models.TaskDelayed && task.Status != models.TaskDelayed {
		if req.DelayReason == nil || *req.DelayReason == "" {
			return taskMutation{}, fmt.Errorf("delay reason is required for delayed tasks")
		}
	}

	return taskMutation{
		status:          status,
		progress:        progress,
		statusChanged:   status != task.Status,
		progressChanged: progress != task.Progress,
	}, nil
}

// loadEditableTask loads the :id task and authorizes the caller: the
// assignee, the owning project's manager, or a superadmin.
func (s *Server) loadEditableTask(c *gin.Context) (models.Task, models.Project, bool) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return models.Task{}, models.Project{}, false
	}
	task, err := s.store.GetTask(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, http.StatusNotFound, err)
		return models.Task{}, models.Project{}, false
	}
	project, err := s.store.GetProject(c.Request.Context(), task.ProjectID)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return models.Task{}, models.Project{}, false
	}

	caller := auth.UserIDFrom(c)
	switch {
	case auth.RoleFrom(c) == models.RoleSuperadmin:
	case task.AssignedTo == caller:
	case project.ManagerID == caller:
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "task not accessible"})
		return models.Task{}, models.Project{}, false
	}
	return task, project, true
}

// notifyTaskStatusChange informs the counterparty of a status transition:
// the manager when the assignee acted, the assignee when the manager acted.
// Delays go out with raised priority.
func (s *Server) notifyTaskStatusChange(c *gin.Context, task models.Task, project models.Project, status models.TaskStatus) {
	payload := notify.Payload{
		Title:    "Task status changed",
		Message:  fmt.Sprintf("Task %q in project %q is now %s", task.Title, project.Name, status),
		Type:     models.NotifyInfo,
		Priority: models.PriorityMedium,
		Category: "task",
	}
	switch status {
	case models.TaskCompleted:
		payload.Type = models.NotifySuccess
	case models.TaskDelayed:
		payload.Type = models.NotifyWarning
		payload.Priority = models.PriorityHigh
		payload.Message = fmt.Sprintf("Task %q in project %q is delayed: %s", task.Title, project.Name, task.DelayReason)
	}

	caller := auth.UserIDFrom(c)
	recipient := project.ManagerID
	if caller == project.ManagerID {
		recipient = task.AssignedTo
	}
	if recipient == caller {
		return
	}
	if _, err := s.dispatcher.NotifyUser(c.Request.Context(), recipient, payload); err != nil {
		s.logger.Error("task status notification failed",
			slog.String("task", task.ID.Hex()), slog.String("error", err.Error()))
	}
}
