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

type createProjectRequest struct {
	Name        string     `json:"name" binding:"required"`
	Description string     `json:"description"`
	ManagerID   string     `json:"manager_id" binding:"required"`
	StartDate   *time.Time `json:"start_date"`
}

// Derived fields (counts, percentage) are deliberately absent: a client can
// never set them.
type updateProjectRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	ManagerID   *string    `json:"manager_id"`
	Status      *string    `json:"status"`
	StartDate   *time.Time `json:"start_date"`
}

// handleListProjects returns all projects for a superadmin and the manager's
// own projects otherwise.
func (s *Server) handleListProjects(c *gin.Context) {
	var (
		projects []models.Project
		err      error
	)
	switch auth.RoleFrom(c) {
	case models.RoleSuperadmin:
		projects, err = s.store.ListProjects(c.Request.Context())
	case models.RoleManager:
		projects, err = s.store.ListProjectsByManager(c.Request.Context(), auth.UserIDFrom(c))
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
		return
	}
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"projects": projects})
}

// handleCreateProject creates a project and notifies the assigned manager.
func (s *Server) handleCreateProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	managerID, err := primitive.ObjectIDFromHex(req.ManagerID)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("invalid manager id"))
		return
	}
	manager, err := s.store.GetUser(c.Request.Context(), managerID)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if manager.Role != models.RoleManager {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("assignee %s is not a manager", manager.Email))
		return
	}

	project, err := s.store.CreateProject(c.Request.Context(), models.Project{
		Name:        req.Name,
		Description: req.Description,
		ManagerID:   managerID,
		StartDate:   req.StartDate,
	})
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	if _, err := s.dispatcher.NotifyUser(c.Request.Context(), managerID, notify.Payload{
		Title:    "Project assigned",
		Message:  fmt.Sprintf("You were assigned project %q", project.Name),
		Type:     models.NotifyInfo,
		Priority: models.PriorityMedium,
		Category: "project",
	}); err != nil {
		s.logger.Error("project assignment notification failed", slog.String("error", err.Error()))
	}
	respondSuccess(c, http.StatusCreated, gin.H{"project": project})
}

// handleGetProject returns one project visible to the caller.
func (s *Server) handleGetProject(c *gin.Context) {
	project, ok := s.loadVisibleProject(c)
	if !ok {
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": project})
}

// handleUpdateProject applies a partial update. Superadmins may edit any
// project and reassign the manager; the owning manager may edit name,
// description and the human-set statuses (delayed, on-hold, planning,
// in-progress). Derived fields are not bindable.
func (s *Server) handleUpdateProject(c *gin.Context) {
	project, ok := s.loadVisibleProject(c)
	if !ok {
		return
	}

	var req updateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	fields := bson.M{}
	if req.Name != nil && *req.Name != "" {
		fields["name"] = *req.Name
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.StartDate != nil {
		fields["start_date"] = *req.StartDate
	}
	if req.ManagerID != nil {
		if auth.RoleFrom(c) != models.RoleSuperadmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "only a superadmin reassigns managers"})
			return
		}
		managerID, err := primitive.ObjectIDFromHex(*req.ManagerID)
		if err != nil {
			s.respondError(c, http.StatusBadRequest, fmt.Errorf("invalid manager id"))
			return
		}
		fields["manager_id"] = managerID
	}
	if req.Status != nil {
		status := models.ProjectStatus(*req.Status)
		if _, valid := models.ValidProjectStatuses[status]; !valid {
			s.respondError(c, http.StatusBadRequest, fmt.Errorf("invalid project status %q", *req.Status))
			return
		}
		// Completed is derived from the task set, never set by hand.
		if status == models.ProjectCompleted {
			s.respondError(c, http.StatusBadRequest, fmt.Errorf("completed is derived from tasks"))
			return
		}
		fields["status"] = status
	}
	if len(fields) == 0 {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("no fields to update"))
		return
	}

	updated, err := s.store.UpdateProjectFields(c.Request.Context(), project.ID, fields)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": updated})
}

// handleDeleteProject removes a project; tasks and reports cascade.
func (s *Server) handleDeleteProject(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteProject(c.Request.Context(), id); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	s.progress.Forget(id)
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

// loadVisibleProject loads the :id project and enforces visibility: the
// superadmin sees all, a manager only their own, a technician only projects
// they hold a task in.
func (s *Server) loadVisibleProject(c *gin.Context) (models.Project, bool) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return models.Project{}, false
	}
	project, err := s.store.GetProject(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, http.StatusNotFound, err)
		return models.Project{}, false
	}

	switch auth.RoleFrom(c) {
	case models.RoleSuperadmin:
		return project, true
	case models.RoleManager:
		if project.ManagerID == auth.UserIDFrom(c) {
			return project, true
		}
	case models.RoleTechnician:
		tasks, err := s.store.ListTasksByAssignee(c.Request.Context(), auth.UserIDFrom(c))
		if err == nil {
			for _, t := range tasks {
				if t.ProjectID == project.ID {
					return project, true
				}
			}
		}
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "project not accessible"})
	return models.Project{}, false
}
