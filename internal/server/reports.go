package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fieldwork/taskd/internal/auth"
	"github.com/fieldwork/taskd/internal/models"
)

// handleGenerateReport renders the current project state to a PDF file and
// records it.
func (s *Server) handleGenerateReport(c *gin.Context) {
	project, ok := s.loadVisibleProject(c)
	if !ok {
		return
	}
	tasks, err := s.store.ListTasksByProject(c.Request.Context(), project.ID)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	manager, err := s.store.GetUser(c.Request.Context(), project.ManagerID)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}

	fileName, err := s.reports.Generate(project, tasks, manager)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	report, err := s.store.CreateReport(c.Request.Context(), models.Report{
		ProjectID:   project.ID,
		GeneratedBy: auth.UserIDFrom(c),
		FileName:    fileName,
	})
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"report": report})
}

// handleListReports returns a project's report records.
func (s *Server) handleListReports(c *gin.Context) {
	project, ok := s.loadVisibleProject(c)
	if !ok {
		return
	}
	reports, err := s.store.ListReportsByProject(c.Request.Context(), project.ID)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"reports": reports})
}

// handleDownloadReport streams a generated PDF back to the client. The
// caller must be able to see the report's project, not just any project.
func (s *Server) handleDownloadReport(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	report, err := s.store.GetReport(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, http.StatusNotFound, err)
		return
	}
	project, err := s.store.GetProject(c.Request.Context(), report.ProjectID)
	if err != nil {
		s.respondError(c, http.StatusNotFound, err)
		return
	}
	if !reportVisibleTo(auth.RoleFrom(c), auth.UserIDFrom(c), project) {
		c.JSON(http.StatusForbidden, gin.H{"error": "report not accessible"})
		return
	}
	c.FileAttachment(s.reports.Path(report.FileName), report.FileName)
}

// reportVisibleTo decides whether a caller may read a project's reports:
// superadmins for any project, managers only for their own.
func reportVisibleTo(role models.Role, caller primitive.ObjectID, project models.Project) bool {
	switch role {
	case models.RoleSuperadmin:
		return true
	case models.RoleManager:
		return project.ManagerID == caller
	}
	return false
}
