// Package server provides the HTTP handlers for the task management backend.
package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fieldwork/taskd/internal/auth"
	"github.com/fieldwork/taskd/internal/models"
	"github.com/fieldwork/taskd/internal/notify"
	"github.com/fieldwork/taskd/internal/progress"
	"github.com/fieldwork/taskd/internal/realtime"
	"github.com/fieldwork/taskd/internal/reports"
	"github.com/fieldwork/taskd/internal/storage"
	mongostore "github.com/fieldwork/taskd/internal/storage/mongo"
)

// Server wires the route handlers to the store, auth guard, realtime hub,
// dispatcher and propagation engine. Everything arrives by injection.
type Server struct {
	engine     *gin.Engine
	store      *mongostore.Store
	tokens     *auth.Tokens
	guard      *auth.Guard
	hub        *realtime.Hub
	dispatcher *notify.Dispatcher
	progress   *progress.Engine
	reports    *reports.Generator
	logger     *slog.Logger
	uploadDir  string
}

// Deps collects the server's collaborators.
type Deps struct {
	Store      *mongostore.Store
	Tokens     *auth.Tokens
	Guard      *auth.Guard
	Hub        *realtime.Hub
	Dispatcher *notify.Dispatcher
	Progress   *progress.Engine
	Reports    *reports.Generator
	Logger     *slog.Logger
	UploadDir  string
}

// New constructs the HTTP server with routes and middleware configured.
func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api/healthz"))

	srv := &Server{
		engine:     router,
		store:      d.Store,
		tokens:     d.Tokens,
		guard:      d.Guard,
		hub:        d.Hub,
		dispatcher: d.Dispatcher,
		progress:   d.Progress,
		reports:    d.Reports,
		logger:     d.Logger,
		uploadDir:  d.UploadDir,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API handlers together.
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")

	api.GET("/healthz", s.handleHealth)
	api.POST("/auth/login", s.handleLogin)
	api.GET("/ws", s.handleWebsocket)

	authed := api.Group("", s.guard.Authenticate())
	{
		authed.POST("/auth/logout", s.handleLogout)
		authed.GET("/auth/me", s.handleMe)

		users := authed.Group("/users")
		{
			users.GET("", s.handleListUsers)
			users.POST("", s.guard.RequireRole(models.RoleSuperadmin), s.handleCreateUser)
			users.PUT(":id", s.guard.RequireRole(models.RoleSuperadmin), s.handleUpdateUser)
			users.DELETE(":id", s.guard.RequireRole(models.RoleSuperadmin), s.handleDeactivateUser)
		}

		projects := authed.Group("/projects")
		{
			projects.GET("", s.handleListProjects)
			projects.POST("", s.guard.RequireRole(models.RoleSuperadmin), s.handleCreateProject)
			projects.GET(":id", s.handleGetProject)
			projects.PUT(":id", s.handleUpdateProject)
			projects.DELETE(":id", s.guard.RequireRole(models.RoleSuperadmin), s.handleDeleteProject)
			projects.GET(":id/tasks", s.handleListTasks)
			projects.POST(":id/tasks", s.guard.RequireRole(models.RoleManager, models.RoleSuperadmin), s.handleCreateTask)
			projects.POST(":id/reports", s.guard.RequireRole(models.RoleManager, models.RoleSuperadmin), s.handleGenerateReport)
			projects.GET(":id/reports", s.guard.RequireRole(models.RoleManager, models.RoleSuperadmin), s.handleListReports)
		}

		authed.GET("/tasks", s.handleMyTasks)
		authed.GET("/tasks/:id", s.handleGetTask)
		authed.PUT("/tasks/:id", s.handleUpdateTask)
		authed.DELETE("/tasks/:id", s.guard.RequireRole(models.RoleManager, models.RoleSuperadmin), s.handleDeleteTask)

		notifications := authed.Group("/notifications")
		{
			notifications.GET("", s.handleListNotifications)
			notifications.GET("/unread-count", s.handleUnreadCount)
			notifications.PUT("/read-all", s.handleMarkAllRead)
			notifications.PUT(":id/read", s.handleMarkRead)
		}

		authed.GET("/reports/:id/download", s.guard.RequireRole(models.RoleManager, models.RoleSuperadmin), s.handleDownloadReport)
		authed.POST("/uploads", s.handleUpload)
		authed.GET("/uploads/:name", s.handleDownloadUpload)
	}
}

// handleHealth provides a basic readiness endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseObjectID converts a path parameter to an ObjectID with error handling.
func parseObjectID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
		return primitive.NilObjectID, false
	}
	return id, true
}

// respondError logs the error and returns a JSON payload. Not-found errors
// from the store map to 404 regardless of the suggested status.
func (s *Server) respondError(c *gin.Context, status int, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		status = http.StatusNotFound
	}
	if err != nil {
		s.logger.Error("request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
