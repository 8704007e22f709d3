package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/fieldwork/taskd/internal/auth"
	"github.com/fieldwork/taskd/internal/models"
)

type createUserRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

type updateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
	Active   *bool   `json:"active"`
}

// handleListUsers returns all users for a superadmin; a manager only sees
// technicians (the pool of assignees). Technicians see nobody.
func (s *Server) handleListUsers(c *gin.Context) {
	switch auth.RoleFrom(c) {
	case models.RoleSuperadmin:
		users, err := s.store.ListUsers(c.Request.Context())
		if err != nil {
			s.respondError(c, http.StatusInternalServerError, err)
			return
		}
		respondSuccess(c, http.StatusOK, gin.H{"users": users})
	case models.RoleManager:
		users, err := s.store.ListUsersByRole(c.Request.Context(), models.RoleTechnician, true)
		if err != nil {
			s.respondError(c, http.StatusInternalServerError, err)
			return
		}
		respondSuccess(c, http.StatusOK, gin.H{"users": users})
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
	}
}

// handleCreateUser registers a new account (superadmin only).
func (s *Server) handleCreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	role, err := requireRoleValue(req.Role)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	user, err := s.store.CreateUser(c.Request.Context(), models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	})
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"user": user})
}

// handleUpdateUser applies a partial update to an account.
func (s *Server) handleUpdateUser(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	fields := bson.M{}
	if req.Name != nil && *req.Name != "" {
		fields["name"] = *req.Name
	}
	if req.Email != nil && *req.Email != "" {
		fields["email"] = *req.Email
	}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			s.respondError(c, http.StatusBadRequest, err)
			return
		}
		fields["password_hash"] = hash
	}
	if req.Role != nil {
		role, err := requireRoleValue(*req.Role)
		if err != nil {
			s.respondError(c, http.StatusBadRequest, err)
			return
		}
		fields["role"] = role
	}
	if req.Active != nil {
		fields["active"] = *req.Active
	}
	if len(fields) == 0 {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("no fields to update"))
		return
	}

	user, err := s.store.UpdateUserFields(c.Request.Context(), id, fields)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user": user})
}

// handleDeactivateUser disables an account without deleting its documents.
func (s *Server) handleDeactivateUser(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	if id == auth.UserIDFrom(c) {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("cannot deactivate own account"))
		return
	}
	if err := s.store.DeactivateUser(c.Request.Context(), id); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deactivated"})
}
