package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldwork/taskd/internal/auth"
	"github.com/fieldwork/taskd/internal/models"
	"github.com/fieldwork/taskd/internal/storage"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// handleLogin verifies credentials, records a login session and returns a
// signed token. A wrong email and a wrong password answer identically.
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	user, err := s.store.GetUserByEmail(c.Request.Context(), req.Email)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && !auth.CheckPassword(user.PasswordHash, req.Password)) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	if !user.Active {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "account deactivated"})
		return
	}

	token, tokenID, expires, err := s.tokens.Issue(user)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	if _, err := s.store.CreateSession(c.Request.Context(), models.LoginSession{
		UserID:    user.ID,
		TokenID:   tokenID,
		ExpiresAt: expires,
	}); err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"token": token, "expires_at": expires, "user": user})
}

// handleLogout revokes the session behind the presented token.
func (s *Server) handleLogout(c *gin.Context) {
	if err := s.store.RevokeSession(c.Request.Context(), auth.TokenIDFrom(c)); err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "logged out"})
}

// handleMe returns the authenticated account.
func (s *Server) handleMe(c *gin.Context) {
	user, err := s.store.GetUser(c.Request.Context(), auth.UserIDFrom(c))
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user": user})
}

// requireRoleValue parses a raw role string at the request boundary.
func requireRoleValue(raw string) (models.Role, error) {
	role, err := models.ParseRole(raw)
	if err != nil {
		return "", fmt.Errorf("role must be one of superadmin, manager, technician")
	}
	return role, nil
}
