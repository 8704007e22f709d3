package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldwork/taskd/internal/auth"
)

// handleListNotifications returns the caller's notifications, newest first.
// ?unread=true narrows to unread ones. Expired notifications never show.
func (s *Server) handleListNotifications(c *gin.Context) {
	unreadOnly := c.Query("unread") == "true"
	notifications, err := s.store.ListNotifications(c.Request.Context(), auth.UserIDFrom(c), unreadOnly)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"notifications": notifications})
}

// handleUnreadCount returns the caller's unread notification count, the
// recovery path for deliveries missed while offline.
func (s *Server) handleUnreadCount(c *gin.Context) {
	count, err := s.store.CountUnreadNotifications(c.Request.Context(), auth.UserIDFrom(c))
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"count": count})
}

// handleMarkRead flags one of the caller's notifications as read.
func (s *Server) handleMarkRead(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	if err := s.store.MarkNotificationRead(c.Request.Context(), id, auth.UserIDFrom(c)); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "read"})
}

// handleMarkAllRead flags every unread notification of the caller as read.
func (s *Server) handleMarkAllRead(c *gin.Context) {
	updated, err := s.store.MarkAllNotificationsRead(c.Request.Context(), auth.UserIDFrom(c))
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"updated": updated})
}
