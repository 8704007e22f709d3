package server

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// 10 MiB, matching the multipart memory limit gin defaults to.
const maxUploadBytes = 10 << 20

// handleUpload stores a multipart file under a generated name and returns
// the name for later reference from task comments or reports.
func (s *Server) handleUpload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("missing file field: %w", err))
		return
	}
	if file.Size > maxUploadBytes {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("file exceeds %d bytes", maxUploadBytes))
		return
	}

	name := uuid.NewString() + filepath.Ext(filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, filepath.Join(s.uploadDir, name)); err != nil {
		s.respondError(c, http.StatusInternalServerError, fmt.Errorf("store upload: %w", err))
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"file": name, "size": file.Size})
}

// handleDownloadUpload serves a previously uploaded file. Base strips any
// path traversal from the parameter.
func (s *Server) handleDownloadUpload(c *gin.Context) {
	name := filepath.Base(c.Param("name"))
	c.FileAttachment(filepath.Join(s.uploadDir, name), name)
}
