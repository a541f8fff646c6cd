package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// RegisterSessionRoutes registers document upload endpoints.
func (s *Server) RegisterSessionRoutes(r *gin.Engine) {
	r.POST("/api/sessions", s.handleStartSession)
}

// handleStartSession forwards an uploaded document to the hub back-end and starts a job for
// the hub it creates.
// Form fields: file (required), session_id (optional), target (optional int)
func (s *Server) handleStartSession(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	target := 0
	if v := c.PostForm("target"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "target must be a non-negative integer"})
			return
		}
		target = n
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload: " + err.Error()})
		return
	}
	defer f.Close()

	resp, jobID, err := s.workflowRunner.StartFromUpload(c.Request.Context(), fh.Filename, f, c.PostForm("session_id"), target)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"session": resp.Session,
		"hub":     resp.Hub,
		"job_id":  jobID,
	})
}
