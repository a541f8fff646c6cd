package api

import (
	"errors"
	"net/http"

	"hubgraph/state"
	"hubgraph/types"
	"hubgraph/workflow"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RegisterJobRoutes registers reconciliation job endpoints.
func (s *Server) RegisterJobRoutes(r *gin.Engine) {
	g := r.Group("/api/jobs")
	g.POST("", s.handleStartJob)
	g.GET("", s.handleListJobs)
	g.GET("/:id", s.handleGetJob)
	g.DELETE("/:id", s.handleCancelJob)
}

// handleStartJob starts polling an existing hub
func (s *Server) handleStartJob(c *gin.Context) {
	var req types.JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobID, err := s.workflowRunner.StartJob(req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

func (s *Server) handleListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, s.stateManager.List())
}

// handleGetJob returns a job's status, falling back to the archive once it was purged
func (s *Server) handleGetJob(c *gin.Context) {
	id := c.Param("id")

	status, err := s.stateManager.GetStatus(id)
	if err == nil {
		c.JSON(http.StatusOK, status)
		return
	}

	if s.archive != nil {
		archived, aerr := s.archive.Load(c.Request.Context(), id)
		if aerr == nil {
			c.JSON(http.StatusOK, archived)
			return
		}
		s.logger.Debug("archive lookup failed", zap.String("job_id", id), zap.Error(aerr))
	}

	c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
}

// handleCancelJob signals the job's stop token
func (s *Server) handleCancelJob(c *gin.Context) {
	id := c.Param("id")
	if err := s.workflowRunner.CancelJob(id); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "stopping", "job_id": id})
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, workflow.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, state.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, state.ErrJobExists):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrShuttingDown):
		return http.StatusServiceUnavailable
	case errors.Is(err, types.ErrSourceUnavailable), errors.Is(err, types.ErrSourceProtocol):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
