package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterNodeRoutes registers node endpoints.
func (s *Server) RegisterNodeRoutes(r *gin.Engine) {
	r.POST("/api/nodes/:id/expand", s.handleExpandNode)
}

// handleExpandNode asks the back-end for follow-up items of a filled node
func (s *Server) handleExpandNode(c *gin.Context) {
	items, err := s.workflowRunner.Expand(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, items)
}
