package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/stepflow"
	"github.com/kode4food/stepflow/pkg/api"
)

const healthStatusOK = "healthy"

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{
		Service:    stepflow.Name,
		Version:    stepflow.Version,
		Status:     healthStatusOK,
		ActiveRuns: s.engine.ActiveRuns(),
	})
}
