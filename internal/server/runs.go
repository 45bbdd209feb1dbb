package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/stepflow/internal/archive"
	"github.com/kode4food/stepflow/internal/engine"
	"github.com/kode4food/stepflow/internal/engine/plan"
	"github.com/kode4food/stepflow/pkg/api"
)

var (
	ErrInvalidJSON   = errors.New("invalid JSON")
	ErrGraphRequired = errors.New("graph is required")
	ErrGetRun        = errors.New("failed to get run")
)

func (s *Server) handlePlan(c *gin.Context) {
	var req api.PlanRequest
	if !bindGraph(c, &req, &req.Graph) {
		return
	}

	order, err := s.engine.Order(req.Graph)
	if err != nil {
		writeGraphError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.PlanResponse{Order: order})
}

func (s *Server) startRun(c *gin.Context) {
	var req api.StartRunRequest
	if !bindGraph(c, &req, &req.Graph) {
		return
	}

	id, err := s.engine.StartRun(c.Request.Context(), req.Graph)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, api.RunStartedResponse{
			Message: "Run started",
			RunID:   id,
		})
	case errors.Is(err, engine.ErrEngineStopped):
		writeError(c, http.StatusServiceUnavailable, err.Error())
	default:
		writeGraphError(c, err)
	}
}

func (s *Server) listRuns(c *gin.Context) {
	runs := s.engine.ListRuns()
	digests := make([]*api.RunDigest, len(runs))
	for i, st := range runs {
		digests[i] = st.Digest()
	}

	c.JSON(http.StatusOK, api.RunsListResponse{
		Runs:  digests,
		Count: len(digests),
	})
}

func (s *Server) getRun(c *gin.Context) {
	id := api.RunID(c.Param("runID"))

	st, err := s.engine.GetRun(id)
	if err == nil {
		c.JSON(http.StatusOK, st)
		return
	}

	if len(s.archive) > 0 {
		st, err = archive.First(c.Request.Context(), id, s.archive...)
		if err == nil {
			c.JSON(http.StatusOK, st)
			return
		}
		if !errors.Is(err, archive.ErrNotFound) {
			writeError(c, http.StatusInternalServerError,
				fmt.Sprintf("%s: %v", ErrGetRun, err))
			return
		}
	}

	writeError(c, http.StatusNotFound,
		fmt.Sprintf("%s: %s", engine.ErrRunNotFound, id))
}

func (s *Server) cancelRun(c *gin.Context) {
	id := api.RunID(c.Param("runID"))

	err := s.engine.CancelRun(id)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, api.RunCancelledResponse{
			Message: "Run cancellation requested",
			RunID:   id,
		})
	case errors.Is(err, engine.ErrRunNotActive):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusNotFound, err.Error())
	}
}

func bindGraph(c *gin.Context, req any, graph **api.Graph) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, http.StatusBadRequest,
			fmt.Sprintf("%s: %v", ErrInvalidJSON, err))
		return false
	}
	if *graph == nil {
		writeError(c, http.StatusBadRequest, ErrGraphRequired.Error())
		return false
	}
	return true
}

func writeGraphError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, plan.ErrCycleDetected) {
		status = http.StatusUnprocessableEntity
	}
	writeError(c, status, err.Error())
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, api.ErrorResponse{
		Error:  msg,
		Status: status,
	})
}
