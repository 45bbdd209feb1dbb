package api

import "time"

type (
	// StartRunRequest contains the graph for a new run
	StartRunRequest struct {
		Graph *Graph `json:"graph"`
	}

	// RunStartedResponse is returned when a run start succeeds
	RunStartedResponse struct {
		Message string `json:"message"`
		RunID   RunID  `json:"run_id"`
	}

	// PlanRequest asks the engine for the execution order of a graph
	PlanRequest struct {
		Graph *Graph `json:"graph"`
	}

	// PlanResponse contains the scheduled execution order of a graph
	PlanResponse struct {
		Order []StepID `json:"order"`
	}

	// RunDigest provides summary information about a run
	RunDigest struct {
		ID          RunID     `json:"id"`
		Status      RunStatus `json:"status"`
		StartedAt   time.Time `json:"started_at"`
		CompletedAt time.Time `json:"completed_at"`
		Error       string    `json:"error,omitempty"`
	}

	// RunsListResponse contains a list of run summaries
	RunsListResponse struct {
		Runs  []*RunDigest `json:"runs"`
		Count int          `json:"count"`
	}

	// RunCancelledResponse is returned when a cancellation request succeeds
	RunCancelledResponse struct {
		Message string `json:"message"`
		RunID   RunID  `json:"run_id"`
	}

	// HealthResponse reports service health
	HealthResponse struct {
		Service    string `json:"service"`
		Version    string `json:"version"`
		Status     string `json:"status"`
		ActiveRuns int    `json:"active_runs"`
	}

	// ErrorResponse contains error details for failed requests
	ErrorResponse struct {
		Error  string `json:"error"`
		Status int    `json:"status,omitempty"`
	}
)
