package api

import (
	"encoding/json"
	"maps"
	"slices"
	"time"
)

type (
	// RunStatus represents the current state of a run
	RunStatus string

	// StepStatus represents the current state of a step execution
	StepStatus string

	// RunState contains the complete state of one run. Values are treated as
	// immutable: every Set* method returns a modified copy, so a snapshot
	// handed to an observer never changes underneath it
	RunState struct {
		StartedAt   time.Time     `json:"started_at"`
		CompletedAt time.Time     `json:"completed_at,omitempty"`
		ID          RunID         `json:"id"`
		Status      RunStatus     `json:"status"`
		Error       string        `json:"error,omitempty"`
		Steps       []*StepState  `json:"steps"`
		Duration    time.Duration `json:"-"`
	}

	// StepState contains the state of a single step execution within a run
	StepState struct {
		StartedAt   time.Time     `json:"started_at,omitempty"`
		CompletedAt time.Time     `json:"completed_at,omitempty"`
		Inputs      Context       `json:"inputs,omitempty"`
		Outputs     Args          `json:"outputs,omitempty"`
		StepID      StepID        `json:"step_id"`
		Status      StepStatus    `json:"status"`
		Error       string        `json:"error,omitempty"`
		Duration    time.Duration `json:"-"`
	}

	runStateJSON  RunState
	stepStateJSON StepState
)

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunError     RunStatus = "error"
	RunCancelled RunStatus = "cancelled"
)

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepError     StepStatus = "error"
	StepSkipped   StepStatus = "skipped"
)

// NewRunState creates a running RunState with one pending StepState per
// step, in the given order
func NewRunState(id RunID, order []StepID, now time.Time) *RunState {
	steps := make([]*StepState, len(order))
	for i, stepID := range order {
		steps[i] = &StepState{
			StepID: stepID,
			Status: StepPending,
		}
	}
	return &RunState{
		ID:        id,
		Status:    RunRunning,
		StartedAt: now,
		Steps:     steps,
	}
}

// IsTerminal returns whether the run status can no longer change
func (s RunStatus) IsTerminal() bool {
	return s == RunCompleted || s == RunError || s == RunCancelled
}

// IsTerminal returns whether the step status can no longer change
func (s StepStatus) IsTerminal() bool {
	return s == StepCompleted || s == StepError || s == StepSkipped
}

// Step returns the index and state of the given step within the run
func (st *RunState) Step(id StepID) (int, *StepState, bool) {
	for i, s := range st.Steps {
		if s.StepID == id {
			return i, s, true
		}
	}
	return -1, nil, false
}

// Order returns the step IDs in the run's scheduled order
func (st *RunState) Order() []StepID {
	res := make([]StepID, len(st.Steps))
	for i, s := range st.Steps {
		res[i] = s.StepID
	}
	return res
}

// SetStatus returns a new RunState with the updated status
func (st *RunState) SetStatus(s RunStatus) *RunState {
	res := *st
	res.Status = s
	return &res
}

// SetError returns a new RunState with the error message set
func (st *RunState) SetError(err string) *RunState {
	res := *st
	res.Error = err
	return &res
}

// SetCompletedAt returns a new RunState with the completion timestamp set
// and the total duration derived from it
func (st *RunState) SetCompletedAt(t time.Time) *RunState {
	res := *st
	res.CompletedAt = t
	res.Duration = t.Sub(st.StartedAt)
	return &res
}

// SetStep returns a new RunState with the step at index i replaced
func (st *RunState) SetStep(i int, step *StepState) *RunState {
	res := *st
	res.Steps = slices.Clone(st.Steps)
	res.Steps[i] = step
	return &res
}

// SetStatus returns a new StepState with the updated status
func (st *StepState) SetStatus(s StepStatus) *StepState {
	res := *st
	res.Status = s
	return &res
}

// SetStartedAt returns a new StepState with the start timestamp set
func (st *StepState) SetStartedAt(t time.Time) *StepState {
	res := *st
	res.StartedAt = t
	return &res
}

// SetCompletedAt returns a new StepState with the completion timestamp set
// and the duration derived from it
func (st *StepState) SetCompletedAt(t time.Time) *StepState {
	res := *st
	res.CompletedAt = t
	res.Duration = t.Sub(st.StartedAt)
	return &res
}

// SetInputs returns a new StepState with the input context snapshot set
func (st *StepState) SetInputs(inputs Context) *StepState {
	res := *st
	res.Inputs = maps.Clone(inputs)
	return &res
}

// SetOutputs returns a new StepState with the output arguments set
func (st *StepState) SetOutputs(outputs Args) *StepState {
	res := *st
	res.Outputs = maps.Clone(outputs)
	return &res
}

// SetError returns a new StepState with the error message set
func (st *StepState) SetError(err string) *StepState {
	res := *st
	res.Error = err
	return &res
}

// Digest summarizes the run without its per-step detail
func (st *RunState) Digest() *RunDigest {
	return &RunDigest{
		ID:          st.ID,
		Status:      st.Status,
		StartedAt:   st.StartedAt,
		CompletedAt: st.CompletedAt,
		Error:       st.Error,
	}
}

// MarshalJSON encodes the run with its duration in milliseconds
func (st RunState) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		runStateJSON
		Duration int64 `json:"duration,omitempty"`
	}{runStateJSON(st), st.Duration.Milliseconds()})
}

// UnmarshalJSON decodes a run whose duration is in milliseconds
func (st *RunState) UnmarshalJSON(data []byte) error {
	var res struct {
		runStateJSON
		Duration int64 `json:"duration,omitempty"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return err
	}
	*st = RunState(res.runStateJSON)
	st.Duration = time.Duration(res.Duration) * time.Millisecond
	return nil
}

// MarshalJSON encodes the step with its duration in milliseconds
func (st StepState) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		stepStateJSON
		Duration int64 `json:"duration,omitempty"`
	}{stepStateJSON(st), st.Duration.Milliseconds()})
}

// UnmarshalJSON decodes a step whose duration is in milliseconds
func (st *StepState) UnmarshalJSON(data []byte) error {
	var res struct {
		stepStateJSON
		Duration int64 `json:"duration,omitempty"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return err
	}
	*st = StepState(res.stepStateJSON)
	st.Duration = time.Duration(res.Duration) * time.Millisecond
	return nil
}
