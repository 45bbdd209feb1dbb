package assert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/stepflow/internal/config"
	"github.com/kode4food/stepflow/pkg/api"
)

// Wrapper wraps testify assertions with run-specific helpers
type Wrapper struct {
	*testing.T
	*assert.Assertions
}

// DefaultRetryInterval is the default polling interval for Eventually checks
const DefaultRetryInterval = 10 * time.Millisecond

// New creates a new test assertion wrapper
func New(t *testing.T) *Wrapper {
	return &Wrapper{
		T:          t,
		Assertions: assert.New(t),
	}
}

// GraphValid asserts that a graph passes validation
func (w *Wrapper) GraphValid(g *api.Graph) {
	w.Helper()
	w.NoError(g.Validate())
}

// GraphInvalid asserts that a graph fails validation and returns the error
func (w *Wrapper) GraphInvalid(g *api.Graph, contains string) error {
	w.Helper()
	err := g.Validate()
	w.Error(err)
	if err != nil && contains != "" {
		w.Contains(err.Error(), contains)
	}
	return err
}

// RunStatus asserts the status of a run
func (w *Wrapper) RunStatus(st *api.RunState, expected api.RunStatus) {
	w.Helper()
	if w.NotNil(st) {
		w.Equal(expected, st.Status)
	}
}

// StepStatuses asserts the status of every step in the run, in scheduled
// order
func (w *Wrapper) StepStatuses(st *api.RunState, expected ...api.StepStatus) {
	w.Helper()
	if !w.NotNil(st) || !w.Len(st.Steps, len(expected)) {
		return
	}
	for i, s := range st.Steps {
		w.Equal(expected[i], s.Status, "step %s", s.StepID)
	}
}

// StepStatus asserts the status of a single step
func (w *Wrapper) StepStatus(
	st *api.RunState, id api.StepID, expected api.StepStatus,
) {
	w.Helper()
	_, step, ok := st.Step(id)
	if w.True(ok, "run should contain step %s", id) {
		w.Equal(expected, step.Status, "step %s", id)
	}
}

// StepSawContext asserts that a step was dispatched with outputs from
// each of the given upstream steps
func (w *Wrapper) StepSawContext(
	st *api.RunState, id api.StepID, upstream ...api.StepID,
) {
	w.Helper()
	_, step, ok := st.Step(id)
	if !w.True(ok, "run should contain step %s", id) {
		return
	}
	for _, up := range upstream {
		w.Contains(step.Inputs, up, "step %s should see %s", id, up)
	}
}

// TimingValid asserts that every finished step and the run itself report a
// duration equal to end minus start
func (w *Wrapper) TimingValid(st *api.RunState) {
	w.Helper()
	for _, s := range st.Steps {
		if s.Status != api.StepCompleted && s.Status != api.StepError {
			continue
		}
		w.False(s.CompletedAt.Before(s.StartedAt), "step %s", s.StepID)
		w.Equal(s.CompletedAt.Sub(s.StartedAt), s.Duration,
			"step %s", s.StepID)
	}
	if st.Status.IsTerminal() {
		w.Equal(st.CompletedAt.Sub(st.StartedAt), st.Duration)
	}
}

// ConfigValid asserts that a configuration is valid
func (w *Wrapper) ConfigValid(cfg *config.Config) {
	w.Helper()
	w.NoError(cfg.Validate())
	w.True(cfg.APIPort > 0 && cfg.APIPort <= 65535)
	w.True(cfg.StepTimeout > 0)
}

// ConfigInvalid asserts that a configuration is invalid
func (w *Wrapper) ConfigInvalid(cfg *config.Config, contains string) {
	w.Helper()
	err := cfg.Validate()
	w.Error(err)
	if err != nil && contains != "" {
		w.Contains(err.Error(), contains)
	}
}

// Eventually runs a condition repeatedly until it passes or times out
func (w *Wrapper) Eventually(
	condition func() bool, timeout time.Duration, msg string, args ...any,
) {
	w.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(DefaultRetryInterval)
	}
	w.Fail(msg, args...)
}

// EventuallyWithError runs a condition that returns an error until it succeeds
// or times out
func (w *Wrapper) EventuallyWithError(
	condition func() error, timeout time.Duration, msg string, args ...any,
) {
	w.Helper()
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		err := condition()
		if err == nil {
			return
		}
		lastErr = err
		time.Sleep(DefaultRetryInterval)
	}
	if lastErr != nil {
		w.Fail(msg+": last error: "+lastErr.Error(), args...)
		return
	}
	w.Fail(msg, args...)
}
