package assert_test

import (
	"errors"
	"testing"
	"time"

	"github.com/kode4food/stepflow/internal/assert"
	"github.com/kode4food/stepflow/internal/assert/helpers"
	"github.com/kode4food/stepflow/pkg/api"
)

func finishedRun() *api.RunState {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	st := api.NewRunState("run-1", []api.StepID{"a", "b"}, start)

	a := st.Steps[0].
		SetStatus(api.StepCompleted).
		SetStartedAt(start).
		SetCompletedAt(start.Add(time.Second))
	b := st.Steps[1].
		SetStatus(api.StepCompleted).
		SetStartedAt(start.Add(time.Second)).
		SetInputs(api.Context{"a": {"x": 1}}).
		SetCompletedAt(start.Add(3 * time.Second))

	return st.SetStep(0, a).SetStep(1, b).
		SetStatus(api.RunCompleted).
		SetCompletedAt(start.Add(3 * time.Second))
}

func TestRunAssertions(t *testing.T) {
	as := assert.New(t)
	st := finishedRun()

	as.RunStatus(st, api.RunCompleted)
	as.StepStatuses(st, api.StepCompleted, api.StepCompleted)
	as.StepStatus(st, "b", api.StepCompleted)
	as.StepSawContext(st, "b", "a")
	as.TimingValid(st)
}

func TestGraphAssertions(t *testing.T) {
	as := assert.New(t)

	g := helpers.MockChain(t, "a", "b")
	as.GraphValid(g)

	g.Connections = append(g.Connections, &api.Connection{
		Source: "a", Target: "missing",
	})
	as.GraphInvalid(g, "missing")
}

func TestEventually(t *testing.T) {
	as := assert.New(t)

	count := 0
	as.Eventually(func() bool {
		count++
		return count >= 3
	}, time.Second, "should reach three")
	as.Equal(3, count)

	tries := 0
	as.EventuallyWithError(func() error {
		tries++
		if tries < 2 {
			return errors.New("not yet")
		}
		return nil
	}, time.Second, "should succeed")
}
