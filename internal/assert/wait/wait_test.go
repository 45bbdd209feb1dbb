package wait_test

import (
	"testing"
	"time"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/message"
	"github.com/stretchr/testify/assert"

	"github.com/kode4food/stepflow/internal/assert/wait"
	"github.com/kode4food/stepflow/pkg/api"
)

func newState(id api.RunID, status api.RunStatus) *api.RunState {
	st := api.NewRunState(id, []api.StepID{"a", "b"}, time.Now())
	return st.SetStatus(status)
}

func TestFilters(t *testing.T) {
	running := newState("r1", api.RunRunning)
	done := newState("r1", api.RunCompleted)
	other := newState("r2", api.RunError)

	assert.True(t, wait.Run("r1")(running))
	assert.False(t, wait.Run("r1")(other))
	assert.True(t, wait.Terminal()(done))
	assert.False(t, wait.Terminal()(running))
	assert.True(t, wait.Status(api.RunError, api.RunCancelled)(other))
	assert.False(t, wait.Status()(other))
	assert.True(t, wait.RunFinished("r1")(done))
	assert.False(t, wait.RunFinished("r1")(other))
	assert.True(t, wait.StepStatus("a", api.StepPending)(running))
	assert.False(t, wait.StepStatus("z", api.StepPending)(running))
}

func TestForState(t *testing.T) {
	top := caravan.NewTopic[*api.RunState]()
	cons := top.NewConsumer()
	defer cons.Close()
	prod := top.NewProducer()
	defer prod.Close()

	go func() {
		message.Send(prod, newState("r2", api.RunCompleted))
		message.Send(prod, newState("r1", api.RunRunning))
		message.Send(prod, newState("r1", api.RunCompleted))
	}()

	st := wait.On(t, cons).ForState(wait.RunFinished("r1"))
	assert.Equal(t, api.RunID("r1"), st.ID)
	assert.Equal(t, api.RunCompleted, st.Status)
}

func TestForStatesCount(t *testing.T) {
	top := caravan.NewTopic[*api.RunState]()
	cons := top.NewConsumer()
	defer cons.Close()
	prod := top.NewProducer()
	defer prod.Close()

	go func() {
		for range 3 {
			message.Send(prod, newState("r1", api.RunRunning))
		}
	}()

	st := wait.On(t, cons).
		WithTimeout(time.Second).
		ForStates(3, wait.Run("r1"))
	assert.NotNil(t, st)
}
