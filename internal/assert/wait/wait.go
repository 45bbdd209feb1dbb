// Package wait blocks tests until the engine publishes a matching run
// snapshot
package wait

import (
	"testing"
	"time"

	"github.com/kode4food/caravan/topic"

	"github.com/kode4food/stepflow/pkg/api"
)

type (
	// Wait reads run snapshots from a consumer until a filter matches. The
	// consumer must be created before the action being waited on
	Wait struct {
		t        *testing.T
		consumer topic.Consumer[*api.RunState]
		timeout  time.Duration
	}

	// Filter selects run snapshots
	Filter func(*api.RunState) bool
)

const DefaultTimeout = time.Second * 5

func On(t *testing.T, consumer topic.Consumer[*api.RunState]) *Wait {
	return &Wait{
		t:        t,
		consumer: consumer,
		timeout:  DefaultTimeout,
	}
}

func (w *Wait) WithTimeout(timeout time.Duration) *Wait {
	res := *w
	res.timeout = timeout
	return &res
}

// ForStates waits for count matching snapshots and returns the last
func (w *Wait) ForStates(count int, filter Filter) *api.RunState {
	w.t.Helper()

	deadline := time.NewTimer(w.timeout)
	defer deadline.Stop()

	var last *api.RunState
	for seen := 0; seen < count; {
		select {
		case st, ok := <-w.consumer.Receive():
			if !ok {
				w.t.Fatalf(
					"run consumer closed before receiving %d states", count,
				)
			}
			if st == nil || !filter(st) {
				continue
			}
			last = st
			seen++
		case <-deadline.C:
			w.t.Fatalf("timeout waiting for %d states", count)
		}
	}
	return last
}

// ForState waits for a single matching snapshot
func (w *Wait) ForState(filter Filter) *api.RunState {
	w.t.Helper()
	return w.ForStates(1, filter)
}

// And composes filters and returns true when all match
func And(filters ...Filter) Filter {
	return func(st *api.RunState) bool {
		for _, filter := range filters {
			if !filter(st) {
				return false
			}
		}
		return true
	}
}

// Run matches snapshots of one run
func Run(id api.RunID) Filter {
	return func(st *api.RunState) bool {
		return st.ID == id
	}
}

// Status matches runs with one of the given statuses
func Status(statuses ...api.RunStatus) Filter {
	return func(st *api.RunState) bool {
		for _, s := range statuses {
			if st.Status == s {
				return true
			}
		}
		return false
	}
}

// Terminal matches runs that have finished
func Terminal() Filter {
	return func(st *api.RunState) bool {
		return st.Status.IsTerminal()
	}
}

// StepStatus matches runs in which the step has the given status
func StepStatus(id api.StepID, status api.StepStatus) Filter {
	return func(st *api.RunState) bool {
		_, step, ok := st.Step(id)
		return ok && step.Status == status
	}
}

// RunFinished matches the terminal snapshot of one run
func RunFinished(id api.RunID) Filter {
	return And(Run(id), Terminal())
}
