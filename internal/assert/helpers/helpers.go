// Package helpers builds engines, graphs, and fake handlers for tests
package helpers

import (
	"sync"

	"github.com/kode4food/stepflow/pkg/api"
)

type (
	// Recorder collects every snapshot delivered to a run subscriber
	Recorder struct {
		states []*api.RunState
		mu     sync.Mutex
	}

	// RecordingArchiver captures the runs an engine hands off for archiving
	RecordingArchiver struct {
		runs []*api.RunState
		mu   sync.Mutex
	}
)

// NewRecorder creates an empty snapshot recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record is a run subscriber
func (r *Recorder) Record(st *api.RunState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, st)
}

// States returns the recorded snapshots in delivery order
func (r *Recorder) States() []*api.RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*api.RunState(nil), r.states...)
}

// Len returns the number of snapshots recorded
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

// Last returns the most recent snapshot, or nil
func (r *Recorder) Last() *api.RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return nil
	}
	return r.states[len(r.states)-1]
}

// StepStatuses returns the status sequence observed for one step, with
// consecutive duplicates collapsed
func (r *Recorder) StepStatuses(id api.StepID) []api.StepStatus {
	var res []api.StepStatus
	for _, st := range r.States() {
		_, step, ok := st.Step(id)
		if !ok {
			continue
		}
		if len(res) == 0 || res[len(res)-1] != step.Status {
			res = append(res, step.Status)
		}
	}
	return res
}

// Enqueue implements the engine's archiver
func (a *RecordingArchiver) Enqueue(st *api.RunState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runs = append(a.runs, st)
}

// Runs returns every run received so far
func (a *RecordingArchiver) Runs() []*api.RunState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*api.RunState(nil), a.runs...)
}
