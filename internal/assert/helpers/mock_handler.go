package helpers

import (
	"context"
	"sync"
	"time"

	"github.com/kode4food/stepflow/pkg/api"
)

// MockHandler is a step handler whose behavior is configured per step ID
type MockHandler struct {
	responses map[api.StepID]api.Args
	errors    map[api.StepID]error
	delays    map[api.StepID]time.Duration
	blocks    map[api.StepID]chan struct{}
	inputs    map[api.StepID]api.Context
	invokedCh map[api.StepID]chan struct{}
	invoked   []api.StepID
	mu        sync.Mutex
}

// MockStepType is the step type the test engine routes to its MockHandler
const MockStepType = api.StepType("mock")

// NewMockHandler creates a handler that returns empty outputs until
// configured otherwise
func NewMockHandler() *MockHandler {
	return &MockHandler{
		responses: map[api.StepID]api.Args{},
		errors:    map[api.StepID]error{},
		delays:    map[api.StepID]time.Duration{},
		blocks:    map[api.StepID]chan struct{}{},
		inputs:    map[api.StepID]api.Context{},
		invokedCh: map[api.StepID]chan struct{}{},
	}
}

// Execute records the invocation and returns the configured outcome
func (m *MockHandler) Execute(
	ctx context.Context, step *api.Step, in api.Context,
) (api.Args, error) {
	m.mu.Lock()
	m.invoked = append(m.invoked, step.ID)
	m.inputs[step.ID] = in.Clone()
	if ch, ok := m.invokedCh[step.ID]; ok {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	block := m.blocks[step.ID]
	delay := m.delays[step.ID]
	err := m.errors[step.ID]
	out := m.responses[step.ID]
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if out == nil {
		return api.Args{"step": string(step.ID)}, nil
	}
	return out, nil
}

// SetResponse configures the outputs returned for a step
func (m *MockHandler) SetResponse(id api.StepID, out api.Args) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[id] = out
}

// SetError configures the error returned for a step
func (m *MockHandler) SetError(id api.StepID, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[id] = err
}

// SetDelay makes a step sleep before returning
func (m *MockHandler) SetDelay(id api.StepID, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays[id] = d
}

// Block makes a step wait until the returned function is called or its
// context ends
func (m *MockHandler) Block(id api.StepID) (release func()) {
	ch := make(chan struct{})
	m.mu.Lock()
	m.blocks[id] = ch
	m.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() { close(ch) })
	}
}

// WaitFor returns a channel that receives once each time the step is
// invoked. Must be called before the run starts
func (m *MockHandler) WaitFor(id api.StepID) <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.invokedCh[id]
	if !ok {
		ch = make(chan struct{}, 1)
		m.invokedCh[id] = ch
	}
	return ch
}

// Invocations returns the step IDs invoked, in order
func (m *MockHandler) Invocations() []api.StepID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]api.StepID(nil), m.invoked...)
}

// WasInvoked reports whether a step was invoked
func (m *MockHandler) WasInvoked(id api.StepID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invoked {
		if inv == id {
			return true
		}
	}
	return false
}

// Inputs returns the context a step was last dispatched with
func (m *MockHandler) Inputs(id api.StepID) api.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inputs[id]
}
