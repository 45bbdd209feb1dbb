package handler

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/kode4food/stepflow/internal/client"
	"github.com/kode4food/stepflow/internal/engine/script"
	"github.com/kode4food/stepflow/internal/kv"
	"github.com/kode4food/stepflow/pkg/api"
)

type (
	// Registry maps step types to their handlers
	Registry struct {
		handlers map[api.StepType]Handler
		mu       sync.RWMutex
	}

	// Dependencies are the collaborators used by the built-in handlers.
	// Nil fields are replaced with process-local defaults
	Dependencies struct {
		Clock   func() time.Time
		Client  client.Client
		Store   kv.Store
		Scripts *script.LuaEnv
	}
)

const defaultClientTimeout = 30 * time.Second

// NewRegistry returns an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		handlers: map[api.StepType]Handler{},
	}
}

// NewDefaultRegistry returns a Registry populated with the trigger, agent,
// condition, and action handlers
func NewDefaultRegistry(deps Dependencies) *Registry {
	deps = deps.withDefaults()
	r := NewRegistry()
	r.Register(api.StepTypeTrigger, NewTrigger(deps.Clock))
	r.Register(api.StepTypeAgent, NewAgent(deps))
	r.Register(api.StepTypeCondition, NewCondition())
	r.Register(api.StepTypeAction, NewAction(deps))
	return r
}

// Register installs the handler for a step type, replacing any previous
// registration
func (r *Registry) Register(typ api.StepType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[typ] = h
}

// Get returns the handler registered for a step type
func (r *Registry) Get(typ api.StepType) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.handlers[typ]; ok {
		return h, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownStepType, typ)
}

// Types returns the registered step types in sorted order
func (r *Registry) Types() []api.StepType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.handlers))
}

// Dispatch runs the handler registered for the step's type. Handler
// failures, including panics, are returned as *Error
func (r *Registry) Dispatch(
	ctx context.Context, step *api.Step, in api.Context,
) (out api.Args, err error) {
	h, err := r.Get(step.Type)
	if err != nil {
		return nil, err
	}

	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			err = &Error{
				StepID: step.ID,
				Err:    fmt.Errorf("%w: %v", ErrHandlerPanic, rec),
			}
		}
	}()

	res, err := h.Execute(ctx, step, in)
	if err != nil {
		return nil, &Error{StepID: step.ID, Err: err}
	}
	if res == nil {
		res = api.Args{}
	}
	return res, nil
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Client == nil {
		d.Client = client.NewHTTPClient(defaultClientTimeout)
	}
	if d.Store == nil {
		d.Store = kv.NewMemory()
	}
	if d.Scripts == nil {
		d.Scripts = script.NewLuaEnv()
	}
	return d
}
