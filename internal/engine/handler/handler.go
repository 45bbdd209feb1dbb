package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/kode4food/stepflow/pkg/api"
)

type (
	// Handler produces a step's output from its configuration and the
	// outputs of the steps that ran before it
	Handler interface {
		Execute(ctx context.Context, step *api.Step, in api.Context) (
			api.Args, error,
		)
	}

	// HandlerFunc adapts a function to the Handler interface
	HandlerFunc func(
		ctx context.Context, step *api.Step, in api.Context,
	) (api.Args, error)

	// Error reports a failure raised by a step's handler. It matches both
	// ErrHandler and the handler's own error under errors.Is, and its
	// message is the handler's message
	Error struct {
		Err    error
		StepID api.StepID
	}

	runIDKey struct{}
)

// Step configuration keys read by the built-in handlers
const (
	ConfigAgentType  = api.Name("agent_type")
	ConfigActionType = api.Name("action_type")
	ConfigExpression = api.Name("expression")
	ConfigDelay      = api.Name("delay_ms")
)

var (
	ErrUnknownStepType = errors.New("unknown step type")
	ErrHandler         = errors.New("step handler failed")
	ErrHandlerPanic    = errors.New("step handler panicked")
	ErrMissingConfig   = errors.New("missing step configuration")
	ErrInvalidConfig   = errors.New("invalid step configuration")
)

func (f HandlerFunc) Execute(
	ctx context.Context, step *api.Step, in api.Context,
) (api.Args, error) {
	return f(ctx, step, in)
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() []error {
	return []error{ErrHandler, e.Err}
}

// WithRunID attaches the executing run's id to ctx
func WithRunID(ctx context.Context, id api.RunID) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFrom returns the run id attached by WithRunID, if any
func RunIDFrom(ctx context.Context) api.RunID {
	id, _ := ctx.Value(runIDKey{}).(api.RunID)
	return id
}

func missingConfig(step *api.Step, name api.Name) error {
	return fmt.Errorf("%w: %s requires %q", ErrMissingConfig, step.ID, name)
}

func invalidConfig(step *api.Step, name api.Name, value any) error {
	return fmt.Errorf("%w: %s has %q = %v",
		ErrInvalidConfig, step.ID, name, value)
}
