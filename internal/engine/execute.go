package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kode4food/stepflow/internal/engine/handler"
	"github.com/kode4food/stepflow/pkg/api"
	"github.com/kode4food/stepflow/pkg/log"
)

type dispatchResult struct {
	out api.Args
	err error
}

// ConfigTimeout overrides the engine's step timeout for a single step
const ConfigTimeout = api.Name("timeout_ms")

func (e *Engine) execute(r *run) {
	defer e.finish(r)

	e.publish(r.state.Load())

	ctx := handler.WithRunID(e.ctx, r.id)
	in := api.Context{}
	for i, id := range r.state.Load().Order() {
		if r.cancelled.Load() {
			e.cancelRun(r, i)
			return
		}

		step, _ := r.graph.Step(id)
		e.startStep(r, i, in)

		out, err := e.dispatch(ctx, step, in)
		if err != nil {
			e.failStep(r, i, step, err)
			return
		}

		in = in.With(id, out)
		e.completeStep(r, i, step, out)
	}
	e.completeRun(r)
}

func (e *Engine) finish(r *run) {
	e.active.Delete(r.id)
	close(r.done)
}

func (e *Engine) dispatch(
	ctx context.Context, step *api.Step, in api.Context,
) (api.Args, error) {
	timeout := e.config.StepDeadline()
	if ms := step.Config.GetInt(ConfigTimeout, 0); ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := make(chan dispatchResult, 1)
	go func() {
		out, err := e.registry.Dispatch(ctx, step, in)
		res <- dispatchResult{out: out, err: err}
	}()

	select {
	case r := <-res:
		if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, stepTimeout(step, timeout)
		}
		return r.out, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, stepTimeout(step, timeout)
		}
		return nil, ctx.Err()
	}
}

func stepTimeout(step *api.Step, timeout time.Duration) error {
	return fmt.Errorf("%w: %s after %s", ErrStepTimeout, step.ID, timeout)
}

func (e *Engine) startStep(r *run, i int, in api.Context) {
	now := e.clock()
	e.updateStep(r, i, api.StepRunning, func(s *api.StepState) *api.StepState {
		return s.SetStartedAt(now).SetInputs(in)
	})
	step := r.state.Load().Steps[i]
	slog.Debug("Step started",
		log.RunID(r.id),
		log.StepID(step.StepID))
}

func (e *Engine) completeStep(
	r *run, i int, step *api.Step, out api.Args,
) {
	now := e.clock()
	e.updateStep(r, i, api.StepCompleted, func(s *api.StepState) *api.StepState {
		return s.SetOutputs(out).SetCompletedAt(now)
	})
	slog.Debug("Step completed",
		log.RunID(r.id),
		log.StepID(step.ID),
		log.StepType(step.Type))
}

func (e *Engine) failStep(r *run, i int, step *api.Step, err error) {
	now := e.clock()
	msg := err.Error()
	e.updateStep(r, i, api.StepError, func(s *api.StepState) *api.StepState {
		return s.SetError(msg).SetCompletedAt(now)
	})
	slog.Error("Step failed",
		log.RunID(r.id),
		log.StepID(step.ID),
		log.StepType(step.Type),
		log.Error(err))

	st := r.state.Load().SetError(msg)
	if r.cancelled.Load() {
		e.endRun(r, skipPending(st, i+1), api.RunCancelled)
		return
	}
	e.endRun(r, st, api.RunError)
}

func (e *Engine) cancelRun(r *run, from int) {
	slog.Info("Run cancelled",
		log.RunID(r.id),
		slog.Int("skipped", len(r.state.Load().Steps)-from))
	e.endRun(r, skipPending(r.state.Load(), from), api.RunCancelled)
}

func (e *Engine) completeRun(r *run) {
	e.endRun(r, r.state.Load(), api.RunCompleted)
}

func (e *Engine) endRun(r *run, st *api.RunState, status api.RunStatus) {
	if !runTransitions.CanTransition(st.Status, status) {
		slog.Error("Invalid run transition",
			log.RunID(r.id),
			log.Error(fmt.Errorf("%w: %s -> %s",
				ErrInvalidTransition, st.Status, status)))
		return
	}
	st = st.SetStatus(status).SetCompletedAt(e.clock())
	r.state.Store(st)
	e.publish(st)

	slog.Info("Run finished",
		log.RunID(r.id),
		log.Status(status),
		slog.Duration("duration", st.Duration))
}

func (e *Engine) updateStep(
	r *run, i int, to api.StepStatus,
	apply func(*api.StepState) *api.StepState,
) {
	st := r.state.Load()
	step := st.Steps[i]
	if !stepTransitions.CanTransition(step.Status, to) {
		slog.Error("Invalid step transition",
			log.RunID(r.id),
			log.StepID(step.StepID),
			log.Error(fmt.Errorf("%w: %s -> %s",
				ErrInvalidTransition, step.Status, to)))
		return
	}
	st = st.SetStep(i, apply(step.SetStatus(to)))
	r.state.Store(st)
	e.publish(st)
}

// skipPending marks every pending step from index onward as skipped
func skipPending(st *api.RunState, from int) *api.RunState {
	for i := from; i < len(st.Steps); i++ {
		step := st.Steps[i]
		if stepTransitions.CanTransition(step.Status, api.StepSkipped) {
			st = st.SetStep(i, step.SetStatus(api.StepSkipped))
		}
	}
	return st
}
