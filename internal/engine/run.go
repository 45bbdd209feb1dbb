package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/kode4food/stepflow/internal/engine/plan"
	"github.com/kode4food/stepflow/internal/engine/runopt"
	"github.com/kode4food/stepflow/pkg/api"
	"github.com/kode4food/stepflow/pkg/log"
)

// run is the controller-side record of an executing run. Only the run's
// own goroutine writes state
type run struct {
	graph     *api.Graph
	state     atomic.Pointer[api.RunState]
	done      chan struct{}
	id        api.RunID
	cancelled atomic.Bool
}

// StartRun validates and schedules a graph, then executes it in the
// background. Graph errors are returned before any run is created. Step
// failures are recorded in the run and observed via GetRun or Subscribe
func (e *Engine) StartRun(
	_ context.Context, g *api.Graph, apps ...runopt.Applier,
) (api.RunID, error) {
	order, err := plan.Order(g)
	if err != nil {
		return "", err
	}

	opts := runopt.DefaultOptions(apps...)
	id := opts.RunID
	if id == "" {
		id = e.newRunID()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopping.Load() {
		return "", ErrEngineStopped
	}
	if _, ok := e.lookup(id); ok {
		return "", fmt.Errorf("%w: %s", ErrRunExists, id)
	}

	r := &run{
		id:    id,
		graph: g,
		done:  make(chan struct{}),
	}
	st := api.NewRunState(id, order, e.clock())
	r.state.Store(st)

	e.notifier.Open(id)
	for _, fn := range opts.Subscribers {
		e.notifier.Subscribe(id, fn)
	}
	e.active.Store(id, r)

	slog.Info("Run started",
		log.RunID(id),
		slog.Int("steps", len(order)))

	e.wg.Go(func() {
		e.execute(r)
	})
	return id, nil
}

// ExecuteRun starts a run and blocks until it reaches a terminal status or
// ctx is done
func (e *Engine) ExecuteRun(
	ctx context.Context, g *api.Graph, apps ...runopt.Applier,
) (*api.RunState, error) {
	id, err := e.StartRun(ctx, g, apps...)
	if err != nil {
		return nil, err
	}
	return e.WaitRun(ctx, id)
}

// WaitRun blocks until the run reaches a terminal status or ctx is done,
// and returns its final snapshot
func (e *Engine) WaitRun(
	ctx context.Context, id api.RunID,
) (*api.RunState, error) {
	if v, ok := e.active.Load(id); ok {
		select {
		case <-v.(*run).done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return e.GetRun(id)
}

// CancelRun requests cooperative cancellation. The step in flight, if any,
// runs to completion; every step after it is skipped
func (e *Engine) CancelRun(id api.RunID) error {
	if v, ok := e.active.Load(id); ok {
		v.(*run).cancelled.Store(true)
		slog.Info("Run cancellation requested", log.RunID(id))
		return nil
	}
	if _, ok := e.store.Get(id); ok {
		return fmt.Errorf("%w: %s", ErrRunNotActive, id)
	}
	return fmt.Errorf("%w: %s", ErrRunNotFound, id)
}

// GetRun returns the latest snapshot of a run
func (e *Engine) GetRun(id api.RunID) (*api.RunState, error) {
	if st, ok := e.lookup(id); ok {
		return st, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
}

// ListRuns returns the latest snapshot of every known run, newest first
func (e *Engine) ListRuns() []*api.RunState {
	res := e.store.List()
	seen := make(map[api.RunID]struct{}, len(res))
	for _, st := range res {
		seen[st.ID] = struct{}{}
	}
	added := false
	e.active.Range(func(_, v any) bool {
		st := v.(*run).state.Load()
		if _, ok := seen[st.ID]; !ok {
			res = append(res, st)
			added = true
		}
		return true
	})
	if added {
		sortRuns(res)
	}
	return res
}

// Subscribe registers fn to receive every future snapshot of a run. If the
// run has already finished, fn is called once with its final snapshot
func (e *Engine) Subscribe(
	id api.RunID, fn runopt.Subscriber,
) (Unsubscribe, error) {
	if unsub, ok := e.notifier.Subscribe(id, fn); ok {
		return unsub, nil
	}
	st, ok := e.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	deliver(&subscription{fn: fn}, st)
	return func() {}, nil
}

func (e *Engine) lookup(id api.RunID) (*api.RunState, bool) {
	if v, ok := e.active.Load(id); ok {
		return v.(*run).state.Load(), true
	}
	return e.store.Get(id)
}
