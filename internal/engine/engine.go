package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/message"
	"github.com/kode4food/caravan/topic"

	"github.com/kode4food/stepflow/internal/config"
	"github.com/kode4food/stepflow/internal/engine/handler"
	"github.com/kode4food/stepflow/internal/engine/plan"
	"github.com/kode4food/stepflow/pkg/api"
)

type (
	// Engine is the workflow execution engine
	Engine struct {
		registry *handler.Registry
		archiver Archiver
		config   *config.Config
		clock    Clock
		store    *Store
		notifier *Notifier
		hub      topic.Topic[*api.RunState]
		hubProd  topic.Producer[*api.RunState]
		ctx      context.Context
		cancel   context.CancelFunc
		active   sync.Map // map[api.RunID]*run
		wg       sync.WaitGroup
		mu       sync.Mutex
		stopping atomic.Bool
		stopOnce sync.Once
		stopErr  error
	}

	// Dependencies are the collaborators an Engine is built from. A nil
	// Registry gets the built-in handlers and a nil Clock uses time.Now
	Dependencies struct {
		Registry *handler.Registry
		Archiver Archiver
		Clock    Clock
	}

	// Archiver receives every run once it reaches a terminal status
	Archiver interface {
		Enqueue(*api.RunState)
	}

	// RunConsumer receives every published run snapshot
	RunConsumer = topic.Consumer[*api.RunState]
)

const runIDSuffixLen = 8

var (
	ErrShutdownTimeout   = errors.New("shutdown timeout exceeded")
	ErrEngineStopped     = errors.New("engine stopped")
	ErrRunNotFound       = errors.New("run not found")
	ErrRunNotActive      = errors.New("run not active")
	ErrRunExists         = errors.New("run exists")
	ErrStepTimeout       = errors.New("step timed out")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// New creates an engine from its configuration and dependencies
func New(cfg *config.Config, deps Dependencies) *Engine {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Registry == nil {
		deps.Registry = handler.NewDefaultRegistry(handler.Dependencies{
			Clock: deps.Clock,
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	hub := caravan.NewTopic[*api.RunState]()
	return &Engine{
		registry: deps.Registry,
		archiver: deps.Archiver,
		config:   cfg,
		clock:    deps.Clock,
		store:    NewStore(cfg.RunCacheSize),
		notifier: NewNotifier(),
		hub:      hub,
		hubProd:  hub.NewProducer(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Stop cancels every active run and waits for them to wind down. Runs
// still dispatching when ShutdownTimeout elapses have their handler
// contexts cancelled, and ErrShutdownTimeout is returned
func (e *Engine) Stop() error {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		e.stopping.Store(true)
		e.mu.Unlock()

		e.active.Range(func(_, v any) bool {
			v.(*run).cancelled.Store(true)
			return true
		})

		if !e.waitRuns(e.config.ShutdownTimeout) {
			e.stopErr = ErrShutdownTimeout
			slog.Warn("Shutdown timeout exceeded, aborting active steps",
				slog.Int("active_runs", e.ActiveRuns()))
		}
		e.cancel()
		e.wg.Wait()
		e.hubProd.Close()
		slog.Info("Engine stopped")
	})
	return e.stopErr
}

// Registry returns the handler registry used to dispatch steps
func (e *Engine) Registry() *handler.Registry {
	return e.registry
}

// NewConsumer returns a consumer of every run snapshot published after the
// call. The caller must Close it
func (e *Engine) NewConsumer() RunConsumer {
	return e.hub.NewConsumer()
}

// Order returns the execution order the engine would use for a graph,
// without starting a run
func (e *Engine) Order(g *api.Graph) ([]api.StepID, error) {
	return plan.Order(g)
}

// ActiveRuns returns the number of runs that have not yet finished
func (e *Engine) ActiveRuns() int {
	count := 0
	e.active.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

func (e *Engine) waitRuns(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (e *Engine) newRunID() api.RunID {
	return api.RunID(fmt.Sprintf("run-%d-%s",
		e.clock().UnixMilli(), uuid.NewString()[:runIDSuffixLen],
	))
}

// publish records a new snapshot and pushes it to every observer
func (e *Engine) publish(st *api.RunState) {
	e.store.Put(st)
	e.notifier.Notify(st)
	message.Send(e.hubProd, st)
	if st.Status.IsTerminal() && e.archiver != nil {
		e.archiver.Enqueue(st)
	}
}
