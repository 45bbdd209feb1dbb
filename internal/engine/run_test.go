package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kode4food/stepflow/internal/assert"
	"github.com/kode4food/stepflow/internal/assert/helpers"
	"github.com/kode4food/stepflow/internal/assert/wait"
	"github.com/kode4food/stepflow/internal/engine"
	"github.com/kode4food/stepflow/internal/engine/handler"
	"github.com/kode4food/stepflow/internal/engine/plan"
	"github.com/kode4food/stepflow/internal/engine/runopt"
	"github.com/kode4food/stepflow/pkg/api"
	"github.com/kode4food/stepflow/pkg/builder"
)

func TestLinearChain(t *testing.T) {
	env := helpers.NewTestEngine(t)
	as := assert.New(t)

	g, err := builder.NewGraph().Chain(
		builder.Trigger("Start"),
		builder.Agent("Generate", handler.AgentTextGeneration).
			With("prompt", "hello"),
		builder.Action("Record", handler.ActionLog),
	).Build()
	require.NoError(t, err)

	st, err := env.Engine.ExecuteRun(context.Background(), g)
	require.NoError(t, err)

	as.RunStatus(st, api.RunCompleted)
	as.StepStatuses(st,
		api.StepCompleted, api.StepCompleted, api.StepCompleted,
	)
	as.Equal([]api.StepID{"start", "generate", "record"}, st.Order())
	as.StepSawContext(st, "generate", "start")
	as.StepSawContext(st, "record", "start", "generate")
	as.TimingValid(st)
	as.Empty(st.Error)

	_, gen, _ := st.Step("generate")
	as.Equal("Generated response for: hello", gen.Outputs["text"])
}

func TestDiamond(t *testing.T) {
	env := helpers.NewTestEngine(t)
	as := assert.New(t)

	g := helpers.MockGraph(t, []api.StepID{"a", "b", "c", "d"},
		[2]api.StepID{"a", "b"},
		[2]api.StepID{"a", "c"},
		[2]api.StepID{"b", "d"},
		[2]api.StepID{"c", "d"},
	)

	st, err := env.Engine.ExecuteRun(context.Background(), g)
	require.NoError(t, err)

	as.RunStatus(st, api.RunCompleted)
	as.Equal([]api.StepID{"a", "b", "c", "d"}, st.Order())
	as.StepSawContext(st, "d", "a", "b", "c")
	as.Equal([]api.StepID{"a", "b", "c", "d"}, env.Mock.Invocations())
	as.Equal(api.Args{"step": "b"}, env.Mock.Inputs("d")["b"])
}

func TestEmptyGraph(t *testing.T) {
	env := helpers.NewTestEngine(t)

	st, err := env.Engine.ExecuteRun(context.Background(), &api.Graph{})
	require.NoError(t, err)
	assert.New(t).RunStatus(st, api.RunCompleted)
	assert.New(t).Empty(st.Steps)
}

func TestCycleCreatesNoRun(t *testing.T) {
	env := helpers.NewTestEngine(t)
	as := assert.New(t)

	g := helpers.MockGraph(t, []api.StepID{"a", "b"},
		[2]api.StepID{"a", "b"},
		[2]api.StepID{"b", "a"},
	)

	id, err := env.Engine.StartRun(context.Background(), g)
	as.ErrorIs(err, plan.ErrCycleDetected)
	as.Empty(id)
	as.Empty(env.Engine.ListRuns())
	as.Empty(env.Mock.Invocations())
}

func TestInvalidGraphCreatesNoRun(t *testing.T) {
	env := helpers.NewTestEngine(t)
	as := assert.New(t)

	g := helpers.MockChain(t, "a")
	g.Connections = append(g.Connections, &api.Connection{
		Source: "a", Target: "ghost",
	})

	_, err := env.Engine.StartRun(context.Background(), g)
	as.ErrorIs(err, api.ErrInvalidGraph)
	as.ErrorIs(err, api.ErrMissingTarget)
	as.Empty(env.Engine.ListRuns())

	_, err = env.Engine.StartRun(context.Background(), nil)
	as.ErrorIs(err, api.ErrInvalidGraph)
	_, err = env.Engine.Order(nil)
	as.ErrorIs(err, api.ErrGraphNil)
	as.Empty(env.Engine.ListRuns())
}

func TestRunIDOption(t *testing.T) {
	env := helpers.NewTestEngine(t)
	as := assert.New(t)
	g := helpers.MockChain(t, "a")

	st, err := env.Engine.ExecuteRun(
		context.Background(), g, runopt.WithRunID("fixed"),
	)
	require.NoError(t, err)
	as.Equal(api.RunID("fixed"), st.ID)

	_, err = env.Engine.StartRun(
		context.Background(), g, runopt.WithRunID("fixed"),
	)
	as.ErrorIs(err, engine.ErrRunExists)
}

func TestGeneratedRunIDs(t *testing.T) {
	env := helpers.NewTestEngine(t)
	g := helpers.MockChain(t, "a")

	id1, err := env.Engine.StartRun(context.Background(), g)
	require.NoError(t, err)
	id2, err := env.Engine.StartRun(context.Background(), g)
	require.NoError(t, err)

	as := assert.New(t)
	as.NotEqual(id1, id2)
	as.Regexp(`^run-\d+-[0-9a-f]{8}$`, string(id1))
}

func TestConcurrentRuns(t *testing.T) {
	env := helpers.NewTestEngine(t)
	as := assert.New(t)

	const runs = 10
	g := helpers.MockChain(t, "a", "b", "c")
	results := make([]*api.RunState, runs)
	var wg sync.WaitGroup
	for i := range runs {
		wg.Go(func() {
			st, err := env.Engine.ExecuteRun(context.Background(), g)
			as.NoError(err)
			results[i] = st
		})
	}
	wg.Wait()

	seen := map[api.RunID]bool{}
	for _, st := range results {
		as.RunStatus(st, api.RunCompleted)
		seen[st.ID] = true
	}
	as.Len(seen, runs)
	as.Len(env.Engine.ListRuns(), runs)
	as.Zero(env.Engine.ActiveRuns())
}

func TestGetRun(t *testing.T) {
	env := helpers.NewTestEngine(t)
	as := assert.New(t)

	_, err := env.Engine.GetRun("missing")
	as.ErrorIs(err, engine.ErrRunNotFound)

	release := env.Mock.Block("a")
	invoked := env.Mock.WaitFor("a")
	id, err := env.Engine.StartRun(
		context.Background(), helpers.MockChain(t, "a", "b"),
	)
	require.NoError(t, err)
	<-invoked

	st, err := env.Engine.GetRun(id)
	require.NoError(t, err)
	as.RunStatus(st, api.RunRunning)
	as.StepStatuses(st, api.StepRunning, api.StepPending)
	as.Equal(1, env.Engine.ActiveRuns())

	release()
	st, err = env.Engine.WaitRun(context.Background(), id)
	require.NoError(t, err)
	as.RunStatus(st, api.RunCompleted)
}

func TestWaitRunContext(t *testing.T) {
	env := helpers.NewTestEngine(t)

	release := env.Mock.Block("a")
	defer release()

	id, err := env.Engine.StartRun(
		context.Background(), helpers.MockChain(t, "a"),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = env.Engine.WaitRun(ctx, id)
	assert.New(t).ErrorIs(err, context.DeadlineExceeded)
}

func TestListRunsNewestFirst(t *testing.T) {
	env := helpers.NewTestEngine(t)
	as := assert.New(t)
	g := helpers.MockChain(t, "a")

	var ids []api.RunID
	for range 3 {
		st, err := env.Engine.ExecuteRun(context.Background(), g)
		require.NoError(t, err)
		ids = append(ids, st.ID)
		time.Sleep(2 * time.Millisecond)
	}

	runs := env.Engine.ListRuns()
	require.Len(t, runs, 3)
	as.Equal(ids[2], runs[0].ID)
	as.Equal(ids[0], runs[2].ID)
}

func TestStoreEviction(t *testing.T) {
	cfg := helpers.NewTestConfig()
	cfg.RunCacheSize = 2
	env := helpers.NewTestEngineWithConfig(t, cfg)
	as := assert.New(t)
	g := helpers.MockChain(t, "a")

	var ids []api.RunID
	for range 3 {
		st, err := env.Engine.ExecuteRun(context.Background(), g)
		require.NoError(t, err)
		ids = append(ids, st.ID)
	}

	_, err := env.Engine.GetRun(ids[0])
	as.ErrorIs(err, engine.ErrRunNotFound)
	as.ErrorIs(env.Engine.CancelRun(ids[0]), engine.ErrRunNotFound)
	as.Len(env.Engine.ListRuns(), 2)
}

func TestActiveRunSurvivesEviction(t *testing.T) {
	cfg := helpers.NewTestConfig()
	cfg.RunCacheSize = 1
	env := helpers.NewTestEngineWithConfig(t, cfg)
	as := assert.New(t)

	release := env.Mock.Block("slow")
	invoked := env.Mock.WaitFor("slow")
	id, err := env.Engine.StartRun(
		context.Background(), helpers.MockChain(t, "slow"),
	)
	require.NoError(t, err)
	<-invoked

	_, err = env.Engine.ExecuteRun(
		context.Background(), helpers.MockChain(t, "fast"),
	)
	require.NoError(t, err)

	st, err := env.Engine.GetRun(id)
	require.NoError(t, err)
	as.RunStatus(st, api.RunRunning)
	as.Len(env.Engine.ListRuns(), 2)

	release()
	st, err = env.Engine.WaitRun(context.Background(), id)
	require.NoError(t, err)
	as.RunStatus(st, api.RunCompleted)
}

func TestStopRejectsNewRuns(t *testing.T) {
	env := helpers.NewTestEngine(t)

	require.NoError(t, env.Engine.Stop())
	require.NoError(t, env.Engine.Stop())

	_, err := env.Engine.StartRun(
		context.Background(), helpers.MockChain(t, "a"),
	)
	assert.New(t).ErrorIs(err, engine.ErrEngineStopped)
}

func TestStopCancelsActiveRuns(t *testing.T) {
	env := helpers.NewTestEngine(t)
	as := assert.New(t)

	release := env.Mock.Block("a")
	invoked := env.Mock.WaitFor("a")
	id, err := env.Engine.StartRun(
		context.Background(), helpers.MockChain(t, "a", "b"),
	)
	require.NoError(t, err)
	<-invoked

	go func() {
		time.Sleep(20 * time.Millisecond)
		release()
	}()
	require.NoError(t, env.Engine.Stop())

	st, err := env.Engine.GetRun(id)
	require.NoError(t, err)
	as.RunStatus(st, api.RunCancelled)
	as.StepStatuses(st, api.StepCompleted, api.StepSkipped)
	as.False(env.Mock.WasInvoked("b"))
}

func TestStopTimeoutAbortsSteps(t *testing.T) {
	cfg := helpers.NewTestConfig()
	cfg.ShutdownTimeout = 50 * time.Millisecond
	env := helpers.NewTestEngineWithConfig(t, cfg)
	as := assert.New(t)

	release := env.Mock.Block("a")
	defer release()
	invoked := env.Mock.WaitFor("a")
	id, err := env.Engine.StartRun(
		context.Background(), helpers.MockChain(t, "a", "b"),
	)
	require.NoError(t, err)
	<-invoked

	as.ErrorIs(env.Engine.Stop(), engine.ErrShutdownTimeout)

	st, err := env.Engine.GetRun(id)
	require.NoError(t, err)
	as.RunStatus(st, api.RunCancelled)
	as.StepStatuses(st, api.StepError, api.StepSkipped)
	as.Zero(env.Engine.ActiveRuns())
}

func TestArchiverReceivesTerminalRuns(t *testing.T) {
	env := helpers.NewTestEngine(t)
	as := assert.New(t)

	done, err := env.Engine.ExecuteRun(
		context.Background(), helpers.MockChain(t, "a"),
	)
	require.NoError(t, err)

	env.Mock.SetError("x", errors.New("bad"))
	failed, err := env.Engine.ExecuteRun(
		context.Background(), helpers.MockChain(t, "x"),
	)
	require.NoError(t, err)

	runs := env.Archiver.Runs()
	require.Len(t, runs, 2)
	as.Same(done, runs[0])
	as.Same(failed, runs[1])
}

func TestHubPublishesSnapshots(t *testing.T) {
	env := helpers.NewTestEngine(t)
	cons := env.Engine.NewConsumer()
	defer cons.Close()

	id, err := env.Engine.StartRun(
		context.Background(), helpers.MockChain(t, "a", "b"),
	)
	require.NoError(t, err)

	w := wait.On(t, cons)
	w.ForState(wait.And(wait.Run(id), wait.StepStatus("b", api.StepRunning)))
	st := w.ForState(wait.RunFinished(id))
	assert.New(t).RunStatus(st, api.RunCompleted)
}

func TestOrder(t *testing.T) {
	env := helpers.NewTestEngine(t)

	order, err := env.Engine.Order(helpers.MockGraph(t,
		[]api.StepID{"c", "b", "a"},
		[2]api.StepID{"a", "b"},
	))
	require.NoError(t, err)
	assert.New(t).Equal([]api.StepID{"c", "a", "b"}, order)
}
