package server_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/stepflow/internal/archive"
	"github.com/kode4food/stepflow/internal/assert"
	"github.com/kode4food/stepflow/internal/assert/helpers"
	"github.com/kode4food/stepflow/internal/engine"
	"github.com/kode4food/stepflow/internal/engine/handler"
	"github.com/kode4food/stepflow/internal/server"
	"github.com/kode4food/stepflow/pkg/api"
	"github.com/kode4food/stepflow/pkg/builder"
)

func TestEvictedRunsServedFromArchive(t *testing.T) {
	as := assert.New(t)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	redisSink := archive.NewRedisSinkWithClient(redis.NewClient(&redis.Options{
		Addr:            mr.Addr(),
		Protocol:        2,
		DisableIdentity: true,
	}), "test-run:")
	blobSink, err := archive.NewBlobSink(ctx, "mem://", "runs/")
	require.NoError(t, err)

	q, err := archive.NewQueue(redisSink, blobSink)
	require.NoError(t, err)
	q.Start()

	cfg := helpers.NewTestConfig()
	cfg.RunCacheSize = 1
	eng := engine.New(cfg, engine.Dependencies{
		Registry: handler.NewDefaultRegistry(handler.Dependencies{}),
		Archiver: q,
	})
	srv := server.NewServer(eng, q.Sinks()...)
	hs := httptest.NewServer(srv.SetupRoutes())
	t.Cleanup(func() {
		hs.Close()
		_ = eng.Stop()
		q.Flush()
	})
	cl := builder.NewClient(hs.URL, 5*time.Second)

	g, err := builder.NewGraph().Chain(
		builder.Trigger("Start"),
		builder.Condition("Check", "start.triggered == true"),
	).Build()
	require.NoError(t, err)

	first, err := eng.ExecuteRun(ctx, g)
	require.NoError(t, err)
	as.RunStatus(first, api.RunCompleted)

	_, err = eng.ExecuteRun(ctx, g)
	require.NoError(t, err)

	_, err = eng.GetRun(first.ID)
	as.ErrorIs(err, engine.ErrRunNotFound)

	as.EventuallyWithError(func() error {
		_, err := blobSink.Get(ctx, first.ID)
		return err
	}, 2*time.Second, "run should reach the blob archive")

	st, err := cl.GetRun(ctx, first.ID)
	require.NoError(t, err)
	as.Equal(first.ID, st.ID)
	as.RunStatus(st, api.RunCompleted)
	as.StepStatuses(st, api.StepCompleted, api.StepCompleted)
	_, check, _ := st.Step("check")
	as.Equal(true, check.Outputs["result"])

	as.Eventually(func() bool {
		recent, err := redisSink.Recent(ctx, 10)
		return err == nil && len(recent) == 2
	}, 2*time.Second, "both runs should reach the redis archive")
}
