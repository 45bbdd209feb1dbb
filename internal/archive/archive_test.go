package archive_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/stepflow/internal/archive"
	"github.com/kode4food/stepflow/pkg/api"
)

type recordingSink struct {
	runs   map[api.RunID]*api.RunState
	order  []api.RunID
	fails  int
	panics bool
	closed bool
	mu     sync.Mutex
}

var errSinkDown = errors.New("sink down")

func newRecordingSink() *recordingSink {
	return &recordingSink{runs: map[api.RunID]*api.RunState{}}
}

func (s *recordingSink) Put(_ context.Context, st *api.RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panics {
		panic("sink exploded")
	}
	if s.fails > 0 {
		s.fails--
		return errSinkDown
	}
	s.runs[st.ID] = st
	s.order = append(s.order, st.ID)
	return nil
}

func (s *recordingSink) Get(
	_ context.Context, id api.RunID,
) (*api.RunState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.runs[id]; ok {
		return st, nil
	}
	return nil, archive.ErrNotFound
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

func finishedRun(id api.RunID) *api.RunState {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	st := api.NewRunState(id, []api.StepID{"a"}, start)
	st = st.SetStep(0, st.Steps[0].
		SetStatus(api.StepCompleted).
		SetStartedAt(start).
		SetOutputs(api.Args{"x": "y"}).
		SetCompletedAt(start.Add(time.Second)),
	)
	return st.SetStatus(api.RunCompleted).SetCompletedAt(start.Add(time.Second))
}

func TestQueueArchivesInOrder(t *testing.T) {
	a := newRecordingSink()
	b := newRecordingSink()
	q, err := archive.NewQueue(a, b)
	require.NoError(t, err)
	q.Start()

	q.Enqueue(finishedRun("run-1"))
	q.Enqueue(nil)
	q.Enqueue(finishedRun("run-2"))
	q.Enqueue(finishedRun("run-3"))

	assert.Eventually(t, func() bool {
		return a.count() == 3 && b.count() == 3
	}, 2*time.Second, 10*time.Millisecond)

	q.Flush()
	assert.Equal(t, []api.RunID{"run-1", "run-2", "run-3"}, a.order)
	assert.True(t, a.closed)
	assert.True(t, b.closed)
	assert.Len(t, q.Sinks(), 2)
}

func TestQueueRetries(t *testing.T) {
	sink := newRecordingSink()
	sink.fails = 2
	q, err := archive.NewQueue(sink)
	require.NoError(t, err)
	q.Start()
	defer q.Flush()

	q.Enqueue(finishedRun("run-1"))

	assert.Eventually(t, func() bool {
		return sink.count() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestQueueSinkPanic(t *testing.T) {
	bad := newRecordingSink()
	bad.panics = true
	good := newRecordingSink()
	q, err := archive.NewQueue(bad, good)
	require.NoError(t, err)
	q.Start()
	defer q.Flush()

	q.Enqueue(finishedRun("run-1"))

	assert.Eventually(t, func() bool {
		return good.count() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNewQueueRequiresSink(t *testing.T) {
	_, err := archive.NewQueue()
	assert.ErrorIs(t, err, archive.ErrSinkRequired)
}

func TestFirst(t *testing.T) {
	ctx := context.Background()
	a := newRecordingSink()
	b := newRecordingSink()
	require.NoError(t, b.Put(ctx, finishedRun("run-b")))

	st, err := archive.First(ctx, "run-b", a, b)
	require.NoError(t, err)
	assert.Equal(t, api.RunID("run-b"), st.ID)

	_, err = archive.First(ctx, "missing", a, b)
	assert.ErrorIs(t, err, archive.ErrNotFound)
}

func TestBlobSink(t *testing.T) {
	ctx := context.Background()

	s, err := archive.NewBlobSink(ctx, "mem://", "runs/")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	_, err = s.Get(ctx, "run-1")
	assert.ErrorIs(t, err, archive.ErrNotFound)

	want := finishedRun("run-1")
	require.NoError(t, s.Put(ctx, want))

	got, err := s.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, api.RunCompleted, got.Status)
	assert.Equal(t, time.Second, got.Duration)
	assert.Equal(t, "y", got.Steps[0].Outputs["x"])

	require.NoError(t, s.Delete(ctx, "run-1"))
	_, err = s.Get(ctx, "run-1")
	assert.ErrorIs(t, err, archive.ErrNotFound)
	assert.NoError(t, s.Delete(ctx, "run-1"))
}

func TestBlobSinkFileURL(t *testing.T) {
	ctx := context.Background()

	s, err := archive.NewBlobSink(ctx, "file://"+t.TempDir(), "")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Put(ctx, finishedRun("run-f")))
	got, err := s.Get(ctx, "run-f")
	require.NoError(t, err)
	assert.Len(t, got.Steps, 1)
}

func TestRedisSink(t *testing.T) {
	ctx := context.Background()
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	s := archive.NewRedisSinkWithClient(redis.NewClient(&redis.Options{
		Addr:            server.Addr(),
		Protocol:        2,
		DisableIdentity: true,
	}), "test:run:")
	defer func() { _ = s.Close() }()

	_, err = s.Get(ctx, "run-1")
	assert.ErrorIs(t, err, archive.ErrNotFound)

	first := finishedRun("run-1")
	second := finishedRun("run-2")
	second = second.SetCompletedAt(second.CompletedAt.Add(time.Minute))
	require.NoError(t, s.Put(ctx, first))
	require.NoError(t, s.Put(ctx, second))

	got, err := s.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, api.RunCompleted, got.Status)

	ids, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []api.RunID{"run-2", "run-1"}, ids)

	assert.True(t, server.Exists("test:run:run-1"))
}
