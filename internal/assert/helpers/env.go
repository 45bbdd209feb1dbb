package helpers

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kode4food/stepflow/internal/client"
	"github.com/kode4food/stepflow/internal/config"
	"github.com/kode4food/stepflow/internal/engine"
	"github.com/kode4food/stepflow/internal/engine/handler"
	"github.com/kode4food/stepflow/internal/kv"
)

// TestEngineEnv holds all the components needed for engine testing
type TestEngineEnv struct {
	Engine   *engine.Engine
	Redis    *miniredis.Miniredis
	Mock     *MockHandler
	Store    *kv.Redis
	Archiver *RecordingArchiver
	Config   *config.Config
}

// NewTestConfig creates a default configuration with debug logging enabled
// and timeouts short enough for tests
func NewTestConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.LogLevel = "debug"
	cfg.StepTimeout = 5_000
	cfg.RunCacheSize = 100
	cfg.ShutdownTimeout = 2 * time.Second
	cfg.WebhookTimeout = 2 * time.Second
	return cfg
}

// NewTestEngine creates an engine backed by an in-memory Redis key-value
// store, with the built-in handlers plus a MockHandler registered as the
// "mock" step type. The engine is stopped when the test ends
func NewTestEngine(t *testing.T) *TestEngineEnv {
	t.Helper()
	return NewTestEngineWithConfig(t, NewTestConfig())
}

// NewTestEngineWithConfig is NewTestEngine with a caller-supplied config
func NewTestEngineWithConfig(
	t *testing.T, cfg *config.Config,
) *TestEngineEnv {
	t.Helper()

	server := miniredis.RunT(t)
	store := kv.NewRedisWithClient(redis.NewClient(&redis.Options{
		Addr:            server.Addr(),
		Protocol:        2,
		DisableIdentity: true,
	}), "test-kv:")

	mock := NewMockHandler()
	reg := handler.NewDefaultRegistry(handler.Dependencies{
		Client: client.NewHTTPClient(cfg.WebhookTimeout),
		Store:  store,
	})
	reg.Register(MockStepType, mock)

	arch := &RecordingArchiver{}
	eng := engine.New(cfg, engine.Dependencies{
		Registry: reg,
		Archiver: arch,
	})

	t.Cleanup(func() {
		_ = eng.Stop()
		_ = store.Close()
	})

	return &TestEngineEnv{
		Engine:   eng,
		Redis:    server,
		Mock:     mock,
		Store:    store,
		Archiver: arch,
		Config:   cfg,
	}
}
