package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	app "github.com/kode4food/stepflow"
	"github.com/kode4food/stepflow/internal/archive"
	"github.com/kode4food/stepflow/internal/client"
	"github.com/kode4food/stepflow/internal/config"
	"github.com/kode4food/stepflow/internal/engine"
	"github.com/kode4food/stepflow/internal/engine/handler"
	"github.com/kode4food/stepflow/internal/kv"
	"github.com/kode4food/stepflow/internal/server"
	"github.com/kode4food/stepflow/pkg/log"
)

type stepflow struct {
	cfg        *config.Config
	store      kv.Store
	archive    *archive.Queue
	engine     *engine.Engine
	apiServer  *server.Server
	httpServer *http.Server
	quit       chan os.Signal
}

const archiveBlobPrefix = "runs/"

var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrOpenArchive   = errors.New("failed to open run archive")
)

func main() {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}

	s := &stepflow{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
	s.setupLogging()

	if err := s.run(); err != nil {
		slog.Error("Failed to start application", log.Error(err))
		os.Exit(1)
	}
}

func (s *stepflow) run() error {
	if err := s.cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := s.initializeArchive(); err != nil {
		return err
	}
	s.initializeEngine()
	s.startServer()

	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.quit)
	<-s.quit

	s.shutdown()
	return nil
}

func (s *stepflow) setupLogging() {
	level, _ := log.ParseLevel(s.cfg.LogLevel)

	env := os.Getenv("ENV")
	logger := log.NewWithLevel(app.Name, env, app.Version, level)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	slog.Info("Stepflow Engine starting",
		slog.String("log_level", s.cfg.LogLevel))

	slog.Info("Configuration loaded",
		slog.String("archive_redis_addr", s.cfg.Archive.Redis.Addr),
		slog.String("archive_bucket_url", s.cfg.Archive.BucketURL),
		slog.String("store_redis_addr", s.cfg.KVStore.Addr),
		slog.Int("store_redis_db", s.cfg.KVStore.DB),
		slog.Int("run_cache_size", s.cfg.RunCacheSize),
		slog.String("api_host", s.cfg.APIHost),
		slog.Int("api_port", s.cfg.APIPort))
}

func (s *stepflow) initializeArchive() error {
	var sinks []archive.Sink

	if rc := s.cfg.Archive.Redis; rc.Enabled() {
		sinks = append(sinks,
			archive.NewRedisSink(rc.Addr, rc.Password, rc.DB, rc.Prefix),
		)
	}

	if url := s.cfg.Archive.BucketURL; url != "" {
		sink, err := archive.NewBlobSink(
			context.Background(), url, archiveBlobPrefix,
		)
		if err != nil {
			closeSinks(sinks)
			return fmt.Errorf("%w: %w", ErrOpenArchive, err)
		}
		sinks = append(sinks, sink)
	}

	if len(sinks) == 0 {
		slog.Info("Run archiving disabled")
		return nil
	}

	q, err := archive.NewQueue(sinks...)
	if err != nil {
		closeSinks(sinks)
		return fmt.Errorf("%w: %w", ErrOpenArchive, err)
	}
	q.Start()
	s.archive = q
	return nil
}

func (s *stepflow) initializeEngine() {
	if rc := s.cfg.KVStore; rc.Enabled() {
		s.store = kv.NewRedis(rc.Addr, rc.Password, rc.DB, rc.Prefix)
	} else {
		s.store = kv.NewMemory()
	}

	reg := handler.NewDefaultRegistry(handler.Dependencies{
		Client: client.NewHTTPClient(s.cfg.WebhookTimeout),
		Store:  s.store,
	})

	deps := engine.Dependencies{Registry: reg}
	if s.archive != nil {
		deps.Archiver = s.archive
	}
	s.engine = engine.New(s.cfg, deps)
}

func (s *stepflow) startServer() {
	var sinks []archive.Sink
	if s.archive != nil {
		sinks = s.archive.Sinks()
	}
	s.apiServer = server.NewServer(s.engine, sinks...)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.APIHost, s.cfg.APIPort),
		Handler: s.apiServer.SetupRoutes(),
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
			s.quit <- syscall.SIGTERM
		}
	}()
}

func (s *stepflow) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), s.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", log.Error(err))
	}

	s.apiServer.CloseWebSockets()

	if err := s.engine.Stop(); err != nil {
		slog.Error("Engine shutdown failed", log.Error(err))
	}

	if s.archive != nil {
		s.archive.Flush()
	}
	_ = s.store.Close()

	slog.Info("Server exited")
}

func closeSinks(sinks []archive.Sink) {
	for _, s := range sinks {
		_ = s.Close()
	}
}
