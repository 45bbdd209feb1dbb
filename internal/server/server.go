package server

import (
	"log/slog"
	"net/http"
	"sync"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	"github.com/kode4food/stepflow/internal/archive"
	"github.com/kode4food/stepflow/internal/engine"
	"github.com/kode4food/stepflow/pkg/util"
)

// Server implements the HTTP API server for the engine
type Server struct {
	engine  *engine.Engine
	archive []archive.Sink
	sockets util.Set[*Client]
	mu      sync.Mutex
}

// NewServer creates a new HTTP API server. Runs that have aged out of the
// engine's store are looked up in the given archive sinks, in order
func NewServer(eng *engine.Engine, sinks ...archive.Sink) *Server {
	return &Server{
		engine:  eng,
		archive: sinks,
		sockets: util.Set[*Client]{},
	}
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set(
			"Access-Control-Allow-Methods", "GET, POST, OPTIONS",
		)
		c.Writer.Header().Set(
			"Access-Control-Allow-Headers",
			"Content-Type, Authorization",
		)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	router.GET("/health", s.handleHealth)

	eng := router.Group("/engine")
	{
		eng.POST("/plan", s.handlePlan)

		eng.GET("/run", s.listRuns)
		eng.POST("/run", s.startRun)
		eng.GET("/run/:runID", s.getRun)
		eng.POST("/run/:runID/cancel", s.cancelRun)

		eng.GET("/ws", s.handleWebSocket)
	}

	return router
}

func (s *Server) registerWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Add(c)
}

func (s *Server) unregisterWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Remove(c)
}

// CloseWebSockets closes all active WebSocket connections
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := make([]*Client, 0, len(s.sockets))
	for c := range s.sockets {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
