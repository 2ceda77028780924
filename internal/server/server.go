// Package server owns the HTTP surface: the gin engine, the health
// endpoint and the websocket event feed.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/marcelveldt/music-assistant/internal/events"
)

// Server wraps the gin engine and its http listener.
type Server struct {
	logger hclog.Logger
	bus    *events.Bus
	engine *gin.Engine
	http   *http.Server
}

// New builds the engine with the core routes. Module routes are added
// afterwards through Engine().
func New(logger hclog.Logger, bus *events.Bus) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		logger: logger.Named("server"),
		bus:    bus,
		engine: engine,
	}
	engine.GET("/health", s.handleHealth)
	engine.GET("/api/events/recent", s.handleRecentEvents)
	engine.GET("/ws", s.handleWebSocket)
	return s
}

// Engine exposes the router for module route registration.
func (s *Server) Engine() *gin.Engine { return s.engine }

// Start begins serving on addr. It returns once the listener is up; the
// returned channel yields the terminal serve error.
func (s *Server) Start(addr string) <-chan error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		err := s.http.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info("http server listening", "addr", addr)
	return errCh
}

// Shutdown stops the listener, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) handleRecentEvents(c *gin.Context) {
	c.JSON(http.StatusOK, s.bus.RecentEvents())
}
