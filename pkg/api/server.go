// Package api exposes the HTTP surface of the dispatcher: the chat
// endpoint, session and stats introspection, and health.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wardrobe-labs/concierge/pkg/database"
	"github.com/wardrobe-labs/concierge/pkg/dispatch"
)

// Server wires the dispatcher behind a gin router.
type Server struct {
	dispatcher *dispatch.Dispatcher
	dbClient   *database.Client // nil when persistence is disabled
	logger     *slog.Logger

	engine *gin.Engine
	http   *http.Server
}

// NewServer creates the HTTP server. dbClient may be nil.
func NewServer(dispatcher *dispatch.Dispatcher, dbClient *database.Client, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), securityHeaders(), requestLogger(logger))

	s := &Server{
		dispatcher: dispatcher,
		dbClient:   dbClient,
		logger:     logger.With("component", "api"),
		engine:     engine,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.healthHandler)

	api := s.engine.Group("/api")
	api.POST("/chat", s.chatHandler)
	api.GET("/stats", s.statsHandler)
	api.GET("/sessions/:user_id/:conversation_id", s.sessionHandler)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start begins serving on addr and blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
