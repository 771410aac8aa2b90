package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"comfynodes/logger"
	"comfynodes/lora"
	"comfynodes/nodes"
	"comfynodes/settings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// Server holds the state for the REST API server.
type Server struct {
	config    *settings.Config
	extractor *lora.Extractor
	loader    *nodes.TriggerWordsLoader
	router    *gin.Engine

	httpServer *http.Server
}

// NewServer creates a new Server instance.
func NewServer(config *settings.Config, extractor *lora.Extractor) *Server {
	if config.Server.Mode != "" {
		gin.SetMode(config.Server.Mode)
	}
	if extractor == nil {
		extractor = &lora.Extractor{}
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	s := &Server{
		config:    config,
		extractor: extractor,
		loader:    &nodes.TriggerWordsLoader{Dir: config.Loras.Path, Extractor: extractor},
		router:    r,
		httpServer: &http.Server{
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until Shutdown is called, then returns http.ErrServerClosed.
func (s *Server) Run(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/v1")
	v1.GET("/loras", s.handleLoras)
	v1.GET("/loras/:name/triggers", s.handleTriggers)
	v1.GET("/loras/:name/metadata", s.handleMetadata)
	v1.POST("/interpolate", s.handleInterpolate)
	v1.POST("/attributes", s.handleAttributes)
	v1.POST("/combine", s.handleCombine)
}

// Health check
func (s *Server) healthCheck(c *gin.Context) {
	c.Status(http.StatusOK)
}

// requestLogger tags every request with an id and logs it once it completes.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Header(RequestIDHeader, id)

		start := time.Now()
		c.Next()

		logger.Request(id, c.Request.Method, c.FullPath()).Info("Handled request",
			"status", c.Writer.Status(), "duration", time.Since(start))
	}
}
