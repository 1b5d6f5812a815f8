// Package httpapi exposes a small read-only HTTP surface over the workflow:
// a health check and the current status with recent transition history.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jkralik/invoiceflow/internal/domain/model"
	"github.com/jkralik/invoiceflow/internal/history"
)

// StatusProvider yields a consistent copy of the workflow aggregate
type StatusProvider interface {
	Snapshot() model.WorkflowData
}

// HistoryReader reads recent transitions from the audit log
type HistoryReader interface {
	Recent(n int) ([]history.Entry, error)
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the HTTP status API
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	status     StatusProvider
	history    HistoryReader
	logger     *zap.Logger
}

// NewServer creates the status API server
func NewServer(config ServerConfig, status StatusProvider, hist HistoryReader, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:  config,
		router:  gin.New(),
		status:  status,
		history: hist,
		logger:  logger,
	}

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.setupRoutes()

	return s
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	api := s.router.Group("/api/v1")
	{
		api.GET("/status", s.getStatus)
		api.GET("/history", s.getHistory)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.status.Snapshot())
}

func (s *Server) getHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusOK, []history.Entry{})
		return
	}

	entries, err := s.history.Recent(20)
	if err != nil {
		s.logger.Error("Failed to read transition history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read history"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Start runs the server until the context is cancelled, then shuts down
// gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}
