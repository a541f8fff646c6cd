package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"hubgraph/state"
	"hubgraph/types"
	"hubgraph/workflow"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ArchiveReader loads the final status of jobs that left the registry
type ArchiveReader interface {
	Load(ctx context.Context, jobID string) (types.JobStatus, error)
}

// Options configures the HTTP server
type Options struct {
	Port string
	// Archive is consulted for jobs no longer in the registry; optional
	Archive ArchiveReader
	Logger  *zap.Logger
}

// Server is the hubgraph HTTP server
type Server struct {
	stateManager   *state.Manager
	workflowRunner *workflow.Runner
	archive        ArchiveReader
	logger         *zap.Logger

	httpServer *http.Server
	cron       *cron.Cron
	cronID     cron.EntryID
	mu         sync.Mutex
}

// NewServer creates a new server with all routes registered
func NewServer(stateManager *state.Manager, workflowRunner *workflow.Runner, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		stateManager:   stateManager,
		workflowRunner: workflowRunner,
		archive:        opts.Archive,
		logger:         logger,
		cron:           cron.New(),
	}

	s.httpServer = &http.Server{
		Addr:              ":" + opts.Port,
		Handler:           s.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// NewRouter constructs a Gin engine with registered routes.
func (s *Server) NewRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger), cors())

	r.GET("/health", handleHealth)
	s.RegisterSessionRoutes(r)
	s.RegisterJobRoutes(r)
	s.RegisterNodeRoutes(r)
	return r
}

// Handler returns the server's HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe serves HTTP until Shutdown is called
func (s *Server) ListenAndServe() error {
	s.logger.Info("starting http server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// StartCron schedules the sweep that removes finished jobs older than retention
func (s *Server) StartCron(schedule string, retention time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(schedule, func() {
		if n := s.stateManager.Purge(retention); n > 0 {
			s.logger.Info("purged finished jobs", zap.Int("removed", n), zap.Duration("retention", retention))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cronID = id
	s.cron.Start()
	s.logger.Info("cron job started", zap.String("schedule", schedule))
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")

	// Stop cron and wait for a running sweep
	<-s.cron.Stop().Done()

	return s.httpServer.Shutdown(ctx)
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requestLogger logs every request once it has been handled
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

// cors opens the API to the browser dashboard
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
