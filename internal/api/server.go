package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/profitmonk/high-intent-signals/pkg/config"
	"github.com/profitmonk/high-intent-signals/pkg/logger"
)

// Canceler stops in-flight background runs (handlers.JobStore)
type Canceler interface {
	CancelAll()
}

// Server represents the HTTP API server
// ⭐ SSOT: API 서버 설정은 이 파일에서만
type Server struct {
	httpServer *http.Server
	jobs       Canceler // optional
	logger     *logger.Logger
	config     *config.Config
}

// New creates a new API server. jobs may be nil.
func New(cfg *config.Config, log *logger.Logger, router http.Handler, jobs Canceler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:        ":" + cfg.Port,
			Handler:     router,
			ReadTimeout: 15 * time.Second,
			// 동기 백테스트는 전체 데이터셋에서 수십 초 걸릴 수 있음
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		jobs:   jobs,
		logger: log,
		config: cfg,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.WithFields(map[string]interface{}{
		"port": s.config.Port,
		"env":  s.config.Env,
	}).Info("Starting API server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown cancels background runs and gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")

	if s.jobs != nil {
		s.jobs.CancelAll()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
