package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/profitmonk/high-intent-signals/internal/api"
	"github.com/profitmonk/high-intent-signals/internal/api/handlers"
	"github.com/profitmonk/high-intent-signals/internal/api/stream"
	"github.com/profitmonk/high-intent-signals/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- 전략 프리셋 / 데이터셋 조회
- 백테스트 동기 실행, Monte Carlo 비동기 실행 (WebSocket 진행률)
- 저장된 run 조회 (DATABASE_URL 필요)
- 가격 수집 트리거 (FMP_API_KEY 필요)

Endpoints:
  GET    /health                    - Health check
  GET    /metrics                   - Prometheus (METRICS_ENABLED=true)
  GET    /api/datasets              - 데이터셋 목록
  GET    /api/strategies            - 전략 프리셋 목록
  GET    /api/strategies/{id}       - 프리셋 상세
  POST   /api/backtest              - 백테스트 실행
  POST   /api/montecarlo            - Monte Carlo 시작 (202)
  GET    /api/runs                  - 저장된 run 목록
  GET    /api/runs/{id}             - run 결과
  GET    /api/runs/{id}/status      - 진행 상태
  GET    /api/runs/{id}/stream      - WebSocket 진행률
  DELETE /api/runs/{id}             - 취소
  GET    /api/data/quality          - 가격 커버리지
  POST   /api/data/collect          - 가격 수집

Example:
  go run ./cmd/hisig api
  go run ./cmd/hisig api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default: PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== hisig API Server ===")

	// 1. Wire dependencies
	d, err := newDeps(cmd.Context(), depsOptions{useDB: true})
	if err != nil {
		return err
	}
	defer d.Close()

	cfg := d.cfg
	if apiPort != "" {
		cfg.Port = apiPort
	}
	log := d.log

	log.WithFields(map[string]interface{}{
		"port":      cfg.Port,
		"env":       cfg.Env,
		"database":  d.db != nil,
		"collector": d.collector != nil,
	}).Info("Initializing API server")

	// 2. Strategy presets
	presets, err := d.presets()
	if err != nil {
		return err
	}

	// 3. Job store + progress hub
	jobs := handlers.NewJobStore(redis.NewCache(d.redis, "runs"), log)
	hub := stream.NewHub(log, d.metrics)

	// 4. Handlers
	var col handlers.PriceCollector
	if d.collector != nil {
		col = d.collector
	}
	var db api.Pinger
	if d.db != nil {
		db = d.db
	}
	router := api.NewRouter(api.Handlers{
		Simulation: handlers.NewSimulationHandler(d.orchestrator, presets, jobs, hub, cfg.Simulation.Workers, log),
		Catalog:    handlers.NewCatalogHandler(presets),
		Data:       handlers.NewDataHandler(d.orchestrator, col, log),
		Metrics:    d.metrics,
		DB:         db,
	}, log)

	// 5. Create server
	server := api.New(cfg, log, router, jobs)

	// 6. Start server with graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.WithField("strategies", len(presets)).Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
