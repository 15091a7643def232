package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/profitmonk/high-intent-signals/internal/scheduler"
	"github.com/profitmonk/high-intent-signals/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행 (완료까지 대기)
  status  - 작업 스케줄 / 다음 실행 시각

Example:
  go run ./cmd/hisig scheduler start
  go run ./cmd/hisig scheduler list
  go run ./cmd/hisig scheduler run portfolio_refresh`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- portfolio_refresh: SCHEDULE_REFRESH (기본 금요일 18:30)
  가격 증분 수집 → 전략 프리셋별 백테스트 → OUTPUT_DIR/<id>.json + index.json
- run_retention: 일요일 03:00 (DATABASE_URL 이 있을 때만)
  RUN_RETENTION_DAYS 보다 오래된 run 삭제

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "작업 스케줄 조회",
		RunE:  showStatus,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== hisig Scheduler ===")

	// Initialize dependencies
	sched, d, err := initScheduler(cmd.Context())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.Close()

	// Start scheduler
	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	sched, d, err := initScheduler(cmd.Context())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.Close()

	fmt.Println("Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	fmt.Printf("Running job: %s\n", jobName)

	sched, d, err := initScheduler(cmd.Context())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.Close()

	result, err := sched.RunJobSync(jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("job %s failed after %v: %s", jobName, result.Duration, result.Error)
	}

	fmt.Printf("✅ Job completed in %v\n", result.Duration)
	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	sched, d, err := initScheduler(cmd.Context())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.Close()

	// 다음 실행 시각은 cron 이 시작된 뒤에만 계산됨
	sched.Start()
	stats := sched.GetJobStats()
	sched.Stop()

	fmt.Println("Job Schedules:")
	fmt.Println()

	for _, jobName := range sched.GetAllJobs() {
		stat := stats[jobName]
		fmt.Printf("📊 %s\n", jobName)
		fmt.Printf("   Schedule: %s\n", stat.Schedule)
		if stat.NextRun != nil {
			fmt.Printf("   Next Run: %s\n", stat.NextRun.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
	}

	return nil
}

// initScheduler wires the orchestrator and registers every job
func initScheduler(ctx context.Context) (*scheduler.Scheduler, *deps, error) {
	d, err := newDeps(ctx, depsOptions{useDB: true})
	if err != nil {
		return nil, nil, err
	}

	presets, err := d.presets()
	if err != nil {
		d.Close()
		return nil, nil, err
	}

	sched := scheduler.New(d.log, scheduler.WithMetrics(d.metrics))

	// 1. Portfolio refresh
	var col jobs.PriceCollector
	if d.collector != nil {
		col = d.collector
	}
	refresh := jobs.NewPortfolioRefreshJob(d.orchestrator, col, presets, jobs.RefreshConfig{
		Schedule:  d.cfg.Simulation.RefreshSchedule,
		OutputDir: d.cfg.Simulation.OutputDir,
		Save:      d.auditRepo != nil,
	}, d.log)
	if err := sched.AddJob(refresh); err != nil {
		d.Close()
		return nil, nil, err
	}

	// 2. Run retention (DB 필요)
	if d.auditRepo != nil {
		retention := jobs.NewRunRetentionJob(d.auditRepo, d.cfg.Simulation.RetentionDays, d.log)
		if err := sched.AddJob(retention); err != nil {
			d.Close()
			return nil, nil, err
		}
	}

	return sched, d, nil
}
