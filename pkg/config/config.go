package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ErrDatabaseRequired is returned by RequireDatabase when DATABASE_URL is unset
var ErrDatabaseRequired = errors.New("DATABASE_URL is required")

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Data
	DataDir string // signals_history_*.json, price cache 위치

	// Database (optional: only persistence/fetcher commands need it)
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External APIs
	FMP FMPConfig

	// Simulation
	Simulation SimulationConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// FMPConfig holds Financial Modeling Prep API configuration
type FMPConfig struct {
	APIKey            string
	BaseURL           string
	RequestsPerMinute int
	CacheTTL          time.Duration
}

// SimulationConfig holds process-wide defaults for backtest and Monte Carlo runs.
// Per-run parameters still come from CLI flags or strategy presets.
type SimulationConfig struct {
	Workers         int    // Monte Carlo 동시 실행 수
	RefreshSchedule string // cron spec for the weekly portfolio refresh
	DefaultDataset  string
	StrategyDir     string // YAML 전략 프리셋 디렉터리
	OutputDir       string // 포트폴리오 export JSON 출력 위치
	RetentionDays   int    // audit.simulation_runs 보관 일수
	StrictQuality   bool   // 품질 게이트 실패 시 실행 중단
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port:    getEnv("PORT", "8089"),
		Env:     getEnv("ENV", "development"),
		DataDir: getEnv("DATA_DIR", "data"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		FMP: FMPConfig{
			APIKey:            getEnv("FMP_API_KEY", ""),
			BaseURL:           getEnv("FMP_BASE_URL", "https://financialmodelingprep.com/api/v3"),
			RequestsPerMinute: getEnvAsInt("FMP_REQUESTS_PER_MINUTE", 300),
			CacheTTL:          getEnvAsDuration("FMP_CACHE_TTL", "24h"),
		},

		Simulation: SimulationConfig{
			Workers:         getEnvAsInt("MC_WORKERS", runtime.NumCPU()),
			RefreshSchedule: getEnv("SCHEDULE_REFRESH", "0 30 18 * * FRI"),
			DefaultDataset:  getEnv("DEFAULT_DATASET", "1b"),
			StrategyDir:     getEnv("STRATEGY_DIR", "config/strategy"),
			OutputDir:       getEnv("OUTPUT_DIR", "data/portfolio"),
			RetentionDays:   getEnvAsInt("RUN_RETENTION_DAYS", 180),
			StrictQuality:   getEnvAsBool("STRICT_QUALITY", false),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// RequireDatabase fails when no database is configured.
// DB를 쓰는 커맨드(fetcher, --save, scheduler)만 호출
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return ErrDatabaseRequired
	}
	return nil
}

// validate checks if configuration values are consistent
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Simulation.Workers <= 0 {
		return fmt.Errorf("MC_WORKERS must be > 0, got %d", c.Simulation.Workers)
	}

	if c.Simulation.RetentionDays <= 0 {
		return fmt.Errorf("RUN_RETENTION_DAYS must be > 0, got %d", c.Simulation.RetentionDays)
	}

	if c.FMP.RequestsPerMinute <= 0 {
		return fmt.Errorf("FMP_REQUESTS_PER_MINUTE must be > 0, got %d", c.FMP.RequestsPerMinute)
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
