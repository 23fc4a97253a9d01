package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the back office KPI engine.
// All environment variables are read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// KPI engine
	Engine EngineConfig

	// Logging
	LogLevel  string
	LogFormat string
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

// EngineConfig holds KPI engine configuration
type EngineConfig struct {
	// Segments is the list of active business-model segments KPIs are
	// computed for on every cycle.
	Segments []string

	// TargetStocks maps segment -> configured stock target used by the
	// stock index metric. Segments missing here use TargetStockDefault.
	TargetStocks       map[string]int
	TargetStockDefault int

	// CycleSchedule is the cron expression (with seconds) for the
	// recurring computation cycle.
	CycleSchedule string

	// Workers bounds per-metric fan-out within one cycle.
	Workers int

	// QueryTimeout applies to every business-data query.
	QueryTimeout time.Duration

	// QueriesPerSecond throttles reads against the shared back-office
	// database. Zero disables throttling.
	QueriesPerSecond float64

	// HistoryCacheTTL bounds staleness of cached history reads.
	HistoryCacheTTL time.Duration
}

// Load reads configuration from environment variables.
// This is the only function that calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// KPI engine
		Engine: EngineConfig{
			Segments:           getEnvAsList("SEGMENTS", "brokerage"),
			TargetStocks:       getEnvAsIntMap("TARGET_STOCKS"),
			TargetStockDefault: getEnvAsInt("TARGET_STOCK_DEFAULT", 50),
			CycleSchedule:      getEnv("KPI_CYCLE_SCHEDULE", "0 0 * * * *"), // hourly
			Workers:            getEnvAsInt("KPI_WORKERS", 4),
			QueryTimeout:       getEnvAsDuration("QUERY_TIMEOUT", "10s"),
			QueriesPerSecond:   getEnvAsFloat("QUERIES_PER_SECOND", 0),
			HistoryCacheTTL:    getEnvAsDuration("HISTORY_CACHE_TTL", "5m"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// TargetStock returns the configured stock target for a segment,
// falling back to the default when unset.
func (e EngineConfig) TargetStock(segment string) int {
	if target, ok := e.TargetStocks[segment]; ok {
		return target
	}
	return e.TargetStockDefault
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if len(c.Engine.Segments) == 0 {
		return fmt.Errorf("SEGMENTS must name at least one segment")
	}

	if c.Engine.Workers < 1 {
		return fmt.Errorf("KPI_WORKERS must be >= 1")
	}

	return nil
}

// Helper functions (private, only used within this file)

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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
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

// getEnvAsList parses a comma-separated list, trimming blanks.
func getEnvAsList(key, defaultValue string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

// getEnvAsIntMap parses "key:value,key:value" pairs. Malformed pairs
// are skipped rather than failing startup.
func getEnvAsIntMap(key string) map[string]int {
	values := make(map[string]int)

	valueStr := os.Getenv(key)
	if valueStr == "" {
		return values
	}

	for _, pair := range strings.Split(valueStr, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 {
			continue
		}

		value, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			continue
		}

		values[strings.TrimSpace(parts[0])] = value
	}

	return values
}
