// Package config loads application configuration from environment
// variables, with a .env file honoured in development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the complete application configuration
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	AI       AIConfig
	Server   ServerConfig
	Storage  StorageConfig
	Pipeline PipelineConfig
	Catalog  CatalogConfig
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	QueryTimeout time.Duration
}

// RedisConfig holds cache connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AIConfig selects and configures the LLM vendor
type AIConfig struct {
	Vendor         string // openai, anthropic, stub
	OpenAIKey      string
	OpenAIModel    string
	AnthropicKey   string
	AnthropicModel string
	MaxTokens      int
	Temperature    float64
	Timeout        time.Duration
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// StorageConfig holds object-store settings
type StorageConfig struct {
	Bucket  string
	Timeout time.Duration
}

// PipelineConfig holds worker and scoring tunables
type PipelineConfig struct {
	PollInterval             time.Duration
	BatchSize                int
	DebounceWindow           time.Duration
	HorizonDays              int
	InsightsCacheTTLDays     int
	ReadinessCalibrationDays int
	SleepMinTotalMinutes     int
	DedupEpsilonFraction     float64
	BaselineRefreshLocalHour int
	CalciumBands             CalciumBands
}

// CalciumBands are the coronary-calcium score cutoffs, configurable rather
// than hardcoded so clinical guidance updates do not need a release.
type CalciumBands struct {
	Minimal  float64
	Mild     float64
	Moderate float64
	Severe   float64
}

// Classify maps an Agatston score onto a severity label
func (b CalciumBands) Classify(score float64) string {
	switch {
	case score <= 0:
		return "zero"
	case score < b.Minimal:
		return "minimal"
	case score < b.Mild:
		return "mild"
	case score < b.Moderate:
		return "moderate"
	default:
		return "severe"
	}
}

// CatalogConfig locates the biomarker reference catalog
type CatalogConfig struct {
	Dir       string
	HotReload bool
}

// Load reads configuration from the environment. A .env file is loaded
// first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DB_MAX_IDLE_CONNS", 5),
			QueryTimeout: envDuration("DB_QUERY_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			Addr:     envString("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envInt("REDIS_DB", 0),
		},
		AI: AIConfig{
			Vendor:         envString("AI_VENDOR", "openai"),
			OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
			OpenAIModel:    envString("OPENAI_MODEL", "gpt-4o"),
			AnthropicKey:   os.Getenv("ANTHROPIC_API_KEY"),
			AnthropicModel: envString("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
			MaxTokens:      envInt("AI_MAX_TOKENS", 2000),
			Temperature:    envFloat("AI_TEMPERATURE", 0.2),
			Timeout:        envDuration("AI_TIMEOUT", 30*time.Second),
		},
		Server: ServerConfig{
			Port:         envString("PORT", "8080"),
			ReadTimeout:  envDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: envDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Storage: StorageConfig{
			Bucket:  envString("STORAGE_BUCKET", "flomentum-labs"),
			Timeout: envDuration("STORAGE_TIMEOUT", 30*time.Second),
		},
		Pipeline: PipelineConfig{
			PollInterval:             time.Duration(envInt("POLL_INTERVAL_MS", 10000)) * time.Millisecond,
			BatchSize:                envInt("BATCH_SIZE", 50),
			DebounceWindow:           time.Duration(envInt("DEBOUNCE_WINDOW_SECONDS", 120)) * time.Second,
			HorizonDays:              envInt("HORIZON_DAYS", 42),
			InsightsCacheTTLDays:     envInt("INSIGHTS_CACHE_TTL_DAYS", 30),
			ReadinessCalibrationDays: envInt("READINESS_CALIBRATION_DAYS", 14),
			SleepMinTotalMinutes:     envInt("SLEEP_MIN_TOTAL_MINUTES", 180),
			DedupEpsilonFraction:     envFloat("DEDUP_EPSILON_FRACTION", 0.005),
			BaselineRefreshLocalHour: envInt("BASELINE_REFRESH_LOCAL_HOUR", 3),
			CalciumBands: CalciumBands{
				Minimal:  envFloat("CALCIUM_BAND_MINIMAL", 10),
				Mild:     envFloat("CALCIUM_BAND_MILD", 100),
				Moderate: envFloat("CALCIUM_BAND_MODERATE", 400),
				Severe:   envFloat("CALCIUM_BAND_SEVERE", 1000),
			},
		},
		Catalog: CatalogConfig{
			Dir:       envString("CATALOG_DIR", "./catalog"),
			HotReload: envBool("CATALOG_HOT_RELOAD", true),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	switch c.AI.Vendor {
	case "openai":
		if c.AI.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when AI_VENDOR=openai")
		}
	case "anthropic":
		if c.AI.AnthropicKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_VENDOR=anthropic")
		}
	case "stub":
		// deterministic stub needs no credentials
	default:
		return fmt.Errorf("unknown AI_VENDOR %q", c.AI.Vendor)
	}
	if c.Pipeline.BatchSize <= 0 || c.Pipeline.BatchSize > 50 {
		return fmt.Errorf("BATCH_SIZE must be in (0, 50]")
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
