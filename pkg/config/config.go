// pkg/config/config.go
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

// Source kinds
const (
	SourceFile      = "file"
	SourceSnowflake = "snowflake"
)

// Config represents the application configuration
type Config struct {
	// Input
	SourceKind string
	InputPath  string
	SheetName  string

	// Outputs
	GoldenOutput     string
	QuarantineOutput string
	ReportOutput     string // JSON run report; empty disables
	MetricsOutput    string // Prometheus textfile; empty disables

	// Business rules file; empty means built-in defaults
	RulesFile string

	// Database connections, nil when not configured
	Snowflake *SnowflakeConfig
	Postgres  *PostgresConfig

	// Cleaning settings
	WorkerPoolSize int
	BatchSize      int

	// Logging
	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	return LoadConfigForSource("")
}

// LoadConfigForSource loads configuration with the source kind fixed by the
// caller. An empty kind falls back to SOURCE_KIND.
func LoadConfigForSource(sourceKind string) (*Config, error) {
	if sourceKind == "" {
		sourceKind = getEnv("SOURCE_KIND", SourceFile)
	}

	cfg := &Config{
		// Default values
		SourceKind:       strings.ToLower(sourceKind),
		InputPath:        getEnv("INPUT_PATH", "signups.xlsx"),
		SheetName:        getEnv("INPUT_SHEET", ""),
		GoldenOutput:     getEnv("GOLDEN_OUTPUT", "members_final.csv"),
		QuarantineOutput: getEnv("QUARANTINE_OUTPUT", "quarantine.csv"),
		ReportOutput:     getEnv("REPORT_OUTPUT", ""),
		MetricsOutput:    getEnv("METRICS_OUTPUT", ""),
		RulesFile:        getEnv("RULES_FILE", ""),
		WorkerPoolSize:   getEnvAsInt("WORKER_POOL_SIZE", 1),
		BatchSize:        getEnvAsInt("BATCH_SIZE", 1000),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
	}

	// Snowflake is only required when it is the source
	if cfg.SourceKind == SourceSnowflake {
		snowConfig, err := LoadSnowflakeConfig()
		if err != nil {
			return nil, errors.New("failed to load Snowflake configuration: " + err.Error())
		}
		cfg.Snowflake = snowConfig
	}

	// The Postgres sink is enabled by naming a database
	if os.Getenv("POSTGRES_DB") != "" {
		pgConfig, err := LoadPostgresConfig()
		if err != nil {
			return nil, errors.New("failed to load PostgreSQL configuration: " + err.Error())
		}
		cfg.Postgres = pgConfig
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	switch c.SourceKind {
	case SourceFile:
		if c.InputPath == "" {
			return errors.New("input path is required for file sources")
		}
	case SourceSnowflake:
		if c.Snowflake == nil {
			return errors.New("snowflake configuration is required for snowflake sources")
		}
	default:
		return errors.New("unknown source kind: " + c.SourceKind)
	}

	if c.GoldenOutput == "" || c.QuarantineOutput == "" {
		return errors.New("golden and quarantine output paths are required")
	}

	if c.WorkerPoolSize < 0 {
		return errors.New("worker pool size cannot be negative")
	}

	if c.BatchSize <= 0 {
		return errors.New("batch size must be positive")
	}

	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
