package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultConfigPath is the optional YAML file read by Load.
const DefaultConfigPath = "config.yaml"

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config holds all configuration for ekaya-datatools.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr        string        `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port            string        `yaml:"port" env:"PORT" env-default:"8080"`
	Env             string        `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"30s"`
	Version         string        `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL). Holds both the run store and the compared tables.
	Database DatabaseConfig `yaml:"database"`

	// Comparison engine settings
	DataTools DataToolsConfig `yaml:"datatools"`

	// Submission throttling
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"datatools"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"datatools"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// DataToolsConfig holds comparison and run registry settings.
type DataToolsConfig struct {
	// AllowedEnvironmentsStr is a comma-separated list of schemas that may be compared.
	AllowedEnvironmentsStr string `yaml:"allowed_environments" env:"ALLOWED_SCHEMAS" env-default:"dev,prod"`
	// AllowedEnvironments is parsed from AllowedEnvironmentsStr (not from config file).
	AllowedEnvironments []string `yaml:"-"`

	DefaultEnvironment string `yaml:"default_environment" env:"DEFAULT_ENV_SCHEMA" env-default:"dev"`
	PartitionColumn    string `yaml:"partition_column" env:"PARTITION_COLUMN" env-default:"pt"`

	// RunTimeout bounds a single run's execution.
	RunTimeout time.Duration `yaml:"run_timeout" env:"RUN_TIMEOUT" env-default:"30m"`
	// StaleGrace is added to RunTimeout before the sweep fails a started run.
	StaleGrace time.Duration `yaml:"stale_grace" env:"RUN_STALE_GRACE" env-default:"5m"`
	// MaxQueueWait is how long a run may wait for a worker before the sweep fails it.
	MaxQueueWait time.Duration `yaml:"max_queue_wait" env:"RUN_MAX_QUEUE_WAIT" env-default:"24h"`
	// StaleSweepSchedule is the cron schedule of the stale run sweep.
	StaleSweepSchedule string `yaml:"stale_sweep_schedule" env:"RUN_STALE_SWEEP_SCHEDULE" env-default:"@every 1m"`

	MaxConcurrentRuns int `yaml:"max_concurrent_runs" env:"MAX_CONCURRENT_RUNS" env-default:"4"`
	QueryConcurrency  int `yaml:"query_concurrency" env:"QUERY_CONCURRENCY" env-default:"4"`
	DiffSampleCap     int `yaml:"diff_sample_cap" env:"DIFF_SAMPLE_CAP" env-default:"20"`

	// RequirePartitionForSuggest skips key suggestion unless both sides carry a partition token.
	RequirePartitionForSuggest bool `yaml:"require_partition_for_suggest" env:"REQUIRE_PARTITION_FOR_SUGGEST" env-default:"true"`
}

// RateLimitConfig controls the token bucket in front of run submission.
type RateLimitConfig struct {
	SubmitsPerSecond float64 `yaml:"submits_per_second" env:"RATE_LIMIT_SUBMITS_PER_SECOND" env-default:"2"`
	Burst            int     `yaml:"burst" env:"RATE_LIMIT_BURST" env-default:"10"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// When config.yaml does not exist, configuration comes from the environment only.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFrom(DefaultConfigPath, version)
}

// LoadFrom is Load with an explicit YAML path.
func LoadFrom(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	cfg.parseComplexFields()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.Database.Host = resolveHostForDocker(cfg.Database.Host)

	return cfg, nil
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() {
	c.DataTools.AllowedEnvironments = parseList(c.DataTools.AllowedEnvironmentsStr)
}

func (c *Config) validate() error {
	dt := c.DataTools
	if len(dt.AllowedEnvironments) == 0 {
		return fmt.Errorf("allowed_environments must list at least one schema")
	}
	for _, env := range dt.AllowedEnvironments {
		if !identifierPattern.MatchString(env) {
			return fmt.Errorf("allowed environment %q is not a valid identifier", env)
		}
	}
	if !dt.IsAllowedEnvironment(dt.DefaultEnvironment) {
		return fmt.Errorf("default_environment %q is not in allowed_environments", dt.DefaultEnvironment)
	}
	if !identifierPattern.MatchString(dt.PartitionColumn) {
		return fmt.Errorf("partition_column %q is not a valid identifier", dt.PartitionColumn)
	}
	if dt.RunTimeout <= 0 {
		return fmt.Errorf("run_timeout must be positive")
	}
	if dt.MaxQueueWait < dt.StaleAfter() {
		return fmt.Errorf("max_queue_wait must be at least run_timeout plus stale_grace")
	}
	if dt.MaxConcurrentRuns < 1 {
		return fmt.Errorf("max_concurrent_runs must be at least 1")
	}
	if dt.QueryConcurrency < 1 {
		return fmt.Errorf("query_concurrency must be at least 1")
	}
	if dt.DiffSampleCap < 1 {
		return fmt.Errorf("diff_sample_cap must be at least 1")
	}
	return nil
}

// IsAllowedEnvironment reports whether env is one of the configured schemas.
func (c DataToolsConfig) IsAllowedEnvironment(env string) bool {
	return slices.Contains(c.AllowedEnvironments, env)
}

// StaleAfter is how long a started run may stay pending before the sweep fails it.
func (c DataToolsConfig) StaleAfter() time.Duration {
	return c.RunTimeout + c.StaleGrace
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// parseList splits a comma-separated value, dropping blanks and duplicates.
func parseList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" || slices.Contains(out, part) {
			continue
		}
		out = append(out, part)
	}
	return out
}

var (
	inDockerOnce sync.Once
	inDocker     bool
)

// resolveHostForDocker maps a loopback database host to host.docker.internal
// when running inside a container, so a host-local Postgres stays reachable.
func resolveHostForDocker(host string) string {
	inDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		inDocker = err == nil
	})
	if inDocker && (host == "localhost" || host == "127.0.0.1") {
		return "host.docker.internal"
	}
	return host
}
