// Package config loads and validates retrolearn configuration from a YAML
// file and RETROLEARN_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database      DatabaseConfig      `yaml:"database"`
	Scoring       ScoringConfig       `yaml:"scoring"`
	Adjust        AdjustConfig        `yaml:"adjust"`
	Maintenance   MaintenanceConfig   `yaml:"maintenance"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ScoringConfig tunes the learning scorer.
type ScoringConfig struct {
	RelevanceFloor float64       `yaml:"relevance_floor"`
	CandidateLimit int           `yaml:"candidate_limit"`
	DefaultLimit   int           `yaml:"default_limit"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
}

// AdjustConfig holds the adjustment safety bounds.
type AdjustConfig struct {
	MaxStepsPerRequest    int `yaml:"max_steps_per_request"`
	MaxAdjustmentsPerUnit int `yaml:"max_adjustments_per_unit"`
	MaxDepth              int `yaml:"max_depth"`
}

// MaintenanceConfig holds the periodic maintenance thresholds.
type MaintenanceConfig struct {
	Interval              time.Duration `yaml:"interval"`
	DeactivateConfidence  float64       `yaml:"deactivate_confidence"`
	DeactivateSuccessRate float64       `yaml:"deactivate_success_rate"`
	MinApplications       int           `yaml:"min_applications"`
	SupersedeMargin       float64       `yaml:"supersede_margin"`
	Retention             time.Duration `yaml:"retention"`
	LeaseTTL              time.Duration `yaml:"lease_ttl"`
}

type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"` // "text" | "json"
	MetricsAddr string `yaml:"metrics_addr"`
}

// Load reads and parses a YAML config file. A missing file is not an error
// when path is empty; defaults and environment overrides still apply.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Defaults()
		applyEnvOverrides(cfg)
		if err := Validate(cfg); err != nil {
			return nil, fmt.Errorf("validate config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses raw YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks a Config for logical errors.
func Validate(cfg *Config) error {
	if cfg.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if cfg.Scoring.RelevanceFloor < 0 || cfg.Scoring.RelevanceFloor > 1 {
		return fmt.Errorf("scoring.relevance_floor must be within [0,1], got %v", cfg.Scoring.RelevanceFloor)
	}
	if cfg.Scoring.CandidateLimit < 1 {
		return fmt.Errorf("scoring.candidate_limit must be >= 1, got %d", cfg.Scoring.CandidateLimit)
	}
	if cfg.Scoring.DefaultLimit < 1 || cfg.Scoring.DefaultLimit > cfg.Scoring.CandidateLimit {
		return fmt.Errorf("scoring.default_limit must be 1-%d, got %d", cfg.Scoring.CandidateLimit, cfg.Scoring.DefaultLimit)
	}
	if cfg.Scoring.FetchTimeout <= 0 {
		return fmt.Errorf("scoring.fetch_timeout must be > 0, got %s", cfg.Scoring.FetchTimeout)
	}
	if cfg.Scoring.CacheTTL < 0 {
		return fmt.Errorf("scoring.cache_ttl must be >= 0, got %s", cfg.Scoring.CacheTTL)
	}
	if cfg.Adjust.MaxStepsPerRequest < 1 {
		return fmt.Errorf("adjust.max_steps_per_request must be >= 1, got %d", cfg.Adjust.MaxStepsPerRequest)
	}
	if cfg.Adjust.MaxAdjustmentsPerUnit < 1 {
		return fmt.Errorf("adjust.max_adjustments_per_unit must be >= 1, got %d", cfg.Adjust.MaxAdjustmentsPerUnit)
	}
	if cfg.Adjust.MaxDepth < 1 {
		return fmt.Errorf("adjust.max_depth must be >= 1, got %d", cfg.Adjust.MaxDepth)
	}
	if cfg.Maintenance.Interval < time.Minute {
		return fmt.Errorf("maintenance.interval must be >= 1m, got %s", cfg.Maintenance.Interval)
	}
	if cfg.Maintenance.DeactivateConfidence < 0 || cfg.Maintenance.DeactivateConfidence > 1 {
		return fmt.Errorf("maintenance.deactivate_confidence must be within [0,1], got %v", cfg.Maintenance.DeactivateConfidence)
	}
	if cfg.Maintenance.DeactivateSuccessRate < 0 || cfg.Maintenance.DeactivateSuccessRate > 1 {
		return fmt.Errorf("maintenance.deactivate_success_rate must be within [0,1], got %v", cfg.Maintenance.DeactivateSuccessRate)
	}
	if cfg.Maintenance.MinApplications < 1 {
		return fmt.Errorf("maintenance.min_applications must be >= 1, got %d", cfg.Maintenance.MinApplications)
	}
	if cfg.Maintenance.SupersedeMargin <= 0 || cfg.Maintenance.SupersedeMargin > 1 {
		return fmt.Errorf("maintenance.supersede_margin must be within (0,1], got %v", cfg.Maintenance.SupersedeMargin)
	}
	if cfg.Maintenance.Retention < 0 {
		return fmt.Errorf("maintenance.retention must be >= 0, got %s", cfg.Maintenance.Retention)
	}
	if cfg.Maintenance.LeaseTTL <= 0 {
		return fmt.Errorf("maintenance.lease_ttl must be > 0, got %s", cfg.Maintenance.LeaseTTL)
	}
	switch cfg.Observability.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("observability.log_format must be text or json, got %q", cfg.Observability.LogFormat)
	}
	return nil
}

// applyEnvOverrides lets RETROLEARN_* variables override file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RETROLEARN_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("RETROLEARN_RELEVANCE_FLOOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Scoring.RelevanceFloor = f
		}
	}
	if v := os.Getenv("RETROLEARN_MAINTENANCE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Maintenance.Interval = d
		}
	}
	if v := os.Getenv("RETROLEARN_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("RETROLEARN_LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = strings.ToLower(v)
	}
	if v := os.Getenv("RETROLEARN_METRICS_ADDR"); v != "" {
		cfg.Observability.MetricsAddr = v
	}
}
