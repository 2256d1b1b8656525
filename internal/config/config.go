package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models pulseboard.yml.
type Config struct {
	Analytics AnalyticsConfig `yaml:"analytics"`
	Reports   ReportsConfig   `yaml:"reports"`
}

// AnalyticsConfig tunes the forecasting and recommendation heuristics.
// Defaults reproduce the shipped behavior; override per workspace.
type AnalyticsConfig struct {
	// DefaultTaskDurationDays is assumed when no completed task carries
	// both a start and a completion date.
	DefaultTaskDurationDays float64 `yaml:"default_task_duration_days"`
	// IdleVelocity is the tasks/day figure substituted when the project
	// has no elapsed calendar days yet.
	IdleVelocity float64 `yaml:"idle_velocity"`
	// MinVelocity floors the velocity used for forecasting.
	MinVelocity float64 `yaml:"min_velocity"`
	// MaxActiveTasksPerMember trips the workload risk signal.
	MaxActiveTasksPerMember float64 `yaml:"max_active_tasks_per_member"`
	// OverloadRatio and UnderloadRatio bound per-member task counts
	// relative to the team average.
	OverloadRatio  float64 `yaml:"overload_ratio"`
	UnderloadRatio float64 `yaml:"underload_ratio"`
}

type ReportsConfig struct {
	DefaultFormat string `yaml:"default_format"`
	ExportDir     string `yaml:"export_dir"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	a := c.Analytics
	if a.DefaultTaskDurationDays <= 0 {
		return fmt.Errorf("config.analytics.default_task_duration_days must be positive")
	}
	if a.IdleVelocity <= 0 {
		return fmt.Errorf("config.analytics.idle_velocity must be positive")
	}
	if a.MinVelocity <= 0 {
		return fmt.Errorf("config.analytics.min_velocity must be positive")
	}
	if a.MaxActiveTasksPerMember <= 0 {
		return fmt.Errorf("config.analytics.max_active_tasks_per_member must be positive")
	}
	if a.OverloadRatio <= 1 {
		return fmt.Errorf("config.analytics.overload_ratio must be greater than 1")
	}
	if a.UnderloadRatio <= 0 || a.UnderloadRatio >= 1 {
		return fmt.Errorf("config.analytics.underload_ratio must be between 0 and 1")
	}
	switch c.Reports.DefaultFormat {
	case "json", "csv":
	default:
		return fmt.Errorf("config.reports.default_format must be json or csv")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "pulseboard.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `analytics:
  default_task_duration_days: 3
  idle_velocity: 0.5
  min_velocity: 0.1
  max_active_tasks_per_member: 5
  overload_ratio: 1.5
  underload_ratio: 0.5

reports:
  default_format: json
  export_dir: reports
`
