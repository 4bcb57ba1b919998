// Package config loads the pipeline's YAML configuration, expanding
// ${VAR} references against the process environment (populated from a
// .env file in development), matching the original system's config.py
// loader in idiom.
package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/y437li/infounit/pkg/core/agent"
)

// AIConfig selects and configures the LLM providers available to the
// pipeline's agent.Manager.
type AIConfig struct {
	ActiveProvider string            `yaml:"active_provider"`
	Roles          map[string]string `yaml:"roles"`
	DeepSeekAPIKey string            `yaml:"deepseek_api_key"`
	GeminiAPIKey   string            `yaml:"gemini_api_key"`
}

// StorageConfig points at the Postgres unit/entity store and the local
// SQLite vector index file.
type StorageConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	VectorDBPath  string `yaml:"vector_db_path"`
}

// ScheduleConfig holds the pipeline's run settings. DefaultMode
// (QUICK/STANDARD/DEEP) and GlobalConcurrency are read by cmd/pipeline;
// CycleIntervalMinutes is loaded and defaulted but nothing reads it, as each
// invocation runs its verb once.
type ScheduleConfig struct {
	CycleIntervalMinutes int    `yaml:"cycle_interval_minutes"`
	DefaultMode          string `yaml:"default_mode"`
	GlobalConcurrency    int    `yaml:"global_concurrency"`
}

// FilterConfig holds settings for the Curator's preprocessing stage. They
// are loaded and defaulted here, but agent.Curator does not read them: its
// source denylist and its 0.5 importance/depth thresholds are fixed in
// curator.go.
type FilterConfig struct {
	SourceDenylist []string `yaml:"source_denylist"`
	MinImportance  float64  `yaml:"min_importance"`
	MinDepth       float64  `yaml:"min_depth"`
}

// FeedSource is one RSS/Atom feed the ingest Fetcher pulls from.
type FeedSource struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
}

// AppConfig is the top-level configuration object loaded from YAML.
type AppConfig struct {
	AI       AIConfig       `yaml:"ai"`
	Storage  StorageConfig  `yaml:"storage"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Filter   FilterConfig   `yaml:"filter"`
	Feeds    []FeedSource   `yaml:"feeds"`
}

// AgentManagerConfig adapts AI into the shape agent.NewManager expects.
func (c AppConfig) AgentManagerConfig() agent.Config {
	return agent.Config{
		ActiveProvider: c.AI.ActiveProvider,
		Roles:          c.AI.Roles,
	}
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads .env (if present, errors are non-fatal) then parses yamlPath
// as YAML, expanding ${VAR} references against the environment before
// unmarshaling.
func Load(yamlPath string) (*AppConfig, error) {
	_ = godotenv.Load()

	raw, err := os.ReadFile(yamlPath)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", yamlPath, err)
	}

	expanded := expandEnv(string(raw))

	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", yamlPath, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return match
	})
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Schedule.CycleIntervalMinutes == 0 {
		cfg.Schedule.CycleIntervalMinutes = 30
	}
	if cfg.Schedule.DefaultMode == "" {
		cfg.Schedule.DefaultMode = "deep"
	}
	if cfg.Schedule.GlobalConcurrency == 0 {
		cfg.Schedule.GlobalConcurrency = 5
	}
	if cfg.Filter.MinImportance == 0 {
		cfg.Filter.MinImportance = 0.5
	}
	if cfg.Filter.MinDepth == 0 {
		cfg.Filter.MinDepth = 0.5
	}
	if cfg.Storage.VectorDBPath == "" {
		cfg.Storage.VectorDBPath = "infounit_vectors.db"
	}
}
