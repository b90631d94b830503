// Package config loads service configuration from a YAML file with sane
// defaults, so the CLI runs without a config file at all.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the ingestion service needs at startup. Secrets
// (the Gemini API key, GCP credentials) come from the environment, never
// from this file.
type Config struct {
	// GCP project and BigQuery dataset for the persistence store. Empty
	// ProjectID selects the in-memory store (local/dev mode).
	ProjectID string `yaml:"project_id"`
	DatasetID string `yaml:"dataset_id"`

	// Bucket is the GCS bucket statement uploads land in.
	Bucket string `yaml:"bucket"`

	// Model is the Gemini model used by the categorization oracle.
	Model string `yaml:"model"`

	// OracleBatchSize is the number of merchant keys per oracle call.
	OracleBatchSize int `yaml:"oracle_batch_size"`

	// OracleConcurrency bounds parallel oracle calls, to respect the
	// service's rate limits.
	OracleConcurrency int `yaml:"oracle_concurrency"`

	// OracleTimeoutSeconds is the per-call timeout. Timeouts are a
	// normal, non-fatal outcome; affected transactions fall back to
	// "other".
	OracleTimeoutSeconds int `yaml:"oracle_timeout_seconds"`

	// ParseConcurrency bounds parallel document parsing within a batch.
	ParseConcurrency int `yaml:"parse_concurrency"`

	// Workers is the job-queue worker count for the serve mode.
	Workers int `yaml:"workers"`

	// Port is the HTTP listen port for the serve mode.
	Port string `yaml:"port"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DatasetID:            "pennywise",
		Model:                "gemini-2.5-flash",
		OracleBatchSize:      50,
		OracleConcurrency:    4,
		OracleTimeoutSeconds: 30,
		ParseConcurrency:     4,
		Workers:              5,
		Port:                 "8080",
	}
}

// Load reads a YAML config file and fills unset fields with defaults.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// OracleTimeout returns the per-call oracle timeout as a duration.
func (c *Config) OracleTimeout() time.Duration {
	return time.Duration(c.OracleTimeoutSeconds) * time.Second
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.DatasetID == "" {
		cfg.DatasetID = def.DatasetID
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.OracleBatchSize <= 0 {
		cfg.OracleBatchSize = def.OracleBatchSize
	}
	if cfg.OracleConcurrency <= 0 {
		cfg.OracleConcurrency = def.OracleConcurrency
	}
	if cfg.OracleTimeoutSeconds <= 0 {
		cfg.OracleTimeoutSeconds = def.OracleTimeoutSeconds
	}
	if cfg.ParseConcurrency <= 0 {
		cfg.ParseConcurrency = def.ParseConcurrency
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.Port == "" {
		cfg.Port = def.Port
	}
}
