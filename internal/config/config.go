// Copyright 2025 Certen Protocol
//
// Configuration: environment variables with safe defaults, and an optional
// YAML overlay for deployments that prefer a checked-in file over ad hoc
// env vars.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConsensusConfig paces block production and bounds block contents.
type ConsensusConfig struct {
	BlockTimeSecs     int  `yaml:"block_time_secs"`
	MaxBlockTxs       int  `yaml:"max_block_txs"`
	MaxBlockSizeBytes int  `yaml:"max_block_size_bytes"`
	AllowEmptyBlocks  bool `yaml:"allow_empty_blocks"`
}

// StorageConfig selects and configures the persistent block store.
type StorageConfig struct {
	Path            string `yaml:"path"`
	CreateIfMissing bool   `yaml:"create_if_missing"`
}

// MlClientConfig configures the HTTP verifier used by the ML validator.
type MlClientConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// MlValidationConfig bounds per-block ML verification cost.
type MlValidationConfig struct {
	MaxArtefactsPerBlock int `yaml:"max_artefacts_per_block"`
}

// MetricsConfig configures the Prometheus HTTP exporter.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// Config aggregates every configuration surface of the validator node.
type Config struct {
	Consensus    ConsensusConfig     `yaml:"consensus"`
	Storage      StorageConfig       `yaml:"storage"`
	MlClient     MlClientConfig      `yaml:"ml_client"`
	MlValidation MlValidationConfig  `yaml:"ml_validation"`
	Metrics      MetricsConfig       `yaml:"metrics"`
}

// Load builds a Config from environment variables, then applies a YAML
// overlay from the file named by CONFIG_FILE, if set. Values present in
// the YAML file take precedence over the environment defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Consensus: ConsensusConfig{
			BlockTimeSecs:     getEnvInt("CONSENSUS_BLOCK_TIME_SECS", 5),
			MaxBlockTxs:       getEnvInt("CONSENSUS_MAX_BLOCK_TXS", 10_000),
			MaxBlockSizeBytes: getEnvInt("CONSENSUS_MAX_BLOCK_SIZE_BYTES", 1_000_000),
			AllowEmptyBlocks:  getEnvBool("CONSENSUS_ALLOW_EMPTY_BLOCKS", true),
		},
		Storage: StorageConfig{
			Path:            getEnv("STORAGE_PATH", "data/chain-db"),
			CreateIfMissing: getEnvBool("STORAGE_CREATE_IF_MISSING", true),
		},
		MlClient: MlClientConfig{
			BaseURL: getEnv("ML_CLIENT_BASE_URL", "http://127.0.0.1:8080"),
			Timeout: getEnvDuration("ML_CLIENT_TIMEOUT", 2*time.Second),
		},
		MlValidation: MlValidationConfig{
			MaxArtefactsPerBlock: getEnvInt("ML_MAX_ARTEFACTS_PER_BLOCK", 1024),
		},
		Metrics: MetricsConfig{
			Enabled:    getEnvBool("METRICS_ENABLED", true),
			ListenAddr: getEnv("METRICS_LISTEN_ADDR", "127.0.0.1:9898"),
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyYAMLOverlay(cfg, path); err != nil {
			return nil, fmt.Errorf("config: loading overlay %s: %w", path, err)
		}
	}

	return cfg, nil
}

func applyYAMLOverlay(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks the configuration surface for internally inconsistent or
// nonsensical values, accumulating every violation before returning.
func (c *Config) Validate() error {
	var violations []string

	if c.Consensus.BlockTimeSecs <= 0 {
		violations = append(violations, "consensus.block_time_secs must be positive")
	}
	if c.Consensus.MaxBlockTxs <= 0 {
		violations = append(violations, "consensus.max_block_txs must be positive")
	}
	if c.Consensus.MaxBlockSizeBytes <= 0 {
		violations = append(violations, "consensus.max_block_size_bytes must be positive")
	}
	if c.Storage.Path == "" {
		violations = append(violations, "storage.path must not be empty")
	}
	if c.MlClient.BaseURL == "" {
		violations = append(violations, "ml_client.base_url must not be empty")
	}
	if c.MlClient.Timeout <= 0 {
		violations = append(violations, "ml_client.timeout must be positive")
	}
	if c.MlValidation.MaxArtefactsPerBlock <= 0 {
		violations = append(violations, "ml_validation.max_artefacts_per_block must be positive")
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		violations = append(violations, "metrics.listen_addr must not be empty when metrics.enabled is true")
	}

	if len(violations) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(violations, "\n  - "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
