// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/leseb/filereader/pkg/core/options"
)

// Config represents the main configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Reader  ReaderConfig  `yaml:"reader"`
	S3      S3Config      `yaml:"s3"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
	// MaxBodyBytes bounds the size of a convert request body.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// LoggingConfig contains logger configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// ReaderConfig holds the default rendering options. Request fields override
// them per call.
type ReaderConfig struct {
	Options options.Options `yaml:",inline"`
	TempDir string          `yaml:"temp_dir"`
}

// S3Config contains object storage configuration for s3:// inputs
type S3Config struct {
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"` // e.g. "http://localhost:9000" for MinIO
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(&cfg)

	applyServerDefaults(&cfg.Server)
	applyLoggingDefaults(&cfg.Logging)
	applyS3Defaults(&cfg.S3)
	if err := applyReaderDefaults(&cfg.Reader); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns default configuration
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			Timeout: 60 * time.Second,
		},
	}
	applyEnvOverrides(cfg)
	applyServerDefaults(&cfg.Server)
	applyLoggingDefaults(&cfg.Logging)
	applyS3Defaults(&cfg.S3)
	if err := applyReaderDefaults(&cfg.Reader); err != nil {
		// Invalid env values: fall back to the built-in reader defaults.
		cfg.Reader.Options = options.Default()
	}
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Reader env overrides
	if v := os.Getenv("OUTPUT_FORMAT"); v != "" {
		if f, err := options.ParseOutputFormat(v); err == nil {
			cfg.Reader.Options.OutputFormat = f
		}
	}
	if v := os.Getenv("AI_OPTIMIZED"); v != "" {
		cfg.Reader.Options.AIOptimized = parseBool(v)
	}
	if v := os.Getenv("INCLUDE_METADATA"); v != "" {
		cfg.Reader.Options.IncludeMetadata = parseBool(v)
	}
	if v := os.Getenv("EXTRACT_KEY_SECTIONS"); v != "" {
		cfg.Reader.Options.ExtractKeySections = parseBool(v)
	}
	if v := os.Getenv("PROCESSING_IMAGES"); v != "" {
		cfg.Reader.Options.ProcessingImages = parseBool(v)
	}
	if v := os.Getenv("MAX_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Reader.Options.MaxChunkSize = n
		}
	}
	if v := os.Getenv("DOCX_STRATEGY"); v != "" {
		cfg.Reader.Options.DocxStrategy = options.DocxStrategy(v)
	}

	// S3 env overrides
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.S3.Region = v
	}
	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		cfg.S3.Endpoint = v
	}
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 64 << 20
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
}

// applyReaderDefaults keeps the flags as configured; options.New applies the
// markdown_ai override once the request format is known.
func applyReaderDefaults(cfg *ReaderConfig) error {
	opts, err := options.WithDefaults(cfg.Options)
	if err != nil {
		return fmt.Errorf("invalid reader config: %w", err)
	}
	cfg.Options = opts
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return nil
}

func applyS3Defaults(cfg *S3Config) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
}
