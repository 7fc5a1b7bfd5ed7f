// Package config loads the scanner configuration from a JSON or YAML file.
// The core treats every value as an opaque input, validating nothing beyond
// type and the few fields it cannot run without.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration read once at startup.
type Config struct {
	Scan     ScanConfig     `json:"scan" yaml:"scan"`
	Endpoint EndpointConfig `json:"endpoint" yaml:"endpoint"`
	Model    ModelConfig    `json:"model" yaml:"model"`
	Storage  StorageConfig  `json:"storage" yaml:"storage"`
}

// ScanConfig controls traversal and chunking.
type ScanConfig struct {
	RootDirectory     string   `json:"root_directory" yaml:"root_directory"`
	Extensions        []string `json:"extensions" yaml:"extensions"`
	ExcludeDirs       []string `json:"exclude_dirs" yaml:"exclude_dirs"`
	GeneratedPatterns []string `json:"generated_patterns" yaml:"generated_patterns"`
	SaveInterval      int      `json:"save_interval" yaml:"save_interval"`
	MaxChunkSize      int      `json:"max_chunk_size" yaml:"max_chunk_size"`
	Workers           int      `json:"workers" yaml:"workers"`
}

// EndpointConfig points at the remote analysis endpoint.
type EndpointConfig struct {
	BaseURL      string `json:"base_url" yaml:"base_url"`
	APIKey       string `json:"api_key" yaml:"api_key"`
	RetryCount   int    `json:"retry_count" yaml:"retry_count"`
	RetryDelayMS int    `json:"retry_delay_ms" yaml:"retry_delay_ms"`
}

// RetryDelay returns the backoff base as a duration.
func (e EndpointConfig) RetryDelay() time.Duration {
	return time.Duration(e.RetryDelayMS) * time.Millisecond
}

// ModelConfig carries the model identifier and sampling parameters.
type ModelConfig struct {
	Name        string  `json:"name" yaml:"name"`
	Temperature float32 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
	TopP        float32 `json:"top_p" yaml:"top_p"`
}

// StorageConfig names the durable slots.
type StorageConfig struct {
	DatabasePath    string `json:"database_path" yaml:"database_path"`
	ProgressLogPath string `json:"progress_log_path" yaml:"progress_log_path"`
}

// Default returns a configuration with every optional field filled in. The
// root directory and endpoint are deliberately empty; they have no sensible
// default.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			Extensions: []string{
				".go", ".py", ".js", ".ts", ".java", ".rb", ".php",
				".c", ".h", ".cpp", ".cs", ".rs",
			},
			ExcludeDirs: []string{
				".git", "node_modules", "vendor", "dist", "build",
				"__pycache__", ".venv", "target",
			},
			GeneratedPatterns: []string{
				"*.min.js", "*.min.css", "*.pb.go", "*_pb2.py",
				"package-lock.json", "yarn.lock", "*.bundle.js",
			},
			SaveInterval: 10,
			MaxChunkSize: 8000,
			Workers:      1,
		},
		Endpoint: EndpointConfig{
			RetryCount:   3,
			RetryDelayMS: 1000,
		},
		Model: ModelConfig{
			Temperature: 0.1,
			MaxTokens:   2000,
		},
		Storage: StorageConfig{
			DatabasePath:    "codescan.db",
			ProgressLogPath: "scan_progress.log",
		},
	}
}

// Load reads and parses a config file, filling unset fields from Default.
// The format follows the extension: .yaml/.yml or .json.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if len(c.Scan.Extensions) == 0 {
		c.Scan.Extensions = def.Scan.Extensions
	}
	if len(c.Scan.ExcludeDirs) == 0 {
		c.Scan.ExcludeDirs = def.Scan.ExcludeDirs
	}
	if len(c.Scan.GeneratedPatterns) == 0 {
		c.Scan.GeneratedPatterns = def.Scan.GeneratedPatterns
	}
	if c.Scan.SaveInterval <= 0 {
		c.Scan.SaveInterval = def.Scan.SaveInterval
	}
	if c.Scan.MaxChunkSize <= 0 {
		c.Scan.MaxChunkSize = def.Scan.MaxChunkSize
	}
	if c.Scan.Workers <= 0 {
		c.Scan.Workers = def.Scan.Workers
	}
	if c.Endpoint.RetryCount <= 0 {
		c.Endpoint.RetryCount = def.Endpoint.RetryCount
	}
	if c.Endpoint.RetryDelayMS <= 0 {
		c.Endpoint.RetryDelayMS = def.Endpoint.RetryDelayMS
	}
	if c.Model.Temperature == 0 {
		c.Model.Temperature = def.Model.Temperature
	}
	if c.Model.MaxTokens <= 0 {
		c.Model.MaxTokens = def.Model.MaxTokens
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = def.Storage.DatabasePath
	}
	if c.Storage.ProgressLogPath == "" {
		c.Storage.ProgressLogPath = def.Storage.ProgressLogPath
	}
}

func (c *Config) validate() error {
	if c.Scan.RootDirectory == "" {
		return fmt.Errorf("scan.root_directory is required")
	}
	if c.Model.Name == "" {
		return fmt.Errorf("model.name is required")
	}
	return nil
}
