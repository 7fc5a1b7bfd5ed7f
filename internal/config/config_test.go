package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "scan.yaml", `
scan:
  root_directory: /repo
  extensions: [".go", ".py"]
  max_chunk_size: 4000
endpoint:
  base_url: http://localhost:1234/v1
  retry_count: 5
  retry_delay_ms: 250
model:
  name: qwen2.5-coder
  temperature: 0.2
storage:
  database_path: /tmp/scan.db
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "/repo", cfg.Scan.RootDirectory)
	assert.Equal(t, []string{".go", ".py"}, cfg.Scan.Extensions)
	assert.Equal(t, 4000, cfg.Scan.MaxChunkSize)
	assert.Equal(t, "http://localhost:1234/v1", cfg.Endpoint.BaseURL)
	assert.Equal(t, 5, cfg.Endpoint.RetryCount)
	assert.Equal(t, 250*time.Millisecond, cfg.Endpoint.RetryDelay())
	assert.Equal(t, "qwen2.5-coder", cfg.Model.Name)
	assert.InDelta(t, 0.2, cfg.Model.Temperature, 0.001)
	assert.Equal(t, "/tmp/scan.db", cfg.Storage.DatabasePath)
}

func TestLoad_JSON(t *testing.T) {
	path := writeConfig(t, "scan.json", `{
  "scan": {"root_directory": "/repo"},
  "model": {"name": "gpt-4o-mini"}
}`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "/repo", cfg.Scan.RootDirectory)
	assert.Equal(t, "gpt-4o-mini", cfg.Model.Name)
}

func TestLoad_DefaultsFillUnsetFields(t *testing.T) {
	path := writeConfig(t, "scan.yaml", `
scan:
  root_directory: /repo
model:
  name: m
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Contains(t, cfg.Scan.Extensions, ".go")
	assert.Contains(t, cfg.Scan.ExcludeDirs, "node_modules")
	assert.Contains(t, cfg.Scan.GeneratedPatterns, "*.min.js")
	assert.Equal(t, 10, cfg.Scan.SaveInterval)
	assert.Equal(t, 8000, cfg.Scan.MaxChunkSize)
	assert.Equal(t, 1, cfg.Scan.Workers)
	assert.Equal(t, 3, cfg.Endpoint.RetryCount)
	assert.Equal(t, time.Second, cfg.Endpoint.RetryDelay())
	assert.Equal(t, 2000, cfg.Model.MaxTokens)
	assert.Equal(t, "codescan.db", cfg.Storage.DatabasePath)
	assert.Equal(t, "scan_progress.log", cfg.Storage.ProgressLogPath)
}

func TestLoad_MissingRootDirectory(t *testing.T) {
	path := writeConfig(t, "scan.yaml", `
model:
  name: m
`)

	_, err := Load(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "root_directory")
}

func TestLoad_MissingModelName(t *testing.T) {
	path := writeConfig(t, "scan.yaml", `
scan:
  root_directory: /repo
`)

	_, err := Load(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "model.name")
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := writeConfig(t, "scan.toml", `root = "/repo"`)

	_, err := Load(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config format")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "scan.yaml", "scan: [unclosed")

	_, err := Load(path)
	assert.Error(t, err)
}
