package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	ResetDataDir()
	t.Setenv(EnvDataDir, dir)
	t.Cleanup(ResetDataDir)
	return dir
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, ":8765", cfg.Server.HTTPPort)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, 100, cfg.Embedding.BatchSize)
	assert.Equal(t, 20, cfg.Embedding.MinContentLength)
	assert.Equal(t, "sqlite", cfg.Vector.Backend)
	assert.Equal(t, []string{"*.md", "*.txt"}, cfg.Files.Patterns)
	assert.Len(t, cfg.Schedule.Jobs, 2)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	dir := withDataDir(t)
	t.Setenv(EnvAPIKey, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8765", cfg.Server.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, time.Second, cfg.Embedding.RetryDelay)
	assert.Equal(t, filepath.Join(dir, "recall.db"), cfg.DBPath())
	assert.False(t, cfg.Embedding.Enabled())
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := withDataDir(t)
	path := filepath.Join(dir, "custom.yaml")
	content := `
server:
  http_port: ":9999"
search:
  default_limit: 5
  max_limit: 50
embedding:
  retry_delay: 250ms
files:
  roots:
    - agent: main
      path: /tmp/notes
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("RECALL_SEARCH_MAX_LIMIT", "70")
	t.Setenv("RECALL_EMBEDDING_API_KEY", "sk-file")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.HTTPPort)
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
	assert.Equal(t, 70, cfg.Search.MaxLimit)
	assert.Equal(t, "sk-file", cfg.Embedding.APIKey)
	assert.Equal(t, 250*time.Millisecond, cfg.Embedding.RetryDelay)
	require.Len(t, cfg.Files.Roots, 1)
	assert.Equal(t, "main", cfg.Files.Roots[0].Agent)
	// 未覆盖的字段保留默认值
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
}

func TestLoad_OpenAIKeyFallback(t *testing.T) {
	withDataDir(t)
	t.Setenv("RECALL_EMBEDDING_API_KEY", "")
	t.Setenv(EnvAPIKey, "sk-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.Embedding.APIKey)
	assert.True(t, cfg.Embedding.Enabled())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	withDataDir(t)
	_, err := Load("/nonexistent/recall.yaml")
	assert.Error(t, err)
}

func TestLoad_InvalidBackend(t *testing.T) {
	dir := withDataDir(t)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vector:\n  backend: faiss\n"), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown vector backend")
}

func TestSave_RoundTrip(t *testing.T) {
	dir := withDataDir(t)
	t.Setenv(EnvAPIKey, "")
	cfg := NewConfig()
	cfg.Server.HTTPPort = ":7000"
	cfg.Sources.Extra = []string{"/data/mirror"}

	require.NoError(t, Save(cfg, ""))
	info, err := os.Stat(filepath.Join(dir, DefaultConfigName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7000", loaded.Server.HTTPPort)
	assert.Equal(t, []string{"/data/mirror"}, loaded.SourceDirs()[1:])
}
