package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/convomemory/recall/internal/application/indexer"
	"github.com/convomemory/recall/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupCLI 准备独立的数据目录与配置文件
func setupCLI(t *testing.T) (cfgPath, archive string) {
	t.Helper()
	dataDir := t.TempDir()
	t.Setenv(config.EnvDataDir, dataDir)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("RECALL_EMBEDDING_API_KEY", "")
	config.ResetDataDir()
	t.Cleanup(config.ResetDataDir)

	archive = filepath.Join(dataDir, "archive")
	require.NoError(t, os.MkdirAll(archive, 0755))

	cfg := config.NewConfig()
	cfg.Sources.ArchiveDir = archive
	cfg.Sources.ActiveDir = ""
	cfgPath = filepath.Join(dataDir, "config.yaml")
	require.NoError(t, config.Save(cfg, cfgPath))
	return cfgPath, archive
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, verbose = "", false
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeSession(t *testing.T, dir, name string, lines ...string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(strings.Join(lines, "\n")+"\n"), 0644))
}

func msgLine(ts, role, content string) string {
	return `{"type":"message","timestamp":"` + ts + `","message":{"role":"` + role + `","content":"` + content + `"}}`
}

var countLine = regexp.MustCompile(`(?m)^(Indexed|Skipped|Errors|Messages|Embeddings): (\d+)$`)

func counts(out string) map[string]string {
	m := make(map[string]string)
	for _, match := range countLine.FindAllStringSubmatch(out, -1) {
		m[match[1]] = match[2]
	}
	return m
}

func TestCLI_IndexAndSearch(t *testing.T) {
	cfgPath, archive := setupCLI(t)
	writeSession(t, archive, "main-trip.jsonl",
		msgLine("2026-05-01T10:00:00Z", "user", "find a hotel near the lisbon conference venue"),
		msgLine("2026-05-01T10:02:00Z", "assistant", "three hotels are within walking distance of the venue"),
	)
	writeSession(t, archive, "main-broken.jsonl", "{not json")

	out, err := runCLI(t, "--config", cfgPath, "index", "--incremental")
	require.NoError(t, err)
	c := counts(out)
	assert.Equal(t, "1", c["Indexed"])
	assert.Equal(t, "2", c["Messages"])
	assert.Equal(t, "0", c["Embeddings"])
	assert.Contains(t, c, "Errors")
	assert.Contains(t, c, "Skipped")

	out, err = runCLI(t, "--config", cfgPath, "index", "--incremental")
	require.NoError(t, err)
	assert.Equal(t, "0", counts(out)["Indexed"])

	out, err = runCLI(t, "--config", cfgPath, "search", "lisbon", "--json")
	require.NoError(t, err)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Contains(t, resp, "conversations")
	assert.Contains(t, resp, "files")
	assert.Contains(t, resp, "summary")
	assert.Len(t, resp["conversations"], 1)

	out, err = runCLI(t, "--config", cfgPath, "search", "walking", "distance")
	require.NoError(t, err)
	assert.Contains(t, out, "Session: main-trip")
	assert.Contains(t, out, "**walking**")

	out, err = runCLI(t, "--config", cfgPath, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Sessions: 1")
	assert.Contains(t, out, "Semantic search: disabled")
}

func TestCLI_SearchUsageErrors(t *testing.T) {
	cfgPath, _ := setupCLI(t)

	_, err := runCLI(t, "--config", cfgPath, "search", "x", "--semantic", "--keyword")
	var ee *exitError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 2, ee.code)

	_, err = runCLI(t, "--config", cfgPath, "search", "x", "--semantic")
	require.True(t, errors.As(err, &ee), "semantic without a provider is a query error")

	_, err = runCLI(t, "--config", cfgPath, "search")
	assert.Error(t, err)
}

func TestCLI_ConfigInit(t *testing.T) {
	setupCLI(t)
	path := filepath.Join(t.TempDir(), "fresh.yaml")

	out, err := runCLI(t, "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote config")
	_, statErr := os.Stat(path)
	require.NoError(t, statErr)

	_, err = runCLI(t, "--config", path, "config", "init")
	assert.Error(t, err, "existing file is not overwritten without --force")

	_, err = runCLI(t, "--config", path, "config", "init", "--force")
	assert.NoError(t, err)
}

func TestPrintPassResult_ExactLines(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printPassResult(&buf, &indexer.PassResult{
		Indexed: 3, Skipped: 1, Errors: 2, Messages: 40, Embeddings: 12, Mirrored: 5,
		Failures: []indexer.Failure{{Path: "/a/b.jsonl", Error: "boom"}},
	}, false))

	lines := strings.Split(buf.String(), "\n")
	assert.Equal(t, "Indexed: 3", lines[0])
	assert.Equal(t, "Skipped: 1", lines[1])
	assert.Equal(t, "Errors: 2", lines[2])
	assert.Equal(t, "Messages: 40", lines[3])
	assert.Equal(t, "Embeddings: 12", lines[4])
	assert.Equal(t, "Mirrored: 5", lines[5])
	assert.Contains(t, buf.String(), "/a/b.jsonl: boom")
}

func TestBuildSources(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Sources.ArchiveDir = "/data/archive"
	cfg.Sources.ActiveDir = "/data/active"

	sources := buildSources(cfg, nil, false)
	require.Len(t, sources, 1)
	assert.Equal(t, "/data/archive", sources[0].Path)

	sources = buildSources(cfg, []string{"/tmp/x"}, true)
	require.Len(t, sources, 2)
	assert.Equal(t, indexer.Source{Path: "/tmp/x"}, sources[0])
	assert.Equal(t, indexer.Source{Path: "/data/active", Active: true}, sources[1])
}
