package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/convomemory/recall/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newFileSearcher(t *testing.T, roots ...config.FileRoot) *FileSearcher {
	t.Helper()
	cfg := config.NewConfig().Files
	cfg.Roots = roots
	s, err := NewFileSearcher(&cfg)
	require.NoError(t, err)
	return s
}

func TestFileSearcher_MatchesScoresAndSections(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "runbook.md"), `# Runbook

intro line
## Credentials
Rotate the api keys before every deploy.
rotate keys now
trailing line
`)
	writeFile(t, filepath.Join(root, "node_modules", "pkg", "README.md"), "rotate keys now\n")
	writeFile(t, filepath.Join(root, "data.json"), `{"note": "rotate keys"}`)

	s := newFileSearcher(t, config.FileRoot{Agent: "main", Path: root})
	results, err := s.Search(context.Background(), "Rotate KEYS", "", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	exact := results[0]
	assert.Equal(t, 6, exact.Line)
	assert.Equal(t, 1.0, exact.Score)
	assert.Equal(t, "Credentials", exact.Section)
	assert.Equal(t, "main", exact.Agent)
	assert.Equal(t, KindFile, exact.Kind)
	assert.Equal(t, []string{"## Credentials", "Rotate the api keys before every deploy."}, exact.ContextBefore)
	assert.Equal(t, []string{"trailing line"}, exact.ContextAfter)
	assert.Equal(t, "**rotate** **keys** now", exact.Snippet)

	loose := results[1]
	assert.Equal(t, 5, loose.Line)
	assert.Equal(t, 0.8, loose.Score)
}

func TestFileSearcher_AgentFilterAndDedupe(t *testing.T) {
	main, ops := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(main, "a.txt"), "shared checklist item\n")
	writeFile(t, filepath.Join(main, "b.txt"), "shared checklist item\n")
	writeFile(t, filepath.Join(ops, "c.md"), "shared checklist for ops\n")

	s := newFileSearcher(t,
		config.FileRoot{Agent: "main", Path: main},
		config.FileRoot{Agent: "ops", Path: ops},
		config.FileRoot{Agent: "gone", Path: filepath.Join(main, "missing")},
	)

	results, err := s.Search(context.Background(), "shared checklist", "", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, filepath.Join(main, "a.txt"), results[0].Path)

	results, err = s.Search(context.Background(), "shared checklist", "ops", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ops", results[0].Agent)
	assert.Empty(t, results[0].Section)
}

func TestFileSearcher_CacheInvalidatedOnChange(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "notes.txt")
	writeFile(t, path, "alpha beta\n")

	s := newFileSearcher(t, config.FileRoot{Agent: "main", Path: root})
	results, err := s.Search(context.Background(), "gamma", "", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 1, s.cache.Len())

	writeFile(t, path, "alpha beta gamma\n")
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	results, err = s.Search(context.Background(), "gamma", "", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alpha beta gamma", results[0].Text)
}

func TestEngine_FilesOnly(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "todo.md"), "- renew the tls certificate\n")

	f := newFixture(t, false)
	f.engine.files = newFileSearcher(t, config.FileRoot{Agent: "main", Path: root})

	resp, err := f.engine.Search(context.Background(), Request{Query: "tls certificate", FilesOnly: true})
	require.NoError(t, err)
	assert.Empty(t, resp.Conversations)
	require.Len(t, resp.Files, 1)
	assert.Equal(t, 1, resp.Summary.Files)
	assert.Equal(t, []string{"main"}, resp.Summary.Agents)
}
