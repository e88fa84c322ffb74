package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/convomemory/recall/internal/domain/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func parseFile(t *testing.T, root, path string) *Ingested {
	t.Helper()
	sf, err := StatFile(root, path, false)
	require.NoError(t, err)
	snap, err := sf.Load()
	require.NoError(t, err)
	got, err := NewIngestor().Parse(snap)
	require.NoError(t, err)
	return got
}

func collect(t *testing.T, root string) ([]*Ingested, []error) {
	t.Helper()
	var out []*Ingested
	var errs []error
	for ing, err := range NewIngestor().Ingest(context.Background(), root, false) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, ing)
	}
	return out, errs
}

func TestParse_OpenClaw(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent-main-telegram-42-abc.jsonl")
	writeFile(t, path, strings.Join([]string{
		`{"type":"session","id":"abc","timestamp":"2026-02-06T10:00:00Z"}`,
		`{"type":"model_change","model":"gpt"}`,
		`{"type":"message","timestamp":"2026-02-06T10:00:00Z","message":{"role":"user","content":"deploy the api gateway"}}`,
		`{"type":"message","timestamp":"2026-02-06T10:00:05.123Z","message":{"role":"assistant","content":[{"type":"thinking","thinking":"hmm"},{"type":"text","text":"Deploying now."},{"type":"toolCall","name":"bash"}]}}`,
		`{"type":"message","timestamp":1770372010000,"message":{"role":"toolResult","content":"ok"}}`,
		`{"type":"message","message":{"role":"user","content":"   "}}`,
		`not json at all`,
	}, "\n"))

	got := parseFile(t, dir, path)
	sess := got.Session
	assert.Equal(t, "agent-main-telegram-42-abc", sess.ID)
	assert.Equal(t, "main", sess.AgentID)
	assert.Equal(t, "telegram", sess.Channel)
	assert.Equal(t, "42", sess.ChannelID)
	assert.Equal(t, FormatOpenClaw, sess.Format)
	assert.Equal(t, 1, got.SkippedLines)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, session.RoleUser, got.Messages[0].Role)
	assert.Equal(t, "deploy the api gateway", got.Messages[0].Content)
	assert.Equal(t, 0, got.Messages[0].Ordinal)
	assert.Equal(t, "Deploying now.", got.Messages[1].Content)
	assert.Equal(t, 1, got.Messages[1].Ordinal)

	start := time.Date(2026, 2, 6, 10, 0, 0, 0, time.UTC).UnixMilli()
	assert.Equal(t, start, got.Messages[0].Timestamp)
	assert.Equal(t, start+5123, got.Messages[1].Timestamp)
	assert.Equal(t, start, sess.StartedAt)
	assert.Equal(t, start+5123, sess.EndedAt)
	assert.Equal(t, 2, sess.MessageCount)
	assert.Len(t, sess.ContentHash, 64)
}

func TestParse_LegacyWithContentTimestamp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cyrus-discord-1234-20260206.jsonl")
	writeFile(t, path, strings.Join([]string{
		`{"role":"user","content":"[2026-02-06 10:25 GMT+11] what did we decide about caching?"}`,
		`{"role":"assistant","content":"We picked an LRU.","timestamp":1770372000}`,
		`{"role":"tool_result","content":"x"}`,
		`{"role":"developer","content":"be brief"}`,
	}, "\n"))

	got := parseFile(t, dir, path)
	assert.Equal(t, FormatLegacy, got.Session.Format)
	assert.Equal(t, "cyrus", got.Session.AgentID)
	assert.Equal(t, "discord", got.Session.Channel)
	assert.Equal(t, "1234", got.Session.ChannelID)

	require.Len(t, got.Messages, 3)
	want := time.Date(2026, 2, 6, 10, 25, 0, 0, time.FixedZone("", 11*3600)).UnixMilli()
	assert.Equal(t, want, got.Messages[0].Timestamp)
	assert.Equal(t, int64(1770372000000), got.Messages[1].Timestamp)
	assert.Equal(t, session.RoleSystem, got.Messages[2].Role)
}

func TestParse_ClaudeAndCodex(t *testing.T) {
	dir := t.TempDir()
	claude := filepath.Join(dir, "claude", "3f2a9c1e-uuid.jsonl")
	writeFile(t, claude, strings.Join([]string{
		`{"type":"summary","summary":"x"}`,
		`{"type":"user","timestamp":"2026-01-01T00:00:00Z","message":{"role":"user","content":"fix the flaky test"}}`,
		`{"type":"assistant","timestamp":"2026-01-01T00:00:01Z","message":{"role":"assistant","content":[{"type":"text","text":"Looking."},{"type":"tool_use","name":"Read","input":{}}]}}`,
		`{"type":"user","message":{"role":"user","content":[{"type":"tool_result","content":"file body"}]}}`,
		`{"type":"user","message":{"role":"user","content":"<command-name>/clear</command-name>"}}`,
	}, "\n"))

	got := parseFile(t, dir, claude)
	assert.Equal(t, FormatClaude, got.Session.Format)
	assert.Equal(t, "claude", got.Session.AgentID)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "Looking.", got.Messages[1].Content)

	codex := filepath.Join(dir, "codex", "rollout-2026-01-01-abc.jsonl")
	writeFile(t, codex, strings.Join([]string{
		`{"type":"session_meta","payload":{"id":"abc","cwd":"/tmp"}}`,
		`{"type":"response_item","timestamp":"2026-01-01T00:00:00Z","payload":{"type":"message","role":"user","content":[{"type":"input_text","text":"<environment_context>cwd</environment_context>"}]}}`,
		`{"type":"response_item","timestamp":"2026-01-01T00:00:02Z","payload":{"type":"message","role":"user","content":[{"type":"input_text","text":"rename the handler"}]}}`,
		`{"type":"response_item","payload":{"type":"function_call","name":"shell"}}`,
		`{"type":"response_item","payload":{"type":"message","role":"assistant","content":[{"type":"output_text","text":"Renamed."}]}}`,
	}, "\n"))

	got = parseFile(t, dir, codex)
	assert.Equal(t, FormatCodex, got.Session.Format)
	assert.Equal(t, "codex", got.Session.AgentID)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "rename the handler", got.Messages[0].Content)
	assert.Equal(t, session.RoleAssistant, got.Messages[1].Role)
}

func TestParse_Transcript(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proj", session.TranscriptDirName, "a1b2.txt")
	writeFile(t, path, `user:
<user_query>
how do I read main.go?
</user_query>
assistant:
[Thinking] let me look
I'll read the file.
[Tool call] read_file
  path: main.go

[Tool result] read_file
package main

Done, it declares package main.
`)

	got := parseFile(t, dir, path)
	assert.Equal(t, FormatTranscript, got.Session.Format)
	assert.Equal(t, "cursor", got.Session.AgentID)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "how do I read main.go?", got.Messages[0].Content)
	assert.Equal(t, "I'll read the file.\nDone, it declares package main.", got.Messages[1].Content)
}

func TestParse_MalformedAndEmpty(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.jsonl")
	writeFile(t, bad, "{{{\nnope\n")
	sf, err := StatFile(dir, bad, false)
	require.NoError(t, err)
	snap, err := sf.Load()
	require.NoError(t, err)
	_, err = NewIngestor().Parse(snap)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedSession)
	var fe *FileError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, bad, fe.Path)

	empty := filepath.Join(dir, "empty.jsonl")
	writeFile(t, empty, "\n\n")
	got := parseFile(t, dir, empty)
	assert.Empty(t, got.Messages)
	assert.Equal(t, FormatUnknown, got.Session.Format)
}

func TestIngest_ContinuesPastBadFilesAndIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b-session.jsonl"), `{"role":"user","content":"second file"}`)
	writeFile(t, filepath.Join(dir, "a-session.jsonl"), `{"role":"user","content":"first file"}`)
	writeFile(t, filepath.Join(dir, "c-broken.jsonl"), "garbage")
	writeFile(t, filepath.Join(dir, "notes.txt"), "user:\nnot a transcript location")
	writeFile(t, filepath.Join(dir, "node_modules", "x.jsonl"), `{"role":"user","content":"ignored"}`)
	writeFile(t, filepath.Join(dir, "main", "sessions", "9f8e.jsonl"), `{"role":"user","content":"nested"}`)

	first, errs := collect(t, dir)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrMalformedSession)

	ids := make([]string, 0, len(first))
	for _, ing := range first {
		ids = append(ids, ing.Session.ID)
	}
	assert.Equal(t, []string{"a-session", "b-session", "9f8e"}, ids)
	assert.Equal(t, "main", first[2].Session.AgentID)

	second, _ := collect(t, dir)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Session.ContentHash, second[i].Session.ContentHash)
		assert.Equal(t, first[i].Messages, second[i].Messages)
	}
}

func TestIngest_MissingRoot(t *testing.T) {
	out, errs := collect(t, filepath.Join(t.TempDir(), "missing"))
	assert.Empty(t, out)
	require.Len(t, errs, 1)
	var fe *FileError
	assert.ErrorAs(t, errs[0], &fe)
}

func TestIngest_StopsWhenConsumerBreaks(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.jsonl", "b.jsonl", "c.jsonl"} {
		writeFile(t, filepath.Join(dir, name), `{"role":"user","content":"hi"}`)
	}
	n := 0
	for range NewIngestor().Ingest(context.Background(), dir, true) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestMetadataFromPath(t *testing.T) {
	tests := []struct {
		path    string
		agent   string
		channel string
		chID    string
	}{
		{"/x/agent-main-cron-uuid-123.jsonl", "main", "cron", ""},
		{"/x/agent-ops-slack-C0-998877.jsonl", "ops", "slack", "998877"},
		{"/x/main-uuid-1700000000.jsonl", "main", ChannelDirect, ""},
		{"/x/cyrus-telegram-5551234-x.jsonl", "cyrus", "telegram", "5551234"},
		{"/root/agents/research/sessions/abc-session-1.jsonl", "research", "session", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			meta := metadataFromPath(tt.path, FormatOpenClaw)
			assert.Equal(t, tt.agent, meta.AgentID)
			assert.Equal(t, tt.channel, meta.Channel)
			assert.Equal(t, tt.chID, meta.ChannelID)
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	base := time.Date(2026, 2, 6, 10, 0, 0, 0, time.UTC).UnixMilli()
	tests := []struct {
		raw  string
		want int64
	}{
		{`"2026-02-06T10:00:00Z"`, base},
		{`"2026-02-06T10:00:00.250Z"`, base + 250},
		{`"2026-02-06T21:00:00+11:00"`, base},
		{`"2026-02-06T10:00:00"`, base},
		{`"2026-02-06 10:00:00"`, base},
		{`1770372000000`, 1770372000000},
		{`1770372000`, 1770372000000},
		{`1770372000.5`, 1770372000500},
		{`"garbage"`, 0},
		{`null`, 0},
		{``, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseTimestamp([]byte(tt.raw)), tt.raw)
	}
}
