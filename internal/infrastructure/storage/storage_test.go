package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	domainIndex "github.com/convomemory/recall/internal/domain/index"
	domainSession "github.com/convomemory/recall/internal/domain/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "recall.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testSession(id, agent string) *domainSession.Session {
	return &domainSession.Session{
		ID:         id,
		AgentID:    agent,
		Channel:    "direct",
		SourceFile: "/archive/" + id + ".jsonl",
		SourceRoot: "/archive",
	}
}

func msgs(contents ...string) []*domainSession.Message {
	out := make([]*domainSession.Message, len(contents))
	for i, c := range contents {
		role := domainSession.RoleUser
		if i%2 == 1 {
			role = domainSession.RoleAssistant
		}
		out[i] = &domainSession.Message{Role: role, Content: c, Timestamp: int64(1000 * (i + 1))}
	}
	return out
}

func TestOpenDB_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "recall.db")
	db, err := OpenDB(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = OpenDB(path)
	require.NoError(t, err)
	defer db.Close()

	var version int
	require.NoError(t, db.QueryRow(`PRAGMA user_version`).Scan(&version))
	assert.Equal(t, schemaVersion, version)
}

func TestSessionRepository_ReplaceSession(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewSessionRepository(db)
	searcher := NewMessageSearchRepository(db)

	stored, err := repo.ReplaceSession(ctx, testSession("s1", "main"), msgs("alpha question", "bravo answer", "charlie followup"))
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for i, m := range stored {
		assert.NotZero(t, m.ID)
		assert.Equal(t, i, m.Ordinal)
		assert.Equal(t, "s1", m.SessionID)
	}

	hits, err := searcher.SearchFTS(ctx, `"bravo"`, domainIndex.MessageFilter{}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	// 重新写入替换整个消息集合，旧消息与全文索引同时消失
	_, err = repo.ReplaceSession(ctx, testSession("s1", "main"), msgs("delta question", "echo answer"))
	require.NoError(t, err)

	got, err := repo.GetMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "delta question", got[0].Content)
	assert.Equal(t, domainSession.RoleAssistant, got[1].Role)

	hits, err = searcher.SearchFTS(ctx, `"bravo"`, domainIndex.MessageFilter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	s, err := repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 2, s.MessageCount)
	assert.Equal(t, "main", s.AgentID)

	missing, err := repo.GetSession(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSessionRepository_ReplaceDropsEmbeddings(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewSessionRepository(db)
	embeddings := NewEmbeddingRepository(db)

	stored, err := repo.ReplaceSession(ctx, testSession("s1", "main"), msgs("a message long enough to embed"))
	require.NoError(t, err)
	require.NoError(t, embeddings.SaveEmbeddings(ctx, []*domainIndex.Embedding{
		{MessageID: stored[0].ID, Vector: []float32{1, 0}, Model: "m"},
	}))

	n, err := embeddings.CountEmbeddings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = repo.ReplaceSession(ctx, testSession("s1", "main"), msgs("a different message, also long"))
	require.NoError(t, err)

	n, err = embeddings.CountEmbeddings(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// 已删除消息的向量被静默丢弃
	require.NoError(t, embeddings.SaveEmbeddings(ctx, []*domainIndex.Embedding{
		{MessageID: stored[0].ID, Vector: []float32{1, 0}, Model: "m"},
	}))
	n, err = embeddings.CountEmbeddings(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSessionRepository_ConcurrentWritesSameSession(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewSessionRepository(db)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.ReplaceSession(ctx, testSession("shared", "main"),
				msgs(fmt.Sprintf("writer %d first", i), fmt.Sprintf("writer %d second", i)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := repo.GetMessages(ctx, "shared")
	require.NoError(t, err)
	require.Len(t, got, 2, "last writer wins, no duplicated messages")
	assert.Equal(t, got[0].Content[:len("writer 0")], got[1].Content[:len("writer 0")])
}

func TestSessionRepository_GetContextAndByIDs(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewSessionRepository(db)

	stored, err := repo.ReplaceSession(ctx, testSession("s1", "main"), msgs("m0", "m1", "m2", "m3", "m4"))
	require.NoError(t, err)

	before, after, err := repo.GetContext(ctx, "s1", 2, 2)
	require.NoError(t, err)
	require.Len(t, before, 2)
	require.Len(t, after, 2)
	assert.Equal(t, "m0", before[0].Content)
	assert.Equal(t, "m4", after[1].Content)

	before, after, err = repo.GetContext(ctx, "s1", 0, 1)
	require.NoError(t, err)
	assert.Empty(t, before)
	assert.Len(t, after, 1)

	byID, err := repo.GetMessagesByIDs(ctx, []int64{stored[1].ID, stored[3].ID, 99999})
	require.NoError(t, err)
	assert.Len(t, byID, 2)
	assert.Equal(t, "m3", byID[stored[3].ID].Content)
}

func TestSessionRepository_Stats(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewSessionRepository(db)

	_, err := repo.ReplaceSession(ctx, testSession("s1", "main"), msgs("a", "b"))
	require.NoError(t, err)
	_, err = repo.ReplaceSession(ctx, testSession("s2", "main"), msgs("c"))
	require.NoError(t, err)
	_, err = repo.ReplaceSession(ctx, testSession("s3", "ops"), msgs("d"))
	require.NoError(t, err)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Sessions)
	assert.Equal(t, 4, stats.Messages)
	assert.Zero(t, stats.Embeddings)
	assert.Positive(t, stats.DBSizeBytes)
	require.Len(t, stats.Agents, 2)
	assert.Equal(t, domainSession.AgentCount{AgentID: "main", Sessions: 2}, stats.Agents[0])
}

func TestCheckpointRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewCheckpointRepository(openTestDB(t))

	cp, err := repo.Get(ctx, "/archive", "/archive/a.jsonl")
	require.NoError(t, err)
	assert.Nil(t, cp)

	require.NoError(t, repo.Save(ctx, &domainIndex.Checkpoint{
		SourceRoot: "/archive", FilePath: "/archive/a.jsonl", SessionID: "a",
		ContentHash: "h1", FileSize: 10, FileMtime: 100, MessageCount: 3,
		Status: domainIndex.StatusIndexed, IndexedAt: 1,
	}))
	// 同一文件在不同根目录下是独立的检查点
	require.NoError(t, repo.Save(ctx, &domainIndex.Checkpoint{
		SourceRoot: "/mirror", FilePath: "/archive/a.jsonl", SessionID: "a",
		ContentHash: "h1", Status: domainIndex.StatusIndexed,
	}))

	require.NoError(t, repo.UpdateMtime(ctx, "/archive", "/archive/a.jsonl", 11, 200))
	cp, err = repo.Get(ctx, "/archive", "/archive/a.jsonl")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, int64(11), cp.FileSize)
	assert.Equal(t, int64(200), cp.FileMtime)
	assert.Equal(t, "h1", cp.ContentHash)
	assert.Equal(t, 3, cp.MessageCount)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEmbeddingRepository_MissingAndScan(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewSessionRepository(db)
	embeddings := NewEmbeddingRepository(db)

	s1, err := repo.ReplaceSession(ctx, testSession("s1", "main"), msgs("short", "this message is long enough to embed", "another sufficiently long message"))
	require.NoError(t, err)
	s2, err := repo.ReplaceSession(ctx, testSession("s2", "ops"), msgs("ops message that is long enough too"))
	require.NoError(t, err)

	missing, err := embeddings.MissingEmbeddings(ctx, "", 20, 0, 0)
	require.NoError(t, err)
	assert.Len(t, missing, 3, "short messages are not eligible")

	missing, err = embeddings.MissingEmbeddings(ctx, "s1", 20, 1, 0)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, s1[1].ID, missing[0].ID)

	missing, err = embeddings.MissingEmbeddings(ctx, "s1", 20, 10, s1[1].ID)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, s1[2].ID, missing[0].ID)

	require.NoError(t, embeddings.SaveEmbeddings(ctx, []*domainIndex.Embedding{
		{MessageID: s1[1].ID, Vector: []float32{1, 0, 0}, Model: "m"},
		{MessageID: s2[0].ID, Vector: []float32{0, 1, 0}, Model: "m"},
	}))

	missing, err = embeddings.MissingEmbeddings(ctx, "", 20, 0, 0)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, s1[2].ID, missing[0].ID)

	seen := map[int64][]float32{}
	require.NoError(t, embeddings.ScanEmbeddings(ctx, domainIndex.VectorFilter{AgentID: "ops"}, func(id int64, v []float32) error {
		seen[id] = v
		return nil
	}))
	require.Len(t, seen, 1)
	assert.Equal(t, []float32{0, 1, 0}, seen[s2[0].ID])
}

func TestEmbeddingRepository_MirrorState(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewSessionRepository(db)
	embeddings := NewEmbeddingRepository(db)

	stored, err := repo.ReplaceSession(ctx, testSession("s1", "main"), msgs("first message long enough", "second message long enough"))
	require.NoError(t, err)
	require.NoError(t, embeddings.SaveEmbeddings(ctx, []*domainIndex.Embedding{
		{MessageID: stored[0].ID, Vector: []float32{1, 0}, Model: "m"},
		{MessageID: stored[1].ID, Vector: []float32{0, 1}, Model: "m"},
	}))

	pending, err := embeddings.UnmirroredEmbeddings(ctx, "chromem", 0, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "s1", pending[0].SessionID)
	assert.Equal(t, "main", pending[0].AgentID)
	assert.Equal(t, "direct", pending[0].Channel)
	assert.Equal(t, int64(1000), pending[0].Timestamp)
	assert.Equal(t, []float32{1, 0}, pending[0].Vector)

	require.NoError(t, embeddings.MarkMirrored(ctx, "chromem", []int64{stored[0].ID}))
	pending, err = embeddings.UnmirroredEmbeddings(ctx, "chromem", 0, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, stored[1].ID, pending[0].MessageID)

	// 切换后端后全部需要重新镜像
	pending, err = embeddings.UnmirroredEmbeddings(ctx, "qdrant", 10, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	// 重新保存的向量清空镜像状态
	require.NoError(t, embeddings.SaveEmbeddings(ctx, []*domainIndex.Embedding{
		{MessageID: stored[0].ID, Vector: []float32{0.5, 0.5}, Model: "m"},
	}))
	pending, err = embeddings.UnmirroredEmbeddings(ctx, "chromem", 0, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	assert.NoError(t, embeddings.MarkMirrored(ctx, "chromem", nil))
}

func TestOpenDB_MigratesEmbeddingsWithoutMirrorColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	old, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = old.Exec(`CREATE TABLE embeddings (
		message_id INTEGER PRIMARY KEY,
		vector BLOB NOT NULL,
		dim INTEGER NOT NULL,
		model TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	require.NoError(t, err)
	_, err = old.Exec(`INSERT INTO embeddings VALUES (7, x'0000803f', 1, 'm', 1)`)
	require.NoError(t, err)
	require.NoError(t, old.Close())

	db, err := OpenDB(path)
	require.NoError(t, err)
	defer db.Close()

	var mirrored string
	require.NoError(t, db.QueryRow(`SELECT mirrored_to FROM embeddings WHERE message_id = 7`).Scan(&mirrored))
	assert.Empty(t, mirrored)
}

func TestMessageSearch_StemmingFiltersAndSubstring(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewSessionRepository(db)
	searcher := NewMessageSearchRepository(db)

	_, err := repo.ReplaceSession(ctx, testSession("s1", "main"), msgs("the deploy is running now", "config key max_retries_v2 was set"))
	require.NoError(t, err)
	_, err = repo.ReplaceSession(ctx, testSession("s2", "ops"), msgs("we run the deploy every day"))
	require.NoError(t, err)

	// porter 词干：run 同时匹配 running
	hits, err := searcher.SearchFTS(ctx, `"run"`, domainIndex.MessageFilter{}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = searcher.SearchFTS(ctx, `"run"`, domainIndex.MessageFilter{AgentID: "ops"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "s2", hits[0].Message.SessionID)

	hits, err = searcher.SearchFTS(ctx, `"deploy"`, domainIndex.MessageFilter{Since: 2000}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits, "both deploy messages are at ordinal 0 with timestamp 1000")

	hits, err = searcher.SearchSubstring(ctx, "RETRIES_V", domainIndex.MessageFilter{}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Contains(t, hits[0].Message.Content, "max_retries_v2")

	// LIKE 通配符被转义
	hits, err = searcher.SearchSubstring(ctx, "%", domainIndex.MessageFilter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestVectorCodec(t *testing.T) {
	v := []float32{0.5, -1.25, 3.75e-5}
	got, err := DecodeVector(EncodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = DecodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
