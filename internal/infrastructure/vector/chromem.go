package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"sync"

	"github.com/convomemory/recall/internal/domain/index"
	"github.com/convomemory/recall/internal/infrastructure/log"
	chromem "github.com/philippgille/chromem-go"
)

// 确保 ChromemIndex 实现了 VectorIndex 接口
var _ index.VectorIndex = (*ChromemIndex)(nil)

// errNoEmbeddingFunc 向量总是由调用方提供
var errNoEmbeddingFunc = errors.New("chromem collection does not embed text")

// ChromemIndex 基于 chromem-go 的嵌入式持久化向量库
type ChromemIndex struct {
	mu     sync.RWMutex
	db     *chromem.DB
	col    *chromem.Collection
	logger *slog.Logger
}

// NewChromemIndex 打开（或创建）dir 下的向量库
func NewChromemIndex(dir, collection string, compress bool) (*ChromemIndex, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create vector dir: %w", err)
	}
	db, err := chromem.NewPersistentDB(dir, compress)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	col, err := db.GetOrCreateCollection(collection, nil, rejectEmbedding)
	if err != nil {
		return nil, fmt.Errorf("open vector collection %s: %w", collection, err)
	}
	return &ChromemIndex{
		db:     db,
		col:    col,
		logger: log.NewModuleLogger("vector", "chromem"),
	}, nil
}

func rejectEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

// Name 后端名称
func (c *ChromemIndex) Name() string { return BackendChromem }

// Upsert 写入向量，ID 相同时覆盖
func (c *ChromemIndex) Upsert(ctx context.Context, records []index.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]chromem.Document, 0, len(records))
	for _, r := range records {
		docs = append(docs, chromem.Document{
			ID:        strconv.FormatInt(r.MessageID, 10),
			Embedding: r.Vector,
			Metadata: map[string]string{
				"session_id": r.SessionID,
				"agent_id":   r.AgentID,
				"channel":    r.Channel,
				"timestamp":  strconv.FormatInt(r.Timestamp, 10),
			},
		})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// DeleteSession 删除会话的全部向量
func (c *ChromemIndex) DeleteSession(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.col.Count() == 0 {
		return nil
	}
	if err := c.col.Delete(ctx, map[string]string{"session_id": sessionID}, nil); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

// Search 查询最相似的向量
// agent/channel 通过 where 精确匹配，起始时间在结果上过滤
func (c *ChromemIndex) Search(ctx context.Context, query []float32, filter index.VectorFilter, limit int) ([]index.VectorHit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	count := c.col.Count()
	if count == 0 || limit <= 0 {
		return nil, nil
	}

	where := map[string]string{}
	if filter.AgentID != "" {
		where["agent_id"] = filter.AgentID
	}
	if filter.Channel != "" {
		where["channel"] = filter.Channel
	}
	if len(where) == 0 {
		where = nil
	}

	n := limit
	if filter.Since > 0 {
		n = limit * 4
	}
	n = min(n, count)

	results, err := c.col.QueryEmbedding(ctx, query, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}

	hits := make([]index.VectorHit, 0, len(results))
	for _, r := range results {
		if filter.Since > 0 {
			ts, _ := strconv.ParseInt(r.Metadata["timestamp"], 10, 64)
			if ts < filter.Since {
				continue
			}
		}
		id, err := strconv.ParseInt(r.ID, 10, 64)
		if err != nil {
			c.logger.Warn("Skipping vector with bad id", "id", r.ID)
			continue
		}
		hits = append(hits, index.VectorHit{MessageID: id, Score: float64(r.Similarity)})
	}
	return topK(hits, limit), nil
}

// Count 向量数量
func (c *ChromemIndex) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.col.Count()
}
