package vector

import (
	"context"
	"fmt"

	"github.com/convomemory/recall/internal/domain/index"
)

// 确保 SQLiteIndex 实现了 VectorIndex 接口
var _ index.VectorIndex = (*SQLiteIndex)(nil)

// SQLiteIndex 直接扫描 embeddings 表做暴力余弦检索
// 向量由 EmbeddingStore 写入，Upsert/DeleteSession 无需额外动作
type SQLiteIndex struct {
	store index.EmbeddingStore
}

// NewSQLiteIndex 创建 SQLite 向量检索
func NewSQLiteIndex(store index.EmbeddingStore) *SQLiteIndex {
	return &SQLiteIndex{store: store}
}

// Name 后端名称
func (s *SQLiteIndex) Name() string { return BackendSQLite }

// Upsert 向量已在 embeddings 表中
func (s *SQLiteIndex) Upsert(ctx context.Context, records []index.VectorRecord) error { return nil }

// DeleteSession 消息删除时向量级联删除
func (s *SQLiteIndex) DeleteSession(ctx context.Context, sessionID string) error { return nil }

// Search 扫描全部候选向量，返回相似度最高的 limit 条
func (s *SQLiteIndex) Search(ctx context.Context, query []float32, filter index.VectorFilter, limit int) ([]index.VectorHit, error) {
	var hits []index.VectorHit
	err := s.store.ScanEmbeddings(ctx, filter, func(messageID int64, vec []float32) error {
		if len(vec) != len(query) {
			return nil
		}
		hits = append(hits, index.VectorHit{MessageID: messageID, Score: Cosine(query, vec)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan embeddings: %w", err)
	}
	return topK(hits, limit), nil
}
