package index

import (
	"context"

	"github.com/convomemory/recall/internal/domain/session"
)

// CheckpointStore 检查点存储
// 存储不可用时返回 error，调用方必须终止本次索引
type CheckpointStore interface {
	// Get 找不到时返回 nil, nil
	Get(ctx context.Context, sourceRoot, filePath string) (*Checkpoint, error)
	Save(ctx context.Context, cp *Checkpoint) error
	UpdateMtime(ctx context.Context, sourceRoot, filePath string, size, mtime int64) error
	Count(ctx context.Context) (int, error)
}

// Embedding 一条消息的向量
type Embedding struct {
	MessageID int64
	Vector    []float32
	Model     string
	CreatedAt int64
}

// EmbeddingStore 消息向量的持久化存储
type EmbeddingStore interface {
	SaveEmbeddings(ctx context.Context, embeddings []*Embedding) error
	// MissingEmbeddings 返回还没有向量且内容足够长的消息，按 ID 升序，从 afterID 之后开始
	// sessionID 为空表示所有会话
	MissingEmbeddings(ctx context.Context, sessionID string, minLength, limit int, afterID int64) ([]*session.Message, error)
	// ScanEmbeddings 遍历满足过滤条件的向量
	ScanEmbeddings(ctx context.Context, filter VectorFilter, fn func(messageID int64, vector []float32) error) error
	CountEmbeddings(ctx context.Context) (int, error)
	// UnmirroredEmbeddings 返回还没有写入 backend 的向量，按消息 ID 升序，从 afterID 之后开始
	// 向量被重新保存后镜像状态清空
	UnmirroredEmbeddings(ctx context.Context, backend string, limit int, afterID int64) ([]VectorRecord, error)
	MarkMirrored(ctx context.Context, backend string, messageIDs []int64) error
}

// LocalVectorBackend 直接读取 embeddings 表的后端，不需要镜像
const LocalVectorBackend = "sqlite"

// VectorRecord 写入向量索引的记录
type VectorRecord struct {
	MessageID int64
	SessionID string
	AgentID   string
	Channel   string
	Timestamp int64
	Vector    []float32
}

// VectorFilter 向量检索过滤条件
type VectorFilter struct {
	AgentID string
	Channel string
	Since   int64 // 毫秒，0 表示不限
}

// VectorHit 向量检索命中
type VectorHit struct {
	MessageID int64
	Score     float64 // 余弦相似度
}

// VectorIndex 语义检索后端
// 没有向量的消息不会出现在结果中
type VectorIndex interface {
	Name() string
	Upsert(ctx context.Context, records []VectorRecord) error
	DeleteSession(ctx context.Context, sessionID string) error
	Search(ctx context.Context, query []float32, filter VectorFilter, limit int) ([]VectorHit, error)
}
