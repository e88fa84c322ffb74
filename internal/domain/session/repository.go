package session

import (
	"context"
	"errors"
)

// ErrNotFound 会话不存在
var ErrNotFound = errors.New("session not found")

// AgentCount agent 及其会话数
type AgentCount struct {
	AgentID  string `json:"agent_id"`
	Sessions int    `json:"sessions"`
}

// Stats 索引库统计
type Stats struct {
	Sessions      int          `json:"sessions"`
	Messages      int          `json:"messages"`
	Embeddings    int          `json:"embeddings"`
	Checkpoints   int          `json:"checkpoints"`
	Agents        []AgentCount `json:"agents"`
	LastIndexedAt int64        `json:"last_indexed_at"`
	DBSizeBytes   int64        `json:"db_size_bytes"`
}

// Repository 会话与消息仓库
type Repository interface {
	// ReplaceSession 在一个事务内写入会话并整体替换其消息，返回带 ID 的消息
	ReplaceSession(ctx context.Context, s *Session, messages []*Message) ([]*Message, error)
	// GetSession 找不到时返回 nil, nil
	GetSession(ctx context.Context, id string) (*Session, error)
	// GetMessages 按 ordinal 顺序返回会话全部消息
	GetMessages(ctx context.Context, sessionID string) ([]*Message, error)
	// GetMessagesByIDs 按 ID 批量读取，不存在的 ID 被忽略
	GetMessagesByIDs(ctx context.Context, ids []int64) (map[int64]*Message, error)
	// GetSessions 批量读取会话
	GetSessions(ctx context.Context, ids []string) (map[string]*Session, error)
	// GetContext 返回 ordinal 前后各 size 条消息
	GetContext(ctx context.Context, sessionID string, ordinal, size int) (before, after []*Message, err error)
	// Stats 统计信息
	Stats(ctx context.Context) (*Stats, error)
}
