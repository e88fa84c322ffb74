package index

import (
	"context"

	"github.com/convomemory/recall/internal/domain/session"
)

// MessageFilter 消息检索过滤条件
type MessageFilter struct {
	AgentID string
	Channel string
	Since   int64 // 毫秒，0 表示不限
}

// VectorFilter 转换为向量检索过滤条件
func (f MessageFilter) VectorFilter() VectorFilter {
	return VectorFilter{AgentID: f.AgentID, Channel: f.Channel, Since: f.Since}
}

// KeywordHit 全文检索命中
type KeywordHit struct {
	Message *session.Message
	// Rank bm25 得分，越小越相关；子串回退检索为 0
	Rank float64
}

// MessageSearcher 全文检索
type MessageSearcher interface {
	// SearchFTS 执行 FTS5 MATCH 查询，按 bm25 排序
	SearchFTS(ctx context.Context, match string, filter MessageFilter, limit int) ([]KeywordHit, error)
	// SearchSubstring 大小写不敏感的子串匹配，按时间倒序
	SearchSubstring(ctx context.Context, needle string, filter MessageFilter, limit int) ([]KeywordHit, error)
}
