package storage

import "github.com/google/wire"

// ProviderSet Storage 基础设施层 ProviderSet
var ProviderSet = wire.NewSet(
	ProvideDB,                  // 提供数据库连接
	NewSessionRepository,       // 会话与消息仓储
	NewCheckpointRepository,    // 索引检查点仓储
	NewEmbeddingRepository,     // 向量仓储
	NewMessageSearchRepository, // 全文检索
)
