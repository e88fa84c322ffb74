package vector

import (
	"context"
	"time"

	"github.com/convomemory/recall/internal/domain/index"
	"github.com/convomemory/recall/internal/infrastructure/config"
	"github.com/convomemory/recall/internal/infrastructure/log"
	"github.com/google/wire"
)

// 后端名称
const (
	BackendSQLite  = index.LocalVectorBackend
	BackendChromem = "chromem"
	BackendQdrant  = "qdrant"
)

// ProviderSet 向量检索 ProviderSet
var ProviderSet = wire.NewSet(
	ProvideVectorIndex,
)

// ProvideVectorIndex 按配置选择后端，外部后端不可用时退回 SQLite
func ProvideVectorIndex(cfg *config.Config, store index.EmbeddingStore) index.VectorIndex {
	logger := log.NewModuleLogger("vector", "provider")
	fallback := NewSQLiteIndex(store)

	switch cfg.Vector.Backend {
	case "", BackendSQLite:
		return fallback
	case BackendChromem:
		idx, err := NewChromemIndex(cfg.ChromemPath(), cfg.Vector.Chromem.Collection, cfg.Vector.Chromem.Compress)
		if err != nil {
			logger.Warn("Chromem backend unavailable, using sqlite", "error", err)
			return fallback
		}
		return idx
	case BackendQdrant:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		idx, err := NewQdrantIndex(ctx, &cfg.Vector.Qdrant)
		if err != nil {
			logger.Warn("Qdrant backend unavailable, using sqlite", "error", err)
			return fallback
		}
		return idx
	default:
		logger.Warn("Unknown vector backend, using sqlite", "backend", cfg.Vector.Backend)
		return fallback
	}
}
