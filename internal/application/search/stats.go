package search

import (
	"context"
	"fmt"
	"log/slog"

	domainIndex "github.com/convomemory/recall/internal/domain/index"
	domainSession "github.com/convomemory/recall/internal/domain/session"
	"github.com/convomemory/recall/internal/infrastructure/embedding"
	"github.com/convomemory/recall/internal/infrastructure/log"
)

// IndexStats 索引统计
type IndexStats struct {
	*domainSession.Stats
	VectorBackend   string `json:"vector_backend"`
	SemanticEnabled bool   `json:"semantic_enabled"`
	EmbeddingModel  string `json:"embedding_model,omitempty"`
}

// StatsService 统计服务
type StatsService struct {
	sessions    domainSession.Repository
	checkpoints domainIndex.CheckpointStore
	vectors     domainIndex.VectorIndex
	provider    embedding.Provider
	logger      *slog.Logger
}

// NewStatsService 创建统计服务
func NewStatsService(
	sessions domainSession.Repository,
	checkpoints domainIndex.CheckpointStore,
	vectors domainIndex.VectorIndex,
	provider embedding.Provider,
) *StatsService {
	return &StatsService{
		sessions:    sessions,
		checkpoints: checkpoints,
		vectors:     vectors,
		provider:    provider,
		logger:      log.NewModuleLogger("search", "stats"),
	}
}

// Stats 返回会话、消息、向量、agent 分布等统计
func (s *StatsService) Stats(ctx context.Context) (*IndexStats, error) {
	st, err := s.sessions.Stats(ctx)
	if err != nil {
		s.logger.Error("Failed to read index stats", "error", err)
		return nil, fmt.Errorf("failed to read index stats: %w", err)
	}
	if s.checkpoints != nil {
		n, err := s.checkpoints.Count(ctx)
		if err != nil {
			s.logger.Error("Failed to count checkpoints", "error", err)
			return nil, fmt.Errorf("failed to read index stats: %w", err)
		}
		st.Checkpoints = n
	}
	out := &IndexStats{Stats: st}
	if s.vectors != nil {
		out.VectorBackend = s.vectors.Name()
	}
	if s.provider != nil {
		out.SemanticEnabled = true
		out.EmbeddingModel = s.provider.Model()
	}
	return out, nil
}
