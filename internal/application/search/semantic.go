package search

import (
	"context"
	"fmt"

	domainIndex "github.com/convomemory/recall/internal/domain/index"
)

// semantic 向量检索：向量化查询，按余弦相似度降序，低于阈值的丢弃
// 只有存有向量的消息会成为候选
func (e *Engine) semantic(ctx context.Context, query string, filter domainIndex.MessageFilter, limit int) ([]*candidate, error) {
	if e.provider == nil {
		return nil, ErrNoProvider
	}

	res := e.provider.Embed(ctx, []string{query})
	if len(res.Vectors) != 1 {
		return nil, fmt.Errorf("failed to embed query: unexpected result size %d", len(res.Vectors))
	}
	if err := res.Errors[0]; err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	queryVector := res.Vectors[0]

	hits, err := e.vectors.Search(ctx, queryVector, filter.VectorFilter(), limit)
	if err != nil {
		return nil, fmt.Errorf("vector search failed (%s): %w", e.vectors.Name(), err)
	}

	ids := make([]int64, 0, len(hits))
	for _, h := range hits {
		if h.Score < e.cfg.SemanticMinScore {
			continue
		}
		ids = append(ids, h.MessageID)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	messages, err := e.sessions.GetMessagesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	out := make([]*candidate, 0, len(ids))
	for _, h := range hits {
		if h.Score < e.cfg.SemanticMinScore {
			continue
		}
		// 外部向量库可能残留已被重建会话删除的消息
		msg, ok := messages[h.MessageID]
		if !ok {
			continue
		}
		out = append(out, &candidate{msg: msg, score: h.Score, match: MatchSemantic})
	}

	e.logger.Debug("Semantic search completed",
		"backend", e.vectors.Name(),
		"hits", len(hits),
		"kept", len(out),
	)
	return out, nil
}
