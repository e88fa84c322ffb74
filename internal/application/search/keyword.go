package search

import (
	"context"
	"fmt"
	"math"
	"strings"

	domainIndex "github.com/convomemory/recall/internal/domain/index"
)

const (
	// literalScore 消息原文包含整个查询
	literalScore = 1.0
	// stemOnlyWeight 存在原文命中时，只靠词干命中的消息降权，排在原文命中之后
	stemOnlyWeight = 0.9
)

// buildMatch 构造 FTS5 MATCH 表达式：每个词加双引号，AND 连接
// 不含任何字母数字的词被丢弃，全部丢弃时返回空字符串
func buildMatch(query string) string {
	var parts []string
	for _, w := range strings.Fields(query) {
		if !strings.ContainsFunc(w, isWordRune) {
			continue
		}
		parts = append(parts, `"`+strings.ReplaceAll(w, `"`, `""`)+`"`)
	}
	return strings.Join(parts, " AND ")
}

// keywordScores bm25 映射到 (0,1)，再按最佳命中归一化
func keywordScores(hits []domainIndex.KeywordHit) []float64 {
	scores := make([]float64, len(hits))
	best := 0.0
	for i, h := range hits {
		r := math.Abs(h.Rank)
		scores[i] = r / (1 + r)
		best = math.Max(best, scores[i])
	}
	for i := range scores {
		if best > 0 {
			scores[i] /= best
		} else {
			scores[i] = 1
		}
	}
	return scores
}

// keyword 全文检索加子串匹配
// 词干匹配可能命中别的消息而漏掉真正包含查询原文的消息，单个词或 FTS 命中不足 limit 时
// 同时做子串匹配，原文命中排在只靠词干命中的消息之前
func (e *Engine) keyword(ctx context.Context, query string, filter domainIndex.MessageFilter, limit int) ([]*candidate, error) {
	var hits []domainIndex.KeywordHit
	if match := buildMatch(query); match != "" {
		var err error
		hits, err = e.searcher.SearchFTS(ctx, match, filter, limit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Warn("FTS query failed, falling back to substring search",
				"match", match,
				"error", err,
			)
			hits = nil
		}
	}

	byID := make(map[int64]*candidate, len(hits))
	out := make([]*candidate, 0, len(hits))
	for i, score := range keywordScores(hits) {
		c := &candidate{msg: hits[i].Message, score: score, match: MatchKeyword}
		byID[c.msg.ID] = c
		out = append(out, c)
	}
	if len(hits) >= limit && len(strings.Fields(query)) > 1 {
		return out, nil
	}

	literal, err := e.searcher.SearchSubstring(ctx, strings.TrimSpace(query), filter, limit)
	if err != nil {
		return nil, fmt.Errorf("substring search failed: %w", err)
	}
	if len(literal) == 0 {
		return out, nil
	}
	for _, c := range out {
		c.score *= stemOnlyWeight
	}
	for _, h := range literal {
		if c, ok := byID[h.Message.ID]; ok {
			c.score = literalScore
			continue
		}
		c := &candidate{msg: h.Message, score: literalScore, match: MatchKeyword}
		byID[c.msg.ID] = c
		out = append(out, c)
	}
	return out, nil
}
