package search

import (
	"strings"
	"testing"

	domainSession "github.com/convomemory/recall/internal/domain/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cand(id int64, session string, ordinal int, ts int64, content string, score float64, match string) *candidate {
	return &candidate{
		msg: &domainSession.Message{
			ID:        id,
			SessionID: session,
			Ordinal:   ordinal,
			Role:      domainSession.RoleUser,
			Content:   content,
			Timestamp: ts,
		},
		score: score,
		match: match,
	}
}

func ids(cands []*candidate) []int64 {
	out := make([]int64, len(cands))
	for i, c := range cands {
		out[i] = c.msg.ID
	}
	return out
}

func TestMerge_KeepsHigherScore(t *testing.T) {
	keyword := []*candidate{
		cand(1, "a", 0, 100, "one", 0.9, MatchKeyword),
		cand(2, "a", 1, 100, "two", 0.4, MatchKeyword),
	}
	semantic := []*candidate{
		cand(2, "a", 1, 100, "two", 0.7, MatchSemantic),
		cand(3, "b", 0, 100, "three", 0.5, MatchSemantic),
	}

	merged := merge(keyword, semantic)
	require.Len(t, merged, 3)
	rank(merged)
	assert.Equal(t, []int64{1, 2, 3}, ids(merged))
	assert.Equal(t, 0.7, merged[1].score)
	assert.Equal(t, MatchBoth, merged[1].match)
	assert.Equal(t, MatchKeyword, merged[0].match)

	// 合并不修改输入
	assert.Equal(t, 0.4, keyword[1].score)
}

func TestRank_TieBreaks(t *testing.T) {
	cands := []*candidate{
		cand(1, "b", 3, 100, "w", 0.5, MatchKeyword),
		cand(2, "a", 3, 100, "x", 0.5, MatchKeyword),
		cand(3, "a", 1, 100, "y", 0.5, MatchKeyword),
		cand(4, "z", 0, 200, "z", 0.5, MatchKeyword),
		cand(5, "z", 0, 50, "v", 0.9, MatchKeyword),
	}
	rank(cands)
	// 得分 > 时间（新在前） > 会话 ID > ordinal
	assert.Equal(t, []int64{5, 4, 3, 2, 1}, ids(cands))
}

func TestDedupe_FingerprintAndLimit(t *testing.T) {
	long := strings.Repeat("a", 500)
	cands := []*candidate{
		cand(1, "a", 0, 100, "same text", 0.9, MatchKeyword),
		cand(2, "b", 0, 100, "same text", 0.8, MatchKeyword),
		cand(3, "c", 0, 100, long+"tail one", 0.7, MatchKeyword),
		cand(4, "d", 0, 100, long+"tail two", 0.6, MatchKeyword),
		cand(5, "e", 0, 100, "other", 0.5, MatchKeyword),
		cand(6, "f", 0, 100, "another", 0.4, MatchKeyword),
	}
	assert.Equal(t, []int64{1, 3, 5}, ids(dedupe(cands, 3)))

	// 角色不同不算重复
	cands[1].msg.Role = domainSession.RoleAssistant
	assert.Equal(t, []int64{1, 2, 3}, ids(dedupe(cands, 3)))
}

func TestSnippet_HighlightsWordPrefixes(t *testing.T) {
	terms := queryTerms("Deploy, the API!")
	got := snippet("Deploying the api.\nRedeploy is separate; API docs", terms, 300)
	assert.Equal(t, "**Deploying** **the** **api**. Redeploy is separate; **API** docs", got)
}

func TestSnippet_WindowAroundFirstMatch(t *testing.T) {
	content := strings.Repeat("lorem ", 100) + "needle here " + strings.Repeat("ipsum ", 100)
	got := snippet(content, queryTerms("needle"), 40)

	assert.True(t, strings.HasPrefix(got, "..."))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Contains(t, got, "**needle**")
	assert.LessOrEqual(t, len([]rune(got)), 40+6+4)
}

func TestSnippet_NoMatchKeepsPrefix(t *testing.T) {
	got := snippet(strings.Repeat("b", 50), queryTerms("zzz"), 10)
	assert.Equal(t, strings.Repeat("b", 10)+"...", got)
}
