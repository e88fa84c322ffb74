package search

import (
	"sort"
)

// merge 按消息 ID 合并两路结果，同一消息保留较高得分
func merge(keyword, semantic []*candidate) []*candidate {
	byID := make(map[int64]*candidate, len(keyword)+len(semantic))
	out := make([]*candidate, 0, len(keyword)+len(semantic))
	for _, list := range [][]*candidate{keyword, semantic} {
		for _, c := range list {
			existing, ok := byID[c.msg.ID]
			if !ok {
				cp := *c
				byID[c.msg.ID] = &cp
				out = append(out, &cp)
				continue
			}
			if existing.match != c.match {
				existing.match = MatchBoth
			}
			if c.score > existing.score {
				existing.score = c.score
			}
		}
	}
	return out
}

// rank 排序：得分降序，时间降序，会话 ID 升序，ordinal 升序
func rank(cands []*candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.msg.Timestamp != b.msg.Timestamp {
			return a.msg.Timestamp > b.msg.Timestamp
		}
		if a.msg.SessionID != b.msg.SessionID {
			return a.msg.SessionID < b.msg.SessionID
		}
		return a.msg.Ordinal < b.msg.Ordinal
	})
}

// dedupe 同一内容出现在多个会话快照中时只保留排在最前的一条
func dedupe(cands []*candidate, limit int) []*candidate {
	seen := make(map[string]bool, len(cands))
	out := make([]*candidate, 0, min(len(cands), limit))
	for _, c := range cands {
		fp := c.msg.Fingerprint()
		if seen[fp] {
			continue
		}
		seen[fp] = true
		out = append(out, c)
		if len(out) >= limit {
			break
		}
	}
	return out
}
