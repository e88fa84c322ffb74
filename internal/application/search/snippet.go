package search

import (
	"sort"
	"strings"
	"unicode"
)

const highlightMark = "**"

// queryTerms 提取高亮用的查询词：小写、去掉首尾标点、去重，长词在前
func queryTerms(query string) [][]rune {
	seen := make(map[string]bool)
	var terms [][]rune
	for _, w := range strings.Fields(query) {
		w = strings.TrimFunc(w, func(r rune) bool { return !isWordRune(r) })
		if w == "" {
			continue
		}
		lower := lowerRunes([]rune(w))
		key := string(lower)
		if seen[key] {
			continue
		}
		seen[key] = true
		terms = append(terms, lower)
	}
	sort.SliceStable(terms, func(i, j int) bool { return len(terms[i]) > len(terms[j]) })
	return terms
}

type span struct {
	start, end int
}

// matchSpans 查找以查询词开头的单词（词干匹配），返回 rune 区间
func matchSpans(lower []rune, terms [][]rune) []span {
	var spans []span
	for i := 0; i < len(lower); {
		if i > 0 && isWordRune(lower[i-1]) {
			i++
			continue
		}
		matched := false
		for _, term := range terms {
			if !hasRunePrefix(lower[i:], term) {
				continue
			}
			end := i + len(term)
			for end < len(lower) && isWordRune(lower[end]) {
				end++
			}
			spans = append(spans, span{start: i, end: end})
			i = end
			matched = true
			break
		}
		if !matched {
			i++
		}
	}
	return spans
}

// snippet 截取第一个命中词附近 length 个字符，并用 ** 包裹命中词
func snippet(content string, terms [][]rune, length int) string {
	runes := []rune(strings.Join(strings.Fields(content), " "))
	if length <= 0 {
		length = 300
	}
	spans := matchSpans(lowerRunes(runes), terms)

	start := 0
	if len(spans) > 0 && len(runes) > length {
		start = spans[0].start - length/4
		if start+length > len(runes) {
			start = len(runes) - length
		}
		if start < 0 {
			start = 0
		}
	}
	end := min(len(runes), start+length)

	var b strings.Builder
	if start > 0 {
		b.WriteString("...")
	}
	cursor := start
	for _, sp := range spans {
		if sp.start < start || sp.end > end {
			continue
		}
		b.WriteString(string(runes[cursor:sp.start]))
		b.WriteString(highlightMark)
		b.WriteString(string(runes[sp.start:sp.end]))
		b.WriteString(highlightMark)
		cursor = sp.end
	}
	b.WriteString(string(runes[cursor:end]))
	if end < len(runes) {
		b.WriteString("...")
	}
	return b.String()
}

// truncateRunes 按字符截断
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func lowerRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func hasRunePrefix(s, prefix []rune) bool {
	if len(prefix) == 0 || len(s) < len(prefix) {
		return false
	}
	for i := range prefix {
		if s[i] != prefix[i] {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
