package search

import (
	"fmt"
	"strings"
	"unicode"
)

// Mode 检索模式
type Mode int

const (
	// ModeAuto 按查询形态自动选择
	ModeAuto Mode = iota
	// ModeKeyword 全文检索
	ModeKeyword
	// ModeSemantic 向量检索
	ModeSemantic
	// ModeHybrid 全文 + 向量合并
	ModeHybrid
)

var modeNames = map[Mode]string{
	ModeAuto:     "auto",
	ModeKeyword:  "keyword",
	ModeSemantic: "semantic",
	ModeHybrid:   "hybrid",
}

// String 模式名称
func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode 解析模式名称，空字符串为 auto
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "keyword", "fts":
		return ModeKeyword, nil
	case "semantic", "vector":
		return ModeSemantic, nil
	case "hybrid":
		return ModeHybrid, nil
	default:
		return ModeAuto, newQueryError("mode", "unknown search mode %q", s)
	}
}

// plan 一次查询实际执行的检索腿
type plan struct {
	mode     Mode
	keyword  bool
	semantic bool
	// fallback 语义腿失败时改走全文检索
	fallback bool
}

// resolvePlan 将请求模式解析为执行计划
// auto 模式下没有向量化能力时总是退回全文检索
func resolvePlan(mode Mode, query string, hasProvider bool) plan {
	auto := mode == ModeAuto
	if auto {
		mode = autoMode(query, hasProvider)
	}
	switch mode {
	case ModeSemantic:
		return plan{mode: mode, semantic: true, fallback: auto}
	case ModeHybrid:
		return plan{mode: mode, keyword: true, semantic: true}
	default:
		return plan{mode: ModeKeyword, keyword: true}
	}
}

// queryShape 查询形态
type queryShape int

const (
	shapePhrase queryShape = iota
	shapeIdentifier
	shapeQuestion
)

var interrogatives = map[string]bool{
	"how": true, "what": true, "why": true, "when": true, "where": true,
	"which": true, "who": true, "whom": true, "whose": true,
	"can": true, "could": true, "should": true, "would": true,
	"is": true, "are": true, "does": true, "do": true, "did": true,
}

// autoMode 标识符走全文，问句走语义，其余两路合并；没有 provider 时一律全文
func autoMode(query string, hasProvider bool) Mode {
	shape := shapeOf(query)
	switch {
	case shape == shapeIdentifier || !hasProvider:
		return ModeKeyword
	case shape == shapeQuestion:
		return ModeSemantic
	default:
		return ModeHybrid
	}
}

// shapeOf 标识符类或不超过两个词的查询走全文检索
func shapeOf(query string) queryShape {
	q := strings.TrimSpace(query)
	words := strings.Fields(q)
	if isQuoted(q) || len(words) <= 2 {
		return shapeIdentifier
	}
	for _, w := range words {
		if looksLikeIdentifier(w) {
			return shapeIdentifier
		}
	}
	if strings.HasSuffix(q, "?") || interrogatives[strings.ToLower(words[0])] || len(words) >= 5 {
		return shapeQuestion
	}
	return shapePhrase
}

func isQuoted(q string) bool {
	if len(q) < 2 {
		return false
	}
	first, last := q[0], q[len(q)-1]
	return (first == '"' && last == '"') || (first == '\'' && last == '\'') || (first == '`' && last == '`')
}

func looksLikeIdentifier(w string) bool {
	// 句末标点不算
	w = strings.TrimRight(w, "?!,;.")
	if strings.ContainsAny(w, "_./#@=") || strings.Contains(w, "::") {
		return true
	}
	var letters, digits, upperAfterLower bool
	prevLower := false
	for _, r := range w {
		switch {
		case unicode.IsDigit(r):
			digits = true
		case unicode.IsLetter(r):
			letters = true
			if unicode.IsUpper(r) && prevLower {
				upperAfterLower = true
			}
		}
		prevLower = unicode.IsLower(r)
	}
	return (letters && digits) || upperAfterLower
}

// ModeFromFlags 将命令行/查询参数中的模式开关合并为一个模式
// --semantic 与 --keyword 互斥，开关优先于 mode 字符串
func ModeFromFlags(mode string, semantic, keyword bool) (Mode, error) {
	if semantic && keyword {
		return ModeAuto, newQueryError("mode", "--semantic and --keyword are mutually exclusive")
	}
	switch {
	case semantic:
		return ModeSemantic, nil
	case keyword:
		return ModeKeyword, nil
	default:
		return ParseMode(mode)
	}
}
