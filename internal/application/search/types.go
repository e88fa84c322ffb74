package search

import (
	domainSession "github.com/convomemory/recall/internal/domain/session"
)

// 结果来源类型
const (
	KindMessage = "message"
	KindFile    = "file"
)

// 命中来源
const (
	MatchKeyword  = "keyword"
	MatchSemantic = "semantic"
	MatchBoth     = "both"
)

// Request 查询请求
type Request struct {
	Query      string  `json:"query"`
	Mode       Mode    `json:"-"`
	AgentID    string  `json:"agent,omitempty"`
	Channel    string  `json:"channel,omitempty"`
	Days       float64 `json:"days,omitempty"`    // 只查最近 N 天，0 表示不限
	Limit      int     `json:"limit,omitempty"`   // 0 使用默认值
	Context    int     `json:"context,omitempty"` // 每条命中前后附带的消息数
	FilesOnly  bool    `json:"files_only,omitempty"`
	ConvosOnly bool    `json:"convos_only,omitempty"`
}

// Result 会话消息命中
type Result struct {
	Kind          string   `json:"kind"`
	SessionID     string   `json:"session_id"`
	AgentID       string   `json:"agent_id"`
	Channel       string   `json:"channel"`
	MessageID     int64    `json:"message_id"`
	Ordinal       int      `json:"ordinal"`
	Role          string   `json:"role"`
	Timestamp     int64    `json:"timestamp,omitempty"` // 毫秒
	Content       string   `json:"content"`
	Snippet       string   `json:"snippet"`
	Score         float64  `json:"score"`
	Match         string   `json:"match"`
	ContextBefore []string `json:"context_before,omitempty"`
	ContextAfter  []string `json:"context_after,omitempty"`
}

// FileResult 文件行命中
type FileResult struct {
	Kind          string   `json:"kind"`
	Agent         string   `json:"agent"`
	Path          string   `json:"path"`
	Line          int      `json:"line"` // 从 1 开始
	Text          string   `json:"text"`
	Snippet       string   `json:"snippet"`
	Section       string   `json:"section,omitempty"`
	Score         float64  `json:"score"`
	ContextBefore []string `json:"context_before,omitempty"`
	ContextAfter  []string `json:"context_after,omitempty"`
}

// Summary 查询摘要
type Summary struct {
	Mode          string   `json:"mode"`
	Conversations int      `json:"conversations"`
	Files         int      `json:"files"`
	Agents        []string `json:"agents"`
	Warnings      []string `json:"warnings,omitempty"`
	DurationMs    int64    `json:"duration_ms"`
}

// Response 查询结果
type Response struct {
	Query         string        `json:"query"`
	Mode          string        `json:"mode"`
	Conversations []*Result     `json:"conversations"`
	Files         []*FileResult `json:"files"`
	Summary       Summary       `json:"summary"`
}

// candidate 合并排序前的消息命中
type candidate struct {
	msg   *domainSession.Message
	score float64
	match string
}
