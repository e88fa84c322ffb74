// Package session 定义归一化后的会话与消息模型
// 各类会话文件格式在摄取阶段都被转换为这里的结构
package session

import (
	"strings"
	"time"
)

// Role 消息角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ParseRole 将来源中的角色名归一化，不支持的角色（工具结果等）返回 false
func ParseRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "user", "human":
		return RoleUser, true
	case "assistant", "ai", "model":
		return RoleAssistant, true
	case "system", "developer":
		return RoleSystem, true
	default:
		return "", false
	}
}

// Session 一次会话，对应一个源文件
type Session struct {
	ID           string `json:"id"`                   // 会话 ID（文件名去掉扩展名）
	AgentID      string `json:"agent_id"`             // 来源 agent
	Channel      string `json:"channel"`              // 渠道：discord/slack/telegram/cron/session/direct
	ChannelID    string `json:"channel_id,omitempty"` // 渠道内 ID（可选）
	Format       string `json:"format"`               // 源文件格式
	StartedAt    int64  `json:"started_at"`           // 第一条消息时间（毫秒，0 表示未知）
	EndedAt      int64  `json:"ended_at"`             // 最后一条消息时间（毫秒，0 表示未知）
	SourceFile   string `json:"source_file"`          // 源文件路径
	SourceRoot   string `json:"source_root"`          // 扫描的根目录
	ContentHash  string `json:"content_hash"`         // 文件内容 sha256
	FileSize     int64  `json:"file_size"`
	FileMtime    int64  `json:"file_mtime"` // 纳秒
	MessageCount int    `json:"message_count"`
	Active       bool   `json:"active"` // 来自活跃目录
	IndexedAt    int64  `json:"indexed_at"`
}

// Message 会话中的一条消息
type Message struct {
	ID        int64  `json:"id"` // 存储分配的 ID，入库前为 0
	SessionID string `json:"session_id"`
	Ordinal   int    `json:"ordinal"` // 会话内位置，从 0 开始
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // 毫秒，0 表示未知
}

// Time 返回消息时间，未知时返回零值
func (m *Message) Time() time.Time {
	if m.Timestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(m.Timestamp)
}

// Fingerprint 用于去重的内容指纹：角色 + 前 500 个字符
func (m *Message) Fingerprint() string {
	content := m.Content
	if r := []rune(content); len(r) > 500 {
		content = string(r[:500])
	}
	return string(m.Role) + ":" + content
}

// Span 根据消息计算会话起止时间
func Span(messages []*Message) (start, end int64) {
	for _, m := range messages {
		if m.Timestamp == 0 {
			continue
		}
		if start == 0 || m.Timestamp < start {
			start = m.Timestamp
		}
		if m.Timestamp > end {
			end = m.Timestamp
		}
	}
	return start, end
}
