package ingest

import (
	"encoding/json"
	"strings"

	"github.com/convomemory/recall/internal/domain/session"
)

// 源文件格式
const (
	FormatOpenClaw   = "openclaw"
	FormatLegacy     = "legacy"
	FormatClaude     = "claude"
	FormatCodex      = "codex"
	FormatTranscript = "transcript"
	FormatUnknown    = "unknown"
)

// rawMessage 格式适配器产出的消息，角色尚未归一化
type rawMessage struct {
	Role      string
	Content   string
	Timestamp int64
}

// lineFields 用于嗅探格式与解析的通用行结构
type lineFields struct {
	Type      string          `json:"type"`
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
	Message   json.RawMessage `json:"message"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// lineAdapter JSONL 格式适配器
type lineAdapter interface {
	format() string
	// detect 判断该行是否能确定格式
	detect(p *lineFields) bool
	// decode 解析一行，非消息行返回 nil
	decode(p *lineFields) *rawMessage
}

// adapters 嗅探顺序
var adapters = []lineAdapter{
	openClawAdapter{},
	claudeAdapter{},
	codexAdapter{},
	legacyAdapter{},
}

// sniff 选择第一个能识别该行的适配器
func sniff(p *lineFields) lineAdapter {
	for _, a := range adapters {
		if a.detect(p) {
			return a
		}
	}
	return nil
}

// innerMessage message 字段
type innerMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// openClawAdapter {"type":"message","message":{"role","content"},"timestamp"}
type openClawAdapter struct{}

func (openClawAdapter) format() string { return FormatOpenClaw }

func (openClawAdapter) detect(p *lineFields) bool {
	return (p.Type == "message" && len(p.Message) > 0) || p.Type == "session"
}

func (openClawAdapter) decode(p *lineFields) *rawMessage {
	if p.Type != "message" {
		return nil
	}
	var msg innerMessage
	if err := json.Unmarshal(p.Message, &msg); err != nil {
		return nil
	}
	return &rawMessage{
		Role:      msg.Role,
		Content:   extractText(msg.Content),
		Timestamp: parseTimestamp(p.Timestamp),
	}
}

// legacyAdapter {"role","content","timestamp"}
type legacyAdapter struct{}

func (legacyAdapter) format() string { return FormatLegacy }

func (legacyAdapter) detect(p *lineFields) bool {
	return p.Type == "" && p.Role != "" && len(p.Content) > 0
}

func (legacyAdapter) decode(p *lineFields) *rawMessage {
	if p.Type != "" || p.Role == "" {
		return nil
	}
	return &rawMessage{
		Role:      p.Role,
		Content:   extractText(p.Content),
		Timestamp: parseTimestamp(p.Timestamp),
	}
}

// claudeAdapter {"type":"user"|"assistant","message":{...},"timestamp"}
type claudeAdapter struct{}

func (claudeAdapter) format() string { return FormatClaude }

func (claudeAdapter) detect(p *lineFields) bool {
	return (p.Type == "user" || p.Type == "assistant") && len(p.Message) > 0
}

func (claudeAdapter) decode(p *lineFields) *rawMessage {
	if p.Type != "user" && p.Type != "assistant" {
		return nil
	}
	var msg innerMessage
	if err := json.Unmarshal(p.Message, &msg); err != nil {
		return nil
	}
	if isToolResultOnly(msg.Content) {
		return nil
	}
	text := extractText(msg.Content)
	if isClaudeSystemContent(text) {
		return nil
	}
	role := msg.Role
	if role == "" {
		role = p.Type
	}
	return &rawMessage{Role: role, Content: text, Timestamp: parseTimestamp(p.Timestamp)}
}

// isClaudeSystemContent 客户端自动生成的内容
func isClaudeSystemContent(text string) bool {
	return strings.HasPrefix(text, "<local-command-") ||
		strings.HasPrefix(text, "<command-name>") ||
		strings.Contains(text, "<system-reminder>")
}

// codexAdapter {"type":"response_item","payload":{"type":"message","role","content"}}
type codexAdapter struct{}

func (codexAdapter) format() string { return FormatCodex }

func (codexAdapter) detect(p *lineFields) bool {
	return p.Type == "response_item" || p.Type == "session_meta"
}

func (codexAdapter) decode(p *lineFields) *rawMessage {
	if p.Type != "response_item" {
		return nil
	}
	var payload struct {
		Type    string          `json:"type"`
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(p.Payload, &payload); err != nil || payload.Type != "message" {
		return nil
	}
	text := extractText(payload.Content)
	if payload.Role == "user" && isCodexSystemContent(text) {
		return nil
	}
	return &rawMessage{Role: payload.Role, Content: text, Timestamp: parseTimestamp(p.Timestamp)}
}

// isCodexSystemContent 注入的环境上下文
func isCodexSystemContent(text string) bool {
	return strings.Contains(text, "<environment_context>") ||
		strings.Contains(text, "<permissions")
}

// normalize 归一化角色并过滤空内容，不支持的角色返回 false
func (m *rawMessage) normalize() (session.Role, string, bool) {
	role, ok := session.ParseRole(m.Role)
	if !ok {
		return "", "", false
	}
	content := strings.TrimSpace(m.Content)
	if content == "" {
		return "", "", false
	}
	return role, content, true
}
