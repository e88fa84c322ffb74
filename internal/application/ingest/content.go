package ingest

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// contentPart 多段内容中的一段
type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// textPartTypes 视为正文的片段类型
var textPartTypes = map[string]bool{
	"text":        true,
	"input_text":  true,
	"output_text": true,
}

// extractText 从字符串或片段数组中提取正文
// 工具调用、工具结果、思考过程等非正文片段被丢弃
func extractText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return strings.TrimSpace(str)
	}
	var parts []contentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if !textPartTypes[p.Type] {
			continue
		}
		if t := strings.TrimSpace(p.Text); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, "\n")
}

// isToolResultOnly 内容只由工具结果组成
func isToolResultOnly(raw json.RawMessage) bool {
	var parts []contentPart
	if err := json.Unmarshal(raw, &parts); err != nil || len(parts) == 0 {
		return false
	}
	for _, p := range parts {
		if p.Type != "tool_result" {
			return false
		}
	}
	return true
}

// timestampLayouts 支持的时间字符串格式，无时区时按 UTC
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseTimestamp 解析 ISO-8601 字符串或数字时间戳，返回毫秒，失败返回 0
// 数字大于 1e12 视为毫秒，否则为秒
func parseTimestamp(raw json.RawMessage) int64 {
	if len(raw) == 0 || string(raw) == "null" {
		return 0
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return parseTimeString(str)
	}
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return epochToMillis(num)
	}
	return 0
}

func parseTimeString(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli()
		}
	}
	if num, err := strconv.ParseFloat(s, 64); err == nil {
		return epochToMillis(num)
	}
	return 0
}

func epochToMillis(num float64) int64 {
	if num <= 0 {
		return 0
	}
	if num > 1e12 {
		return int64(num)
	}
	return int64(num * 1000)
}

// contentTimeRe 消息正文中的时间前缀，如 "[2026-02-06 10:25 GMT+11]"
var contentTimeRe = regexp.MustCompile(`\[(\d{4}-\d{2}-\d{2})\s+(\d{2}:\d{2})(?:\s+GMT([+-]\d{1,2}))?`)

// timestampFromContent 从正文前缀中提取时间，没有时区时按 UTC
func timestampFromContent(content string) int64 {
	m := contentTimeRe.FindStringSubmatch(content)
	if m == nil {
		return 0
	}
	loc := time.UTC
	if m[3] != "" {
		if hours, err := strconv.Atoi(m[3]); err == nil {
			loc = time.FixedZone("GMT"+m[3], hours*3600)
		}
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", m[1]+" "+m[2], loc)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}
