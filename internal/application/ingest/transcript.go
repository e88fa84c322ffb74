package ingest

import (
	"strings"
)

// transcriptParser Cursor 纯文本会话解析器
// 状态机：角色行切换当前消息，工具调用/结果块与思考过程被跳过
type transcriptParser struct {
	lines    []string
	messages []*rawMessage

	// 当前消息状态
	currentRole string
	currentText strings.Builder
}

// newTranscriptParser 创建解析器实例
func newTranscriptParser(content string) *transcriptParser {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return &transcriptParser{lines: strings.Split(content, "\n")}
}

// parse 执行解析，返回消息列表
func (p *transcriptParser) parse() []*rawMessage {
	for i := 0; i < len(p.lines); i++ {
		line := p.lines[i]

		// 1. 检测角色切换
		if p.handleRoleSwitch(line) {
			continue
		}

		// 2. 跳过工具调用与工具结果块
		if strings.HasPrefix(line, "[Tool call]") || strings.HasPrefix(line, "[Tool result]") {
			i += p.skipUntilTerminator(i + 1)
			continue
		}

		// 3. 丢弃思考过程
		if strings.HasPrefix(line, "[Thinking]") {
			continue
		}

		// 4. 处理 XML 标签
		if skip, handled := p.handleXMLTags(i); handled {
			i += skip
			continue
		}

		// 5. 累积文本
		p.appendText(line)
	}

	// 保存最后一条消息
	p.saveCurrentMessage()
	return p.messages
}

// handleRoleSwitch 处理角色切换（user:/assistant:）
func (p *transcriptParser) handleRoleSwitch(line string) bool {
	switch strings.TrimSpace(line) {
	case "user:":
		p.saveCurrentMessage()
		p.currentRole = "user"
	case "assistant:":
		p.saveCurrentMessage()
		p.currentRole = "assistant"
	default:
		return false
	}
	return true
}

// isTerminatorLine 检查是否是块结束行
func (p *transcriptParser) isTerminatorLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed == "" ||
		strings.HasPrefix(line, "[Tool call]") ||
		strings.HasPrefix(line, "[Tool result]") ||
		trimmed == "user:" ||
		trimmed == "assistant:"
}

// skipUntilTerminator 跳过直到遇到结束行，返回跳过的行数
// 结束行为空行时一并跳过，其他结束行留给主循环处理
func (p *transcriptParser) skipUntilTerminator(startIndex int) int {
	for j := startIndex; j < len(p.lines); j++ {
		if p.isTerminatorLine(p.lines[j]) {
			if strings.TrimSpace(p.lines[j]) == "" {
				return j - startIndex + 1
			}
			return j - startIndex
		}
	}
	return len(p.lines) - startIndex
}

// handleXMLTags 处理 <user_query>（提取内容）与 <think>（跳过内容）
func (p *transcriptParser) handleXMLTags(lineIndex int) (int, bool) {
	line := p.lines[lineIndex]

	if strings.Contains(line, "<user_query>") {
		content, skip := p.extractTagContent(lineIndex, "<user_query>", "</user_query>")
		if content != "" {
			p.appendText(content)
		}
		return skip, true
	}

	if strings.Contains(line, "<think>") {
		if strings.Contains(line, "</think>") {
			return 0, true
		}
		for j := lineIndex + 1; j < len(p.lines); j++ {
			if strings.Contains(p.lines[j], "</think>") {
				return j - lineIndex, true
			}
		}
		return len(p.lines) - 1 - lineIndex, true
	}

	return 0, false
}

// extractTagContent 提取标签内容，返回内容和需要额外跳过的行数
func (p *transcriptParser) extractTagContent(lineIndex int, openTag, closeTag string) (string, int) {
	line := p.lines[lineIndex]
	contentStart := strings.Index(line, openTag) + len(openTag)

	// 在同一行找到闭合标签
	if end := strings.Index(line[contentStart:], closeTag); end != -1 {
		return strings.TrimSpace(line[contentStart : contentStart+end]), 0
	}

	// 跨行提取
	var content strings.Builder
	content.WriteString(line[contentStart:])
	for j := lineIndex + 1; j < len(p.lines); j++ {
		content.WriteString("\n")
		if idx := strings.Index(p.lines[j], closeTag); idx != -1 {
			content.WriteString(p.lines[j][:idx])
			return strings.TrimSpace(content.String()), j - lineIndex
		}
		content.WriteString(p.lines[j])
	}
	return strings.TrimSpace(content.String()), len(p.lines) - 1 - lineIndex
}

// appendText 累积文本到当前消息，角色出现前的内容被忽略
func (p *transcriptParser) appendText(line string) {
	if p.currentRole == "" {
		return
	}
	if p.currentText.Len() > 0 {
		p.currentText.WriteString("\n")
	}
	p.currentText.WriteString(line)
}

// saveCurrentMessage 保存当前消息
func (p *transcriptParser) saveCurrentMessage() {
	defer p.currentText.Reset()
	if p.currentRole == "" {
		return
	}
	text := strings.TrimSpace(p.currentText.String())
	if text == "" {
		return
	}
	p.messages = append(p.messages, &rawMessage{Role: p.currentRole, Content: text})
}
