package ingest

import (
	"path/filepath"
	"strings"

	"github.com/convomemory/recall/internal/domain/session"
)

// 渠道
const (
	ChannelDirect = "direct"
)

// knownChannels 文件名中可识别的渠道，按优先级排列
var knownChannels = []string{"discord", "slack", "telegram", "cron", "session"}

// channelsWithID 渠道名后面跟随渠道 ID
var channelsWithID = map[string]bool{"discord": true, "slack": true, "telegram": true}

// formatAgents 文件名不含 agent 信息的格式使用的默认 agent
var formatAgents = map[string]string{
	FormatClaude:     "claude",
	FormatCodex:      "codex",
	FormatTranscript: "cursor",
}

// fileMetadata 从文件名解析出的会话元数据
type fileMetadata struct {
	AgentID   string
	Channel   string
	ChannelID string
}

// metadataFromPath 从路径解析 agent 与渠道
//
//	agent-{agent}-{channel}-...    显式前缀
//	{agent}-...-{channel}-{id}-... 第一段为 agent，渠道取第一个已知渠道名
//	<agents>/<agent>/sessions/x    目录名优先作为 agent
func metadataFromPath(path, format string) fileMetadata {
	parts := strings.Split(session.IDFromPath(path), "-")
	meta := fileMetadata{AgentID: "unknown", Channel: ChannelDirect}

	channelAt := -1
	if parts[0] == "agent" && len(parts) >= 2 {
		meta.AgentID = parts[1]
		if len(parts) >= 3 && parts[2] != "" {
			meta.Channel = parts[2]
			channelAt = 2
		}
	} else {
		if parts[0] != "" {
			meta.AgentID = parts[0]
		}
		for _, ch := range knownChannels {
			for i := 1; i < len(parts); i++ {
				if parts[i] == ch {
					meta.Channel = ch
					channelAt = i
					break
				}
			}
			if channelAt >= 0 {
				break
			}
		}
		if agent, ok := formatAgents[format]; ok {
			meta.AgentID = agent
		}
	}

	if channelAt >= 0 && channelsWithID[meta.Channel] {
		for _, p := range parts[channelAt+1:] {
			if isNumeric(p) {
				meta.ChannelID = p
				break
			}
		}
	}

	dir := filepath.Dir(path)
	if filepath.Base(dir) == "sessions" {
		if agent := filepath.Base(filepath.Dir(dir)); agent != "" && agent != "." && agent != string(filepath.Separator) {
			meta.AgentID = agent
		}
	}
	return meta
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
