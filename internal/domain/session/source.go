package session

import (
	"path/filepath"
	"strings"
)

// TranscriptDirName Cursor 纯文本会话所在目录名
const TranscriptDirName = "agent-transcripts"

// IsSourceFile 判断路径是否为可摄取的会话文件
// .jsonl 在任意位置都算；.txt 只在 agent-transcripts 目录下才算
func IsSourceFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl":
		return true
	case ".txt":
		return filepath.Base(filepath.Dir(path)) == TranscriptDirName
	default:
		return false
	}
}

// IDFromPath 会话 ID 为文件名去掉扩展名
func IDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
