package events

import "time"

// SessionFileEvent 会话文件变更事件
// 活跃会话目录下的 .jsonl / .txt 文件变化时触发
type SessionFileEvent struct {
	// EventType 事件类型（created/modified/deleted）
	EventType EventType
	// SessionID 会话 ID（文件名去掉扩展名）
	SessionID string
	// Root 被监听的根目录
	Root string
	// FilePath 文件完整路径
	FilePath string
	// ModTime 文件最后修改时间
	ModTime time.Time
	// FileSize 文件大小（字节）
	FileSize int64
	// EventTime 事件发生时间
	EventTime time.Time
}

// Type 实现 Event 接口
func (e *SessionFileEvent) Type() EventType {
	return e.EventType
}

// Timestamp 实现 Event 接口
func (e *SessionFileEvent) Timestamp() time.Time {
	return e.EventTime
}
