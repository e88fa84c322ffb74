package events

import "time"

// IndexProgressEvent 索引进度事件
type IndexProgressEvent struct {
	EventType EventType `json:"type"`
	PassID    string    `json:"pass_id"`
	Source    string    `json:"source,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Messages  int       `json:"messages,omitempty"`
	Indexed   int       `json:"indexed"`
	Skipped   int       `json:"skipped"`
	Errors    int       `json:"errors"`
	Error     string    `json:"error,omitempty"`
	EventTime time.Time `json:"time"`
}

// Type 实现 Event 接口
func (e *IndexProgressEvent) Type() EventType {
	return e.EventType
}

// Timestamp 实现 Event 接口
func (e *IndexProgressEvent) Timestamp() time.Time {
	return e.EventTime
}
