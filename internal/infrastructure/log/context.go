package log

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type ctxKey string

// 上下文键定义
const (
	// RequestContextID HTTP 请求 ID
	RequestContextID ctxKey = "request_id"

	// PassContextID 索引批次 ID
	PassContextID ctxKey = "pass_id"

	// SessionContextID 会话 ID
	SessionContextID ctxKey = "session_id"
)

// WithRequestID 在上下文中添加请求 ID，为空时生成新的
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return context.WithValue(ctx, RequestContextID, requestID)
}

// WithPassID 在上下文中添加索引批次 ID
func WithPassID(ctx context.Context, passID string) context.Context {
	return context.WithValue(ctx, PassContextID, passID)
}

// WithSessionID 在上下文中添加会话 ID
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionContextID, sessionID)
}

// PassIDFromContext 读取索引批次 ID
func PassIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(PassContextID).(string)
	return v
}

// LogCtxFromContext 从上下文中提取日志字段
func LogCtxFromContext(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	for _, key := range []ctxKey{RequestContextID, PassContextID, SessionContextID} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}
	return attrs
}

// FromContext 返回附带上下文字段的 logger
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	attrs := LogCtxFromContext(ctx)
	if len(attrs) == 0 {
		return logger
	}
	args := make([]any, 0, len(attrs))
	for _, a := range attrs {
		args = append(args, a)
	}
	return logger.With(args...)
}
