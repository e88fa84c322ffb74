package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"
)

// JSONHandler JSON 格式日志处理器，每条记录一行
type JSONHandler struct {
	opts  *slog.HandlerOptions
	mu    *sync.Mutex
	enc   *json.Encoder
	attrs []slog.Attr
}

// NewJSONHandler 创建 JSON 处理器
func NewJSONHandler(out io.Writer, opts *slog.HandlerOptions) *JSONHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &JSONHandler{
		opts: opts,
		mu:   &sync.Mutex{},
		enc:  json.NewEncoder(out),
	}
}

// Enabled 检查日志级别是否启用
func (h *JSONHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.opts.Level == nil {
		return level >= slog.LevelInfo
	}
	return level >= h.opts.Level.Level()
}

// Handle 处理日志记录
func (h *JSONHandler) Handle(_ context.Context, r slog.Record) error {
	obj := make(map[string]any, 4+len(h.attrs)+r.NumAttrs())
	obj["time"] = r.Time.Format(time.RFC3339Nano)
	obj["level"] = r.Level.String()
	obj["msg"] = r.Message

	put := func(a slog.Attr) bool {
		v := a.Value.Resolve()
		if err, ok := v.Any().(error); ok {
			obj[a.Key] = err.Error()
			return true
		}
		obj[a.Key] = v.Any()
		return true
	}
	for _, a := range h.attrs {
		put(a)
	}
	r.Attrs(put)

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enc.Encode(obj)
}

// WithAttrs 返回带有额外属性的处理器
func (h *JSONHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &JSONHandler{opts: h.opts, mu: h.mu, enc: h.enc, attrs: merged}
}

// WithGroup 分组在 JSON 输出中展平
func (h *JSONHandler) WithGroup(string) slog.Handler {
	return h
}
