// Package indexer 增量索引：按检查点跳过未变化的会话，替换变化的会话并补齐向量
package indexer

import (
	"errors"
	"time"
)

// ErrCheckpoint 检查点存储不可用，本次索引必须终止
var ErrCheckpoint = errors.New("checkpoint store unavailable")

// Source 一个待扫描的根目录
type Source struct {
	Path   string `json:"path"`
	Active bool   `json:"active"` // 活跃目录：文件可能仍在增长
}

// PassOptions 一次索引的参数
type PassOptions struct {
	Sources []Source `json:"sources"`
	// Incremental 为 false 时全量重建，不跳过任何会话
	Incremental bool `json:"incremental"`
	// Embeddings 为 true 时为新消息生成向量并补齐历史缺失
	Embeddings bool `json:"embeddings"`
}

// Failure 单个会话的失败记录
type Failure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// PassResult 一次索引的统计
type PassResult struct {
	PassID          string        `json:"pass_id"`
	Indexed         int           `json:"indexed"`
	Skipped         int           `json:"skipped"`
	Errors          int           `json:"errors"`
	Messages        int           `json:"messages"`
	Embeddings      int           `json:"embeddings"`
	EmbeddingErrors int           `json:"embedding_errors"`
	Mirrored        int           `json:"mirrored"` // 补写到向量后端的已存向量
	Duration        time.Duration `json:"duration"`
	Failures        []Failure     `json:"failures,omitempty"`

	// embedFailed 本次已失败的消息，补齐时不再重试
	embedFailed map[int64]bool
}

func (r *PassResult) fail(path string, err error) {
	r.Errors++
	r.Failures = append(r.Failures, Failure{Path: path, Error: err.Error()})
}

// outcome 单个文件的处理结果
type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeIndexed
	outcomeEmpty
)
