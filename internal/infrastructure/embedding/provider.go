package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// 错误定义
var (
	// ErrEmptyText 空文本不发送请求
	ErrEmptyText = errors.New("empty text")
	// ErrMalformedResponse 响应与请求不对应
	ErrMalformedResponse = errors.New("malformed embedding response")
)

// Provider 文本向量化能力
// 返回结果与输入一一对应；单条失败不影响同批其他结果
type Provider interface {
	Embed(ctx context.Context, texts []string) *BatchResult
	Model() string
}

// BatchResult 批量向量化结果，len(Vectors) == len(Errors) == 输入条数
type BatchResult struct {
	Vectors [][]float32
	Errors  []error
}

// newBatchResult 创建指定大小的结果
func newBatchResult(n int) *BatchResult {
	return &BatchResult{
		Vectors: make([][]float32, n),
		Errors:  make([]error, n),
	}
}

// Succeeded 成功条数
func (r *BatchResult) Succeeded() int {
	n := 0
	for i := range r.Vectors {
		if r.Errors[i] == nil && r.Vectors[i] != nil {
			n++
		}
	}
	return n
}

// Failed 失败条数
func (r *BatchResult) Failed() int {
	return len(r.Vectors) - r.Succeeded()
}

// FirstError 第一个错误，用于日志
func (r *BatchResult) FirstError() error {
	for _, err := range r.Errors {
		if err != nil {
			return err
		}
	}
	return nil
}

// APIError 服务端返回的非 200 响应
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Body)
}

// Retryable 限流与服务端错误可以重试
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// fatal 凭证错误，后续请求同样会失败
func (e *APIError) fatal() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}
