package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/convomemory/recall/internal/infrastructure/log"
	"golang.org/x/time/rate"
)

// Truncator 按 Token 截断输入
type Truncator interface {
	Truncate(text string, maxTokens int) string
}

// 确保 Client 实现了 Provider 接口
var _ Provider = (*Client)(nil)

// Client Embedding API 客户端（OpenAI 兼容）
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	batchSize  int
	maxRetries int
	timeout    time.Duration
	retryDelay time.Duration
	maxTokens  int
	truncator  Truncator
	limiter    *rate.Limiter
	httpClient *http.Client
	logger     *slog.Logger
}

// Option 客户端选项
type Option func(*Client)

// WithBatchSize 每次请求的最大文本数
func WithBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithTimeout 单次请求超时
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxRetries 单批最多尝试次数
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithRetryDelay 重试基础延迟，每次重试翻倍，负数忽略
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.retryDelay = d
		}
	}
}

// WithRateLimit 每分钟最多请求数，<= 0 表示不限
func WithRateLimit(requestsPerMinute int) Option {
	return func(c *Client) {
		if requestsPerMinute <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1)
	}
}

// WithTruncator 按 Token 截断过长输入
func WithTruncator(t Truncator, maxTokens int) Option {
	return func(c *Client) {
		c.truncator = t
		c.maxTokens = maxTokens
	}
}

// WithHTTPClient 自定义 HTTP 客户端
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient 创建 Embedding 客户端
func NewClient(baseURL, apiKey, model string, opts ...Option) *Client {
	c := &Client{
		// 规范化 baseURL：移除末尾斜杠
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		batchSize:  100,
		maxRetries: 3,
		timeout:    30 * time.Second,
		retryDelay: time.Second,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		httpClient: &http.Client{},
		logger:     log.NewModuleLogger("embedding", "client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model 模型名
func (c *Client) Model() string {
	return c.model
}

// buildEmbeddingURL 构建 Embedding API URL
// 支持多种输入格式，智能拼接 /v1/embeddings 路径
func buildEmbeddingURL(baseURL string) string {
	// 已经是完整路径
	if strings.HasSuffix(baseURL, "/embeddings") {
		return baseURL
	}

	// 以 /v1 结尾，只追加 /embeddings
	if strings.HasSuffix(baseURL, "/v1") {
		return baseURL + "/embeddings"
	}

	return baseURL + "/v1/embeddings"
}

// EmbeddingRequest Embedding 请求
type EmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// EmbeddingResponse Embedding 响应
type EmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// Embed 批量向量化文本
// 按 batchSize 分批请求；整批失败时逐条重试，单条失败只记录在对应位置
func (c *Client) Embed(ctx context.Context, texts []string) *BatchResult {
	result := newBatchResult(len(texts))

	// 预处理：空文本直接失败，过长文本截断
	pending := make([]int, 0, len(texts))
	inputs := make([]string, len(texts))
	for i, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			result.Errors[i] = ErrEmptyText
			continue
		}
		if c.truncator != nil && c.maxTokens > 0 {
			text = c.truncator.Truncate(text, c.maxTokens)
		}
		inputs[i] = text
		pending = append(pending, i)
	}

	for start := 0; start < len(pending); start += c.batchSize {
		end := min(start+c.batchSize, len(pending))
		batch := pending[start:end]

		batchInputs := make([]string, len(batch))
		for j, idx := range batch {
			batchInputs[j] = inputs[idx]
		}

		vectors, err := c.embedWithRetry(ctx, batchInputs)
		if err == nil {
			for j, idx := range batch {
				result.Vectors[idx] = vectors[j]
			}
			continue
		}

		// 上下文取消或凭证错误：剩余条目全部记为失败
		if ctx.Err() != nil || isFatal(err) {
			c.logger.Error("Embedding aborted", "remaining", len(pending)-start, "error", err)
			for _, idx := range pending[start:] {
				result.Errors[idx] = err
			}
			break
		}

		if len(batch) == 1 {
			result.Errors[batch[0]] = err
			continue
		}

		c.logger.Warn("Batch embedding failed, isolating items",
			"batch_size", len(batch),
			"error", err,
		)
		for _, idx := range batch {
			v, itemErr := c.embedWithRetry(ctx, []string{inputs[idx]})
			if itemErr != nil {
				result.Errors[idx] = itemErr
				continue
			}
			result.Vectors[idx] = v[0]
		}
	}

	if failed := result.Failed(); failed > 0 {
		c.logger.Warn("Some texts were not embedded",
			"total", len(texts),
			"failed", failed,
			"first_error", result.FirstError(),
		)
	}
	return result
}

// embedWithRetry 带重试的单批请求
func (c *Client) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		vectors, err := c.doRequest(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		if !c.retryable(ctx, err) || attempt == c.maxRetries-1 {
			break
		}

		c.logger.Warn("Embedding request failed, retrying",
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryDelay << attempt): // 指数退避
		}
	}
	return nil, lastErr
}

// retryable 判断错误是否值得重试
func (c *Client) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	if errors.Is(err, ErrMalformedResponse) {
		return false
	}
	// 网络错误与单次请求超时
	return true
}

// isFatal 凭证错误
func isFatal(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.fatal()
}

// doRequest 发送一次请求
func (c *Client) doRequest(ctx context.Context, texts []string) ([][]float32, error) {
	jsonData, err := json.Marshal(EmbeddingRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := buildEmbeddingURL(c.baseURL)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug("Sending embedding request",
		"url", url,
		"batch_size", len(texts),
		"model", c.model,
		"api_key", maskKey(c.apiKey),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var embeddingResp EmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(embeddingResp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", ErrMalformedResponse, len(texts), len(embeddingResp.Data))
	}
	vectors := make([][]float32, len(texts))
	for _, data := range embeddingResp.Data {
		if data.Index < 0 || data.Index >= len(texts) || len(data.Embedding) == 0 {
			return nil, fmt.Errorf("%w: bad item at index %d", ErrMalformedResponse, data.Index)
		}
		vectors[data.Index] = data.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("%w: missing vector %d", ErrMalformedResponse, i)
		}
	}
	return vectors, nil
}

// Dimension 获取向量维度（通过测试请求）
func (c *Client) Dimension(ctx context.Context) (int, error) {
	result := c.Embed(ctx, []string{"test"})
	if err := result.Errors[0]; err != nil {
		return 0, err
	}
	return len(result.Vectors[0]), nil
}

// TestConnection 测试连接
func (c *Client) TestConnection(ctx context.Context) error {
	c.logger.Info("Testing embedding API connection",
		"base_url", c.baseURL,
		"model", c.model,
	)

	dimension, err := c.Dimension(ctx)
	if err != nil {
		c.logger.Error("Embedding API connection test failed", "error", err)
		return err
	}

	c.logger.Info("Embedding API connection test successful", "vector_dimension", dimension)
	return nil
}

// maskKey API Key 脱敏
func maskKey(key string) string {
	if len(key) > 8 {
		return key[:4] + "..." + key[len(key)-4:]
	}
	return "***"
}
