// Package tokenizer 基于 tiktoken 的 Token 计数与截断
package tokenizer

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// 在包初始化时设置离线加载器，避免运行时下载编码文件
func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// EncodingName embedding 模型使用的编码
const EncodingName = "cl100k_base"

// charsPerToken 编码不可用时的估算比例
const charsPerToken = 4

// Tokenizer Token 计数与截断
type Tokenizer struct {
	encoding *tiktoken.Tiktoken
	mu       sync.Mutex
}

var (
	instance     *Tokenizer
	instanceOnce sync.Once
	instanceErr  error
)

// Get 获取 Tokenizer 单例
func Get() (*Tokenizer, error) {
	instanceOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(EncodingName)
		if err != nil {
			instanceErr = err
			return
		}
		instance = &Tokenizer{encoding: enc}
	})
	if instanceErr != nil {
		return nil, instanceErr
	}
	return instance, nil
}

// ProvideTokenizer 提供 Tokenizer（wire），编码加载失败时退化为按字符估算
func ProvideTokenizer() *Tokenizer {
	tok, err := Get()
	if err != nil {
		return &Tokenizer{}
	}
	return tok
}

// CountTokens 计算文本的 Token 数量
func (t *Tokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if t == nil || t.encoding == nil {
		return (len([]rune(text)) + charsPerToken - 1) / charsPerToken
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.encoding.Encode(text, nil, nil))
}

// Truncate 截断到最多 maxTokens 个 Token，maxTokens <= 0 时不截断
func (t *Tokenizer) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 || text == "" {
		return text
	}
	if t == nil || t.encoding == nil {
		runes := []rune(text)
		if limit := maxTokens * charsPerToken; len(runes) > limit {
			return string(runes[:limit])
		}
		return text
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	tokens := t.encoding.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	// 截断点可能落在多字节字符中间
	return strings.ToValidUTF8(t.encoding.Decode(tokens[:maxTokens]), "")
}
