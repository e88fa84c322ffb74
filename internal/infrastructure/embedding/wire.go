package embedding

import (
	"github.com/convomemory/recall/internal/infrastructure/config"
	"github.com/convomemory/recall/internal/infrastructure/log"
	"github.com/convomemory/recall/internal/infrastructure/tokenizer"
	"github.com/google/wire"
)

// ProviderSet Embedding ProviderSet
var ProviderSet = wire.NewSet(
	ProvideProvider,
)

// ProvideProvider 根据配置创建 Provider，没有凭证时返回 nil（只禁用语义功能）
func ProvideProvider(cfg *config.EmbeddingConfig, tok *tokenizer.Tokenizer) Provider {
	if !cfg.Enabled() {
		log.NewModuleLogger("embedding", "provider").Info("No embedding credential configured, semantic features disabled")
		return nil
	}
	return NewClient(cfg.BaseURL, cfg.APIKey, cfg.Model,
		WithBatchSize(cfg.BatchSize),
		WithTimeout(cfg.Timeout),
		WithMaxRetries(cfg.MaxRetries),
		WithRetryDelay(cfg.RetryDelay),
		WithRateLimit(cfg.RequestsPerMinute),
		WithTruncator(tok, cfg.MaxInputTokens),
	)
}
