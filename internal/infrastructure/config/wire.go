package config

import "github.com/google/wire"

// ProviderSet 配置 ProviderSet
var ProviderSet = wire.NewSet(
	NewDatabaseConfig,
	NewServerConfig,
	NewEmbeddingConfig,
	NewSearchConfig,
	NewFilesConfig,
	NewWebSocketConfig,
)
