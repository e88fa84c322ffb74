package infrastructure

import (
	"github.com/convomemory/recall/internal/infrastructure/config"
	"github.com/convomemory/recall/internal/infrastructure/embedding"
	"github.com/convomemory/recall/internal/infrastructure/storage"
	"github.com/convomemory/recall/internal/infrastructure/tokenizer"
	"github.com/convomemory/recall/internal/infrastructure/vector"
	"github.com/convomemory/recall/internal/infrastructure/watcher"
	"github.com/convomemory/recall/internal/infrastructure/websocket"
	"github.com/google/wire"
)

// ProviderSet Infrastructure 层总 ProviderSet
var ProviderSet = wire.NewSet(
	config.ProviderSet,
	storage.ProviderSet,
	tokenizer.ProviderSet,
	embedding.ProviderSet,
	vector.ProviderSet,
	watcher.ProviderSet,
	websocket.ProviderSet,
)
