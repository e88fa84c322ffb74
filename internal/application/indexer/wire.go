package indexer

import (
	"github.com/convomemory/recall/internal/application/ingest"
	"github.com/google/wire"
)

// ProviderSet 索引 ProviderSet
var ProviderSet = wire.NewSet(
	ingest.NewIngestor,
	NewIndexer,
	NewScheduler,
)
