package application

import (
	"github.com/convomemory/recall/internal/application/indexer"
	"github.com/convomemory/recall/internal/application/search"
	"github.com/google/wire"
)

// ProviderSet Application 层总 ProviderSet
var ProviderSet = wire.NewSet(
	indexer.ProviderSet,
	search.ProviderSet,
)
