package search

import (
	"github.com/google/wire"
)

// ProviderSet 查询 ProviderSet
var ProviderSet = wire.NewSet(
	NewFileSearcher,
	NewEngine,
	NewStatsService,
)
