package handler

import "github.com/google/wire"

// ProviderSet Handler ProviderSet
var ProviderSet = wire.NewSet(
	NewSearchHandler,
	NewIndexHandler,
	NewSessionHandler,
	NewStatsHandler,
)
