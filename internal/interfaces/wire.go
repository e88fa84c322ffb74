package interfaces

import (
	"github.com/convomemory/recall/internal/interfaces/http"
	"github.com/convomemory/recall/internal/interfaces/mcp"
	"github.com/google/wire"
)

// ProviderSet Interfaces 层总 ProviderSet
var ProviderSet = wire.NewSet(
	http.ProviderSet,
	mcp.ProviderSet,
)
