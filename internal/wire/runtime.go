package wire

import (
	"github.com/convomemory/recall/internal/application/indexer"
	"github.com/convomemory/recall/internal/application/search"
	"github.com/convomemory/recall/internal/domain/events"
)

// Runtime 命令行一次性任务使用的组件
type Runtime struct {
	Indexer *indexer.Indexer
	Engine  *search.Engine
	Stats   *search.StatsService

	eventBus events.EventBus
}

// NewRuntime 创建 Runtime
func NewRuntime(ix *indexer.Indexer, engine *search.Engine, stats *search.StatsService, eventBus events.EventBus) *Runtime {
	return &Runtime{
		Indexer:  ix,
		Engine:   engine,
		Stats:    stats,
		eventBus: eventBus,
	}
}

// Close 等待已发布的进度事件处理完成
func (r *Runtime) Close() {
	if r.eventBus != nil {
		r.eventBus.Close()
	}
}
