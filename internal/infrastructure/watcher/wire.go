package watcher

import (
	"github.com/convomemory/recall/internal/domain/events"
	"github.com/convomemory/recall/internal/infrastructure/config"
	"github.com/google/wire"
)

// ProviderSet 事件与文件监听 ProviderSet
var ProviderSet = wire.NewSet(
	ProvideEventBus,
	ProvideFileWatcher,
)

// ProvideEventBus 提供事件总线实例
func ProvideEventBus() events.EventBus {
	return NewEventBus()
}

// ProvideFileWatcher 提供活跃会话目录监听器
func ProvideFileWatcher(cfg *config.Config, eventBus events.EventBus) (*FileWatcher, error) {
	watchConfig := DefaultWatchConfig()
	watchConfig.Roots = []string{cfg.ActiveDir()}
	if cfg.Watcher.Debounce > 0 {
		watchConfig.DebounceDelay = cfg.Watcher.Debounce
	}
	return NewFileWatcher(watchConfig, eventBus)
}
