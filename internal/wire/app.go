package wire

import (
	"log/slog"
	"net"

	"github.com/convomemory/recall/internal/application/indexer"
	"github.com/convomemory/recall/internal/domain/events"
	"github.com/convomemory/recall/internal/infrastructure/config"
	applog "github.com/convomemory/recall/internal/infrastructure/log"
	"github.com/convomemory/recall/internal/infrastructure/watcher"
	"github.com/convomemory/recall/internal/infrastructure/websocket"
	"github.com/convomemory/recall/internal/interfaces"
)

// App 应用主结构，组合所有服务
type App struct {
	HTTPServer *interfaces.HTTPServer
	MCPServer  *interfaces.MCPServer
	cfg        *config.Config
	wsHub      *websocket.Hub
	indexer    *indexer.Indexer
	scheduler  *indexer.Scheduler
	logger     *slog.Logger

	// 文件监听相关
	eventBus    events.EventBus
	fileWatcher *watcher.FileWatcher
	unsubscribe []func()
}

// NewApp 创建应用实例
func NewApp(
	cfg *config.Config,
	httpServer *interfaces.HTTPServer,
	mcpServer *interfaces.MCPServer,
	wsHub *websocket.Hub,
	ix *indexer.Indexer,
	scheduler *indexer.Scheduler,
	eventBus events.EventBus,
	fileWatcher *watcher.FileWatcher,
) *App {
	return &App{
		HTTPServer:  httpServer,
		MCPServer:   mcpServer,
		cfg:         cfg,
		wsHub:       wsHub,
		indexer:     ix,
		scheduler:   scheduler,
		logger:      applog.NewModuleLogger("app", "main"),
		eventBus:    eventBus,
		fileWatcher: fileWatcher,
	}
}

// Start 启动所有服务，HTTP 服务器在 listener 上提供服务
func (a *App) Start(listener net.Listener) error {
	a.logger.Info("Starting recall daemon")

	a.setupEventSubscribers()

	// 启动 WebSocket Hub
	a.wsHub.Start()

	// 启动定时索引
	if a.cfg.Schedule.Enabled {
		if err := a.scheduler.Start(); err != nil {
			a.logger.Error("Failed to start index scheduler",
				"error", err,
			)
		}
	}

	// 监听活跃会话目录
	if a.cfg.Watcher.Enabled && a.fileWatcher != nil {
		if err := a.fileWatcher.Start(); err != nil {
			a.logger.Error("Failed to start file watcher",
				"error", err,
			)
		} else {
			a.logger.Info("File watcher started", "dir", a.cfg.ActiveDir())
		}
	}

	// 启动 HTTP 服务器（goroutine）
	go func() {
		if err := a.HTTPServer.Serve(listener); err != nil {
			a.logger.Error("HTTP server stopped with error",
				"error", err,
			)
		}
	}()

	// MCP 服务器通过 HTTP Handler 提供服务，已注册 /mcp/sse 端点
	if err := a.MCPServer.Start(); err != nil {
		return err
	}

	a.logger.Info("Recall daemon started", "addr", listener.Addr().String())
	return nil
}

// setupEventSubscribers 注册事件订阅者
func (a *App) setupEventSubscribers() {
	if a.eventBus == nil {
		return
	}

	// 活跃会话文件变化后增量索引该文件
	a.unsubscribe = append(a.unsubscribe, a.eventBus.SubscribeMultiple(
		[]events.EventType{
			events.SessionFileCreated,
			events.SessionFileModified,
		},
		a.indexer,
	))

	// 索引进度推送给 WebSocket 客户端
	a.unsubscribe = append(a.unsubscribe, a.eventBus.SubscribeMultiple(
		[]events.EventType{
			events.IndexPassStarted,
			events.IndexSessionIndexed,
			events.IndexSessionFailed,
			events.IndexPassFinished,
		},
		a.wsHub,
	))
	a.logger.Info("Event subscribers registered")
}

// Stop 停止所有服务
func (a *App) Stop() error {
	a.logger.Info("Stopping recall daemon")

	// 先停止事件来源
	if a.fileWatcher != nil {
		a.fileWatcher.Stop()
	}
	if err := a.scheduler.Stop(); err != nil {
		a.logger.Error("Failed to stop index scheduler",
			"error", err,
		)
	}

	for _, unsubscribe := range a.unsubscribe {
		unsubscribe()
	}
	if a.eventBus != nil {
		a.eventBus.Close()
	}

	if err := a.HTTPServer.Stop(); err != nil {
		a.logger.Error("Failed to stop HTTP server",
			"error", err,
		)
		return err
	}
	if err := a.MCPServer.Stop(); err != nil {
		return err
	}
	a.wsHub.Stop()

	a.logger.Info("Recall daemon stopped")
	return nil
}
