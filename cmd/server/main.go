// @title recall Daemon API
// @version 1.0
// @description 会话索引与检索守护进程 API
// @host localhost:8765
// @BasePath /api/v1
// @schemes http
package main

import (
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/convomemory/recall/internal/infrastructure/config"
	applog "github.com/convomemory/recall/internal/infrastructure/log"
	"github.com/convomemory/recall/internal/infrastructure/singleton"
	"github.com/convomemory/recall/internal/wire"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default <data dir>/config.yaml)")
	flag.Parse()

	// 初始化日志系统
	applog.Init(nil)
	logger := applog.GetLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// 单例锁：持有端口直到进程退出，HTTP 服务器直接复用该 listener
	listener, err := singleton.Acquire(cfg.Server.HTTPPort)
	if errors.Is(err, singleton.ErrAlreadyRunning) {
		logger.Info("Another instance is already running, exiting", "addr", cfg.Server.HTTPPort)
		os.Exit(0)
	}
	if err != nil {
		logger.Error("Failed to acquire instance lock", "error", err)
		os.Exit(1)
	}

	// Wire 生成的初始化函数
	app, cleanup, err := wire.InitializeAll(cfg)
	if err != nil {
		_ = listener.Close()
		logger.Error("Failed to initialize application",
			"error", err,
		)
		os.Exit(1)
	}
	defer cleanup()

	if err := app.Start(listener); err != nil {
		logger.Error("Failed to start application",
			"error", err,
		)
		os.Exit(1)
	}

	// 优雅关闭
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down application...")
	if err := app.Stop(); err != nil {
		logger.Error("Error during application shutdown",
			"error", err,
		)
	}
	logger.Info("Application stopped")
}
