package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/convomemory/recall/internal/infrastructure/config"
	"github.com/convomemory/recall/internal/infrastructure/log"
	"github.com/convomemory/recall/internal/infrastructure/websocket"
	"github.com/convomemory/recall/internal/interfaces/http/handler"
	"github.com/convomemory/recall/internal/interfaces/http/middleware"
	"github.com/convomemory/recall/internal/interfaces/mcp"
	"github.com/gin-gonic/gin"
)

// HTTPServer HTTP 服务器
type HTTPServer struct {
	router   *gin.Engine
	httpPort string
	server   *http.Server
	logger   *slog.Logger
}

// NewServer 创建 HTTP 服务器
func NewServer(
	cfg *config.ServerConfig,
	searchHandler *handler.SearchHandler,
	indexHandler *handler.IndexHandler,
	sessionHandler *handler.SessionHandler,
	statsHandler *handler.StatsHandler,
	hub *websocket.Hub,
	mcpServer *mcp.MCPServer,
) *HTTPServer {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.AccessLog(),
		middleware.EnsureUTF8Body(),
	)

	api := router.Group("/api/v1")
	{
		api.GET("/search", searchHandler.Search)
		api.GET("/stats", statsHandler.Stats)
		api.GET("/sessions/:id", sessionHandler.Get)

		// 索引相关路由
		api.POST("/index", indexHandler.Index)
		api.POST("/jobs/:name/run", indexHandler.RunJob)

		// 索引进度推送
		if hub != nil {
			api.GET("/ws", gin.WrapF(hub.ServeWS))
		}
	}

	// 健康检查（单例锁依赖该端点）
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// MCP SSE 端点
	if mcpServer != nil {
		router.Any("/mcp/sse", gin.WrapH(mcpServer.GetHandler()))
	}

	return &HTTPServer{
		router:   router,
		httpPort: cfg.HTTPPort,
		logger:   log.NewModuleLogger("http", "server"),
	}
}

// Handler 返回路由（测试用）
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// Start 监听配置端口并启动服务器
func (s *HTTPServer) Start() error {
	listener, err := net.Listen("tcp", s.httpPort)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve 在已获取的 listener 上提供服务（单例锁持有的端口）
func (s *HTTPServer) Serve(listener net.Listener) error {
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("HTTP server starting",
		"addr", listener.Addr().String(),
	)

	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 优雅关闭
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Stop 停止服务器
func (s *HTTPServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}
