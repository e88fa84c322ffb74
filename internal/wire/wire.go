//go:build wireinject
// +build wireinject

package wire

import (
	"github.com/convomemory/recall/internal/application"
	"github.com/convomemory/recall/internal/infrastructure"
	"github.com/convomemory/recall/internal/infrastructure/config"
	"github.com/convomemory/recall/internal/interfaces"
	"github.com/google/wire"
)

// InitializeAll 初始化所有服务（HTTP + MCP + 后台索引）
func InitializeAll(cfg *config.Config) (*App, func(), error) {
	wire.Build(
		// 按层组合 ProviderSet
		infrastructure.ProviderSet, // 基础设施层
		application.ProviderSet,    // 应用层
		interfaces.ProviderSet,     // 接口层
		NewApp,                     // 组合所有服务的应用结构
	)
	return nil, nil, nil
}

// InitializeRuntime 初始化命令行使用的索引与查询组件（不启动服务）
func InitializeRuntime(cfg *config.Config) (*Runtime, func(), error) {
	wire.Build(
		infrastructure.ProviderSet,
		application.ProviderSet,
		NewRuntime,
	)
	return nil, nil, nil
}
