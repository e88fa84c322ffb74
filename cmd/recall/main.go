// recall 命令行：索引会话、检索会话与工作区文件
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/convomemory/recall/internal/infrastructure/config"
	applog "github.com/convomemory/recall/internal/infrastructure/log"
	"github.com/convomemory/recall/internal/wire"
)

// exitError 携带退出码，输出已经打印过
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

var (
	configPath string
	verbose    bool
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "recall",
		Short:         "Index and search agent conversation history",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			applog.Init(applog.NewCLIConfig(verbose))
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default <data dir>/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(indexCmd())
	cmd.AddCommand(searchCmd())
	cmd.AddCommand(statsCmd())
	cmd.AddCommand(configCmd())
	cmd.AddCommand(versionCmd())
	return cmd
}

// openRuntime 加载配置并构造索引与查询组件
func openRuntime() (*config.Config, *wire.Runtime, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	rt, cleanup, err := wire.InitializeRuntime(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open index: %w", err)
	}
	return cfg, rt, func() {
		rt.Close()
		cleanup()
	}, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", ee.err)
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
