package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/convomemory/recall/internal/application/indexer"
	"github.com/convomemory/recall/internal/infrastructure/config"
)

func indexCmd() *cobra.Command {
	var (
		sources       []string
		includeActive bool
		incremental   bool
		embeddings    bool
		jsonOutput    bool
	)
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index session files (full reindex unless --incremental)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, rt, closeFn, err := openRuntime()
			if err != nil {
				return err
			}
			defer closeFn()

			opts := indexer.PassOptions{
				Sources:     buildSources(cfg, sources, includeActive),
				Incremental: incremental,
				Embeddings:  embeddings,
			}
			if len(opts.Sources) == 0 {
				return fmt.Errorf("no source directories configured")
			}

			result, passErr := rt.Indexer.Pass(cmd.Context(), opts)
			if result == nil {
				result = &indexer.PassResult{}
			}
			// 失败时也输出已有的统计，单个会话的失败不影响退出码
			if err := printPassResult(cmd.OutOrStdout(), result, jsonOutput); err != nil {
				return err
			}
			if passErr != nil {
				return &exitError{code: 1, err: passErr}
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&sources, "source", nil, "session directory to index (repeatable, default: configured archive dir)")
	cmd.Flags().BoolVar(&includeActive, "include-active", false, "also index the active sessions dir")
	cmd.Flags().BoolVar(&incremental, "incremental", false, "skip sessions whose checkpoint is unchanged")
	cmd.Flags().BoolVar(&embeddings, "embeddings", false, "generate embeddings and backfill missing ones")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

// buildSources 显式目录优先，否则使用配置的归档目录
func buildSources(cfg *config.Config, dirs []string, includeActive bool) []indexer.Source {
	if len(dirs) == 0 {
		return indexer.SourcesFor(cfg, includeActive)
	}
	sources := make([]indexer.Source, 0, len(dirs)+1)
	for _, d := range dirs {
		sources = append(sources, indexer.Source{Path: config.ExpandPath(d)})
	}
	if includeActive && cfg.ActiveDir() != "" {
		sources = append(sources, indexer.Source{Path: cfg.ActiveDir(), Active: true})
	}
	return sources
}

// printPassResult 输出索引统计，文本格式的每一行都是 "Name: <int>"
func printPassResult(w io.Writer, result *indexer.PassResult, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Fprintf(w, "Indexed: %d\n", result.Indexed)
	fmt.Fprintf(w, "Skipped: %d\n", result.Skipped)
	fmt.Fprintf(w, "Errors: %d\n", result.Errors)
	fmt.Fprintf(w, "Messages: %d\n", result.Messages)
	fmt.Fprintf(w, "Embeddings: %d\n", result.Embeddings)
	if result.Mirrored > 0 {
		fmt.Fprintf(w, "Mirrored: %d\n", result.Mirrored)
	}
	for _, f := range result.Failures {
		fmt.Fprintf(w, "  failed: %s: %s\n", f.Path, f.Error)
	}
	return nil
}
