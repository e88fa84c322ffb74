package mcp

import (
	"context"

	"github.com/convomemory/recall/internal/application/indexer"
	"github.com/convomemory/recall/internal/application/search"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// IndexStatsInput 统计工具输入（空输入）
type IndexStatsInput struct{}

// IndexSessionsInput 索引工具输入
type IndexSessionsInput struct {
	IncludeActive bool `json:"include_active,omitempty" jsonschema:"Also index sessions that are still in progress"`
	Embeddings    bool `json:"embeddings,omitempty" jsonschema:"Also generate embeddings for new messages"`
}

// getIndexStatsTool 索引统计
func (s *MCPServer) getIndexStatsTool(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input IndexStatsInput,
) (*mcp.CallToolResult, search.IndexStats, error) {
	stats, err := s.stats.Stats(ctx)
	if err != nil {
		return nil, search.IndexStats{}, err
	}
	return nil, *stats, nil
}

// indexSessionsTool 执行一次增量索引
func (s *MCPServer) indexSessionsTool(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input IndexSessionsInput,
) (*mcp.CallToolResult, indexer.PassResult, error) {
	result, err := s.indexer.Pass(ctx, indexer.PassOptions{
		Sources:     indexer.SourcesFor(s.cfg, input.IncludeActive),
		Incremental: true,
		Embeddings:  input.Embeddings,
	})
	if err != nil {
		s.logger.Error("Index pass from MCP failed", "error", err)
		return nil, indexer.PassResult{}, err
	}
	return nil, *result, nil
}
