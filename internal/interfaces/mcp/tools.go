package mcp

import (
	"context"

	"github.com/convomemory/recall/internal/application/search"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SearchConversationsInput 会话检索工具输入
type SearchConversationsInput struct {
	Query      string  `json:"query" jsonschema:"Keywords, an identifier, or a natural language question"`
	Mode       string  `json:"mode,omitempty" jsonschema:"auto|keyword|semantic|hybrid, defaults to auto"`
	Agent      string  `json:"agent,omitempty" jsonschema:"Only search this agent"`
	Channel    string  `json:"channel,omitempty" jsonschema:"Only search sessions from this channel"`
	Days       float64 `json:"days,omitempty" jsonschema:"Only search messages from the last N days"`
	Limit      int     `json:"limit,omitempty" jsonschema:"Maximum results per kind, default 10"`
	Context    int     `json:"context,omitempty" jsonschema:"Neighbouring messages to include around each hit"`
	FilesOnly  bool    `json:"files_only,omitempty" jsonschema:"Only search workspace files"`
	ConvosOnly bool    `json:"convos_only,omitempty" jsonschema:"Only search conversations"`
}

// SearchFilesInput 文件检索工具输入
type SearchFilesInput struct {
	Query string `json:"query" jsonschema:"Words to look for, every word must appear on the line"`
	Agent string `json:"agent,omitempty" jsonschema:"Only search this agent's workspace"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum results, default 10"`
}

// SearchFilesOutput 文件检索工具输出
type SearchFilesOutput struct {
	Files []*search.FileResult `json:"files" jsonschema:"Matching lines"`
	Total int                  `json:"total" jsonschema:"Number of results"`
}

// searchConversationsTool 会话与文件混合检索
func (s *MCPServer) searchConversationsTool(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SearchConversationsInput,
) (*mcp.CallToolResult, search.Response, error) {
	mode, err := search.ParseMode(input.Mode)
	if err != nil {
		return nil, search.Response{}, err
	}

	resp, err := s.engine.Search(ctx, search.Request{
		Query:      input.Query,
		Mode:       mode,
		AgentID:    input.Agent,
		Channel:    input.Channel,
		Days:       input.Days,
		Limit:      input.Limit,
		Context:    input.Context,
		FilesOnly:  input.FilesOnly,
		ConvosOnly: input.ConvosOnly,
	})
	if err != nil {
		return nil, search.Response{}, err
	}
	return nil, *resp, nil
}

// searchFilesTool 只检索工作区文件
func (s *MCPServer) searchFilesTool(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SearchFilesInput,
) (*mcp.CallToolResult, SearchFilesOutput, error) {
	resp, err := s.engine.Search(ctx, search.Request{
		Query:     input.Query,
		Mode:      search.ModeKeyword,
		AgentID:   input.Agent,
		Limit:     input.Limit,
		FilesOnly: true,
	})
	if err != nil {
		return nil, SearchFilesOutput{}, err
	}
	return nil, SearchFilesOutput{Files: resp.Files, Total: len(resp.Files)}, nil
}
