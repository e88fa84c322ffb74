package mcp

import (
	"context"
	"fmt"

	domainSession "github.com/convomemory/recall/internal/domain/session"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const defaultSessionMessages = 100

// GetSessionInput 会话读取工具输入
type GetSessionInput struct {
	SessionID string `json:"session_id" jsonschema:"Session ID as returned by search_conversations"`
	Offset    int    `json:"offset,omitempty" jsonschema:"First message ordinal, defaults to 0"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Maximum messages, defaults to 100"`
}

// GetSessionOutput 会话读取工具输出
type GetSessionOutput struct {
	Session  *domainSession.Session   `json:"session" jsonschema:"Session metadata"`
	Messages []*domainSession.Message `json:"messages" jsonschema:"Messages in order"`
	Total    int                      `json:"total" jsonschema:"Total message count of the session"`
}

// getSessionTool 读取一个会话的消息
func (s *MCPServer) getSessionTool(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetSessionInput,
) (*mcp.CallToolResult, GetSessionOutput, error) {
	if input.SessionID == "" {
		return nil, GetSessionOutput{}, fmt.Errorf("session_id is required")
	}
	if input.Offset < 0 {
		return nil, GetSessionOutput{}, fmt.Errorf("offset must not be negative")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultSessionMessages
	}

	sess, err := s.sessions.GetSession(ctx, input.SessionID)
	if err != nil {
		return nil, GetSessionOutput{}, fmt.Errorf("failed to load session: %w", err)
	}
	if sess == nil {
		return nil, GetSessionOutput{}, fmt.Errorf("%w: %s", domainSession.ErrNotFound, input.SessionID)
	}

	messages, err := s.sessions.GetMessages(ctx, input.SessionID)
	if err != nil {
		return nil, GetSessionOutput{}, fmt.Errorf("failed to load messages: %w", err)
	}

	start := min(input.Offset, len(messages))
	end := min(start+limit, len(messages))
	return nil, GetSessionOutput{
		Session:  sess,
		Messages: messages[start:end],
		Total:    len(messages),
	}, nil
}
