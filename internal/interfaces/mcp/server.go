package mcp

import (
	"log/slog"
	"net/http"

	"github.com/convomemory/recall/internal/application/indexer"
	"github.com/convomemory/recall/internal/application/search"
	domainSession "github.com/convomemory/recall/internal/domain/session"
	"github.com/convomemory/recall/internal/infrastructure/config"
	"github.com/convomemory/recall/internal/infrastructure/log"
	"github.com/convomemory/recall/internal/version"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPServer MCP 服务器，把检索能力以工具形式暴露给 agent
type MCPServer struct {
	server   *mcp.Server
	handler  http.Handler
	engine   *search.Engine
	stats    *search.StatsService
	sessions domainSession.Repository
	indexer  *indexer.Indexer
	cfg      *config.Config
	logger   *slog.Logger
}

// NewServer 创建 MCP 服务器
func NewServer(
	engine *search.Engine,
	stats *search.StatsService,
	sessions domainSession.Repository,
	ix *indexer.Indexer,
	cfg *config.Config,
) *MCPServer {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "recall",
			Version: version.Version,
		},
		nil, // 使用默认能力
	)

	s := &MCPServer{
		server:   server,
		engine:   engine,
		stats:    stats,
		sessions: sessions,
		indexer:  ix,
		cfg:      cfg,
		logger:   log.NewModuleLogger("mcp", "server"),
	}

	mcp.AddTool(server, &mcp.Tool{
		Name: "search_conversations",
		Description: `Search indexed agent conversations and workspace memory files.

Use this tool when you need to:
- Recall what was said or decided in an earlier conversation
- Find when something was discussed, and by which agent
- Look up notes kept in workspace markdown files

Parameters:
- query (string, required): Keywords, an identifier, or a natural language question
- mode (string, optional): auto|keyword|semantic|hybrid, defaults to auto
- agent (string, optional): Only search this agent's sessions and files
- channel (string, optional): Only search sessions from this channel
- days (number, optional): Only search messages from the last N days
- limit (int, optional): Maximum results per kind (default 10, max 100)
- context (int, optional): Number of neighbouring messages to include around each hit
- files_only / convos_only (bool, optional): Restrict to one kind of result

Returns: conversations, files, and a summary with the resolved mode and any warnings.`,
	}, s.searchConversationsTool)

	mcp.AddTool(server, &mcp.Tool{
		Name: "search_files",
		Description: `Search workspace memory files (markdown and text) for lines containing every query word.
Parameters:
- query (string, required): Words to look for
- agent (string, optional): Only search this agent's workspace
- limit (int, optional): Maximum results (default 10)

Returns: matching lines with file path, line number, enclosing section heading, and surrounding lines.`,
	}, s.searchFilesTool)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_session",
		Description: "Read the messages of one indexed session in order. Parameters: session_id (string, required); offset (int, optional) - first message ordinal, defaults to 0; limit (int, optional) - maximum messages, defaults to 100. Returns: session metadata, messages, and total message count.",
	}, s.getSessionTool)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_index_stats",
		Description: "Get statistics of the conversation index: session, message and embedding counts, agents, database size, vector backend, and whether semantic search is available. No parameters required.",
	}, s.getIndexStatsTool)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_sessions",
		Description: "Run an incremental index pass over the configured session directories so recent conversations become searchable. Parameters: include_active (bool, optional) - also index sessions that are still in progress; embeddings (bool, optional) - also generate embeddings. Returns: indexed, skipped and failed counts.",
	}, s.indexSessionsTool)

	s.handler = mcp.NewSSEHandler(
		func(r *http.Request) *mcp.Server {
			return server
		},
		nil,
	)
	return s
}

// GetHandler 获取 HTTP Handler（挂载到 HTTP 服务器）
func (s *MCPServer) GetHandler() http.Handler {
	return s.handler
}

// Start 启动服务器
// MCP 服务通过 HTTP Handler 提供，生命周期由 HTTP 服务器管理
func (s *MCPServer) Start() error {
	s.logger.Info("MCP server ready", "transport", "sse")
	return nil
}

// Stop 停止服务器
func (s *MCPServer) Stop() error {
	return nil
}
