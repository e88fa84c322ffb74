package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	domainIndex "github.com/convomemory/recall/internal/domain/index"
	domainSession "github.com/convomemory/recall/internal/domain/session"
	"github.com/convomemory/recall/internal/infrastructure/config"
	"github.com/convomemory/recall/internal/infrastructure/embedding"
	"github.com/convomemory/recall/internal/infrastructure/log"
	"golang.org/x/sync/errgroup"
)

// contextPreviewLength 上下文消息截断长度
const contextPreviewLength = 200

// Engine 查询引擎
// 查询是只读的，可以与索引并发执行
type Engine struct {
	sessions domainSession.Repository
	searcher domainIndex.MessageSearcher
	vectors  domainIndex.VectorIndex
	provider embedding.Provider
	files    *FileSearcher
	cfg      *config.SearchConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine 创建查询引擎，provider 为 nil 时只支持全文检索
func NewEngine(
	sessions domainSession.Repository,
	searcher domainIndex.MessageSearcher,
	vectors domainIndex.VectorIndex,
	provider embedding.Provider,
	files *FileSearcher,
	cfg *config.SearchConfig,
) *Engine {
	if cfg == nil {
		cfg = &config.NewConfig().Search
	}
	return &Engine{
		sessions: sessions,
		searcher: searcher,
		vectors:  vectors,
		provider: provider,
		files:    files,
		cfg:      cfg,
		logger:   log.NewModuleLogger("search", "engine"),
		now:      time.Now,
	}
}

// HasProvider 是否支持语义检索
func (e *Engine) HasProvider() bool {
	return e.provider != nil
}

// Search 执行查询，会话与文件两路并发
// 参数错误返回 *QueryError，且不返回部分结果
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	started := e.now()
	limit, err := e.validate(&req)
	if err != nil {
		return nil, err
	}

	logger := log.FromContext(ctx, e.logger)
	p := resolvePlan(req.Mode, req.Query, e.provider != nil)
	resp := &Response{
		Query:         req.Query,
		Mode:          p.mode.String(),
		Conversations: []*Result{},
		Files:         []*FileResult{},
	}

	var (
		mu       sync.Mutex
		warnings []string
	)
	warn := func(msg string) {
		mu.Lock()
		warnings = append(warnings, msg)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	if !req.FilesOnly {
		g.Go(func() error {
			results, err := e.searchConversations(gctx, req, p, limit, warn)
			if err != nil {
				return err
			}
			resp.Conversations = results
			return nil
		})
	}
	if !req.ConvosOnly {
		g.Go(func() error {
			if e.files == nil {
				return nil
			}
			results, err := e.files.Search(gctx, req.Query, req.AgentID, limit)
			if err != nil {
				return fmt.Errorf("file search failed: %w", err)
			}
			resp.Files = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("Search failed",
			"query", req.Query,
			"mode", p.mode.String(),
			"error", err,
		)
		return nil, err
	}

	resp.Summary = Summary{
		Mode:          p.mode.String(),
		Conversations: len(resp.Conversations),
		Files:         len(resp.Files),
		Agents:        agentsOf(resp),
		Warnings:      warnings,
		DurationMs:    e.now().Sub(started).Milliseconds(),
	}

	logger.Info("Search completed",
		"query", req.Query,
		"mode", resp.Mode,
		"conversations", resp.Summary.Conversations,
		"files", resp.Summary.Files,
		"duration_ms", resp.Summary.DurationMs,
	)
	return resp, nil
}

// validate 校验请求并返回实际 limit
func (e *Engine) validate(req *Request) (int, error) {
	req.Query = strings.TrimSpace(req.Query)
	switch {
	case req.Query == "":
		return 0, newQueryError("query", "query is empty")
	case req.Mode < ModeAuto || req.Mode > ModeHybrid:
		return 0, newQueryError("mode", "unknown search mode %d", int(req.Mode))
	case req.FilesOnly && req.ConvosOnly:
		return 0, newQueryError("scope", "files-only and convos-only are mutually exclusive")
	case req.FilesOnly && (req.Mode == ModeSemantic || req.Mode == ModeHybrid):
		return 0, newQueryError("mode", "%s mode does not apply to file search", req.Mode)
	case (req.Mode == ModeSemantic || req.Mode == ModeHybrid) && e.provider == nil:
		return 0, &QueryError{Field: "mode", Message: req.Mode.String() + " search requires an embedding provider", Err: ErrNoProvider}
	case req.Limit < 0:
		return 0, newQueryError("limit", "limit must not be negative")
	case req.Days < 0:
		return 0, newQueryError("days", "days must not be negative")
	case req.Context < 0:
		return 0, newQueryError("context", "context must not be negative")
	}

	limit := req.Limit
	if limit == 0 {
		limit = e.cfg.DefaultLimit
	}
	if e.cfg.MaxLimit > 0 && limit > e.cfg.MaxLimit {
		limit = e.cfg.MaxLimit
	}
	if limit <= 0 {
		limit = 10
	}
	return limit, nil
}

// searchConversations 执行会话检索腿并组装结果
func (e *Engine) searchConversations(ctx context.Context, req Request, p plan, limit int, warn func(string)) ([]*Result, error) {
	filter := domainIndex.MessageFilter{AgentID: req.AgentID, Channel: req.Channel}
	if req.Days > 0 {
		filter.Since = e.now().Add(-time.Duration(req.Days * float64(24*time.Hour))).UnixMilli()
	}
	// 多取一些，留给去重
	perLeg := 2 * limit

	var keywordHits, semanticHits []*candidate
	g, gctx := errgroup.WithContext(ctx)
	if p.keyword {
		g.Go(func() error {
			var err error
			keywordHits, err = e.keyword(gctx, req.Query, filter, perLeg)
			return err
		})
	}
	if p.semantic {
		g.Go(func() error {
			var err error
			semanticHits, err = e.semantic(gctx, req.Query, filter, perLeg)
			if err != nil && (p.keyword || p.fallback) && gctx.Err() == nil {
				// 语义腿失败退化为全文结果
				e.logger.Warn("Semantic leg failed, degrading to keyword results", "error", err)
				warn("semantic search unavailable, showing keyword results only: " + err.Error())
				semanticHits = nil
				if p.fallback {
					keywordHits, err = e.keyword(gctx, req.Query, filter, perLeg)
					return err
				}
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cands := merge(keywordHits, semanticHits)
	rank(cands)
	cands = dedupe(cands, limit)
	return e.hydrate(ctx, cands, req)
}

// hydrate 补充会话信息、摘要和上下文
func (e *Engine) hydrate(ctx context.Context, cands []*candidate, req Request) ([]*Result, error) {
	results := make([]*Result, 0, len(cands))
	if len(cands) == 0 {
		return results, nil
	}

	ids := make([]string, 0, len(cands))
	seen := make(map[string]bool)
	for _, c := range cands {
		if !seen[c.msg.SessionID] {
			seen[c.msg.SessionID] = true
			ids = append(ids, c.msg.SessionID)
		}
	}
	sessions, err := e.sessions.GetSessions(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	terms := queryTerms(req.Query)
	for _, c := range cands {
		r := &Result{
			Kind:      KindMessage,
			SessionID: c.msg.SessionID,
			MessageID: c.msg.ID,
			Ordinal:   c.msg.Ordinal,
			Role:      string(c.msg.Role),
			Timestamp: c.msg.Timestamp,
			Content:   c.msg.Content,
			Snippet:   snippet(c.msg.Content, terms, e.cfg.SnippetLength),
			Score:     c.score,
			Match:     c.match,
		}
		if s := sessions[c.msg.SessionID]; s != nil {
			r.AgentID = s.AgentID
			r.Channel = s.Channel
		}
		if req.Context > 0 {
			before, after, err := e.sessions.GetContext(ctx, c.msg.SessionID, c.msg.Ordinal, req.Context)
			if err != nil {
				return nil, fmt.Errorf("failed to load context for %s: %w", c.msg.SessionID, err)
			}
			r.ContextBefore = previews(before)
			r.ContextAfter = previews(after)
		}
		results = append(results, r)
	}
	return results, nil
}

func previews(messages []*domainSession.Message) []string {
	if len(messages) == 0 {
		return nil
	}
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = fmt.Sprintf("[%s] %s", m.Role, truncateRunes(m.Content, contextPreviewLength))
	}
	return out
}

func agentsOf(resp *Response) []string {
	set := make(map[string]bool)
	for _, r := range resp.Conversations {
		if r.AgentID != "" {
			set[r.AgentID] = true
		}
	}
	for _, f := range resp.Files {
		if f.Agent != "" {
			set[f.Agent] = true
		}
	}
	agents := make([]string, 0, len(set))
	for a := range set {
		agents = append(agents, a)
	}
	sort.Strings(agents)
	return agents
}
