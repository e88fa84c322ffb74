package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/convomemory/recall/internal/application/search"
	"github.com/convomemory/recall/internal/infrastructure/log"
	"github.com/convomemory/recall/internal/interfaces/http/response"
	"github.com/gin-gonic/gin"
)

// SearchHandler 查询处理器
type SearchHandler struct {
	engine *search.Engine
	logger *slog.Logger
}

// NewSearchHandler 创建查询处理器
func NewSearchHandler(engine *search.Engine) *SearchHandler {
	return &SearchHandler{
		engine: engine,
		logger: log.NewModuleLogger("http", "search"),
	}
}

// searchQuery 查询参数
type searchQuery struct {
	Q          string  `form:"q"`
	Mode       string  `form:"mode"`
	Semantic   bool    `form:"semantic"`
	Keyword    bool    `form:"keyword"`
	Agent      string  `form:"agent"`
	Channel    string  `form:"channel"`
	FilesOnly  bool    `form:"files_only"`
	ConvosOnly bool    `form:"convos_only"`
	Limit      int     `form:"limit"`
	Days       float64 `form:"days"`
	Context    int     `form:"context"`
}

// Search 检索会话与文件
// @Summary 检索会话与文件
// @Tags 检索
// @Produce json
// @Param q query string true "查询文本"
// @Param mode query string false "auto|keyword|semantic|hybrid"
// @Param agent query string false "agent 过滤"
// @Param files_only query bool false "只检索文件"
// @Param convos_only query bool false "只检索会话"
// @Param limit query int false "结果数量"
// @Param days query number false "只查最近 N 天"
// @Success 200 {object} response.Response{data=search.Response}
// @Failure 400 {object} response.ErrorResponse
// @Router /search [get]
func (h *SearchHandler) Search(c *gin.Context) {
	var q searchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeInvalidParams, "invalid parameters: "+err.Error())
		return
	}

	mode, err := search.ModeFromFlags(q.Mode, q.Semantic, q.Keyword)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeInvalidQuery, err.Error())
		return
	}

	resp, err := h.engine.Search(c.Request.Context(), search.Request{
		Query:      q.Q,
		Mode:       mode,
		AgentID:    q.Agent,
		Channel:    q.Channel,
		Days:       q.Days,
		Limit:      q.Limit,
		Context:    q.Context,
		FilesOnly:  q.FilesOnly,
		ConvosOnly: q.ConvosOnly,
	})
	if err != nil {
		var qe *search.QueryError
		if errors.As(err, &qe) {
			response.Error(c, http.StatusBadRequest, response.CodeInvalidQuery, qe.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "search failed: "+err.Error())
		return
	}

	response.Success(c, resp)
}
