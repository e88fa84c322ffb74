package handler

import (
	"net/http"

	"github.com/convomemory/recall/internal/application/search"
	"github.com/convomemory/recall/internal/interfaces/http/response"
	"github.com/gin-gonic/gin"
)

// StatsHandler 统计处理器
type StatsHandler struct {
	stats *search.StatsService
}

// NewStatsHandler 创建统计处理器
func NewStatsHandler(stats *search.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// Stats 索引统计
// @Summary 索引统计
// @Tags 统计
// @Produce json
// @Success 200 {object} response.Response{data=search.IndexStats}
// @Failure 500 {object} response.ErrorResponse
// @Router /stats [get]
func (h *StatsHandler) Stats(c *gin.Context) {
	stats, err := h.stats.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, err.Error())
		return
	}
	response.Success(c, stats)
}
