package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/convomemory/recall/internal/application/indexer"
	"github.com/convomemory/recall/internal/infrastructure/config"
	"github.com/convomemory/recall/internal/infrastructure/log"
	"github.com/convomemory/recall/internal/interfaces/http/response"
	"github.com/gin-gonic/gin"
)

// IndexHandler 索引处理器
type IndexHandler struct {
	indexer   *indexer.Indexer
	scheduler *indexer.Scheduler
	cfg       *config.Config
	running   atomic.Bool
	logger    *slog.Logger
}

// NewIndexHandler 创建索引处理器
func NewIndexHandler(ix *indexer.Indexer, scheduler *indexer.Scheduler, cfg *config.Config) *IndexHandler {
	return &IndexHandler{
		indexer:   ix,
		scheduler: scheduler,
		cfg:       cfg,
		logger:    log.NewModuleLogger("http", "index"),
	}
}

// IndexRequest 索引请求
type IndexRequest struct {
	Sources       []string `json:"sources,omitempty"` // 为空时使用配置的归档目录
	IncludeActive bool     `json:"include_active"`
	Incremental   bool     `json:"incremental"`
	Embeddings    bool     `json:"embeddings"`
}

// Index 执行一次索引
// @Summary 执行一次索引
// @Tags 索引
// @Accept json
// @Produce json
// @Param request body IndexRequest true "索引参数"
// @Success 200 {object} response.Response{data=indexer.PassResult}
// @Failure 409 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /index [post]
func (h *IndexHandler) Index(c *gin.Context) {
	var req IndexRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeInvalidParams, "invalid request body: "+err.Error())
			return
		}
	}

	// HTTP 触发的索引不叠加执行
	if !h.running.CompareAndSwap(false, true) {
		response.Error(c, http.StatusConflict, response.CodeIndexFailed, "an index pass is already running")
		return
	}
	defer h.running.Store(false)

	opts := indexer.PassOptions{
		Incremental: req.Incremental,
		Embeddings:  req.Embeddings,
	}
	if len(req.Sources) > 0 {
		for _, s := range req.Sources {
			opts.Sources = append(opts.Sources, indexer.Source{Path: config.ExpandPath(s)})
		}
		if req.IncludeActive && h.cfg.ActiveDir() != "" {
			opts.Sources = append(opts.Sources, indexer.Source{Path: h.cfg.ActiveDir(), Active: true})
		}
	} else {
		opts.Sources = indexer.SourcesFor(h.cfg, req.IncludeActive)
	}

	result, err := h.indexer.Pass(c.Request.Context(), opts)
	if err != nil {
		h.logger.Error("Index pass failed", "error", err)
		response.ErrorWithData(c, http.StatusInternalServerError, response.CodeIndexFailed, "index pass failed: "+err.Error(), result)
		return
	}
	response.Success(c, result)
}

// RunJob 立即执行一个定时任务
// @Summary 立即执行定时索引任务
// @Tags 索引
// @Produce json
// @Param name path string true "任务名"
// @Success 200 {object} response.Response{data=indexer.PassResult}
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /jobs/{name}/run [post]
func (h *IndexHandler) RunJob(c *gin.Context) {
	name := c.Param("name")
	result, err := h.scheduler.RunJob(c.Request.Context(), name)
	switch {
	case errors.Is(err, indexer.ErrUnknownJob):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	case errors.Is(err, indexer.ErrJobRunning):
		response.Error(c, http.StatusConflict, response.CodeIndexFailed, err.Error())
	case err != nil:
		h.logger.Error("Scheduled job failed", "job", name, "error", err)
		response.ErrorWithData(c, http.StatusInternalServerError, response.CodeIndexFailed, "job failed: "+err.Error(), result)
	default:
		response.Success(c, result)
	}
}
