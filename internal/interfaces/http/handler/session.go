package handler

import (
	"net/http"
	"strconv"

	domainSession "github.com/convomemory/recall/internal/domain/session"
	"github.com/convomemory/recall/internal/interfaces/http/response"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// SessionHandler 会话处理器
type SessionHandler struct {
	sessions domainSession.Repository
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(sessions domainSession.Repository) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// SessionDetail 会话详情
type SessionDetail struct {
	Session  *domainSession.Session   `json:"session"`
	Messages []*domainSession.Message `json:"messages"`
}

// Get 获取会话及其消息（分页）
// @Summary 获取会话详情
// @Tags 会话
// @Produce json
// @Param id path string true "会话 ID"
// @Param page query int false "页码，从 1 开始"
// @Param page_size query int false "每页消息数，默认 100"
// @Success 200 {object} response.ResponseWithPage{data=SessionDetail}
// @Failure 404 {object} response.ErrorResponse
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	id := c.Param("id")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	ctx := c.Request.Context()
	s, err := h.sessions.GetSession(ctx, id)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "failed to load session: "+err.Error())
		return
	}
	if s == nil {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, domainSession.ErrNotFound.Error())
		return
	}

	messages, err := h.sessions.GetMessages(ctx, id)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "failed to load messages: "+err.Error())
		return
	}

	start, end := response.Paginate(len(messages), page, pageSize)
	response.SuccessWithPage(c, SessionDetail{
		Session:  s,
		Messages: messages[start:end],
	}, page, pageSize, len(messages))
}
