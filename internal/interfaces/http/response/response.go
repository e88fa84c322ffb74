package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 业务错误码
const (
	CodeOK            = 0
	CodeInvalidParams = 40001
	CodeInvalidQuery  = 40002
	CodeNotFound      = 40401
	CodeInternal      = 50001
	CodeIndexFailed   = 50002
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Detail  string      `json:"detail,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeOK,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, httpCode int, errCode int, message string) {
	c.JSON(httpCode, ErrorResponse{
		Code:    errCode,
		Message: message,
	})
}

// ErrorWithData 错误响应，同时带回已有的部分数据（如中止的索引统计）
func ErrorWithData(c *gin.Context, httpCode int, errCode int, message string, data interface{}) {
	c.JSON(httpCode, ErrorResponse{
		Code:    errCode,
		Message: message,
		Data:    data,
	})
}

// PageInfo 分页信息
type PageInfo struct {
	Page     int `json:"page"`      // 当前页码（从 1 开始）
	PageSize int `json:"page_size"` // 每页条数
	Total    int `json:"total"`
	Pages    int `json:"pages"`
}

// ResponseWithPage 带分页的响应结构
type ResponseWithPage struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Page    *PageInfo   `json:"page,omitempty"`
}

// SuccessWithPage 成功响应（带分页）
func SuccessWithPage(c *gin.Context, data interface{}, page, pageSize, total int) {
	pages := 0
	if pageSize > 0 {
		pages = (total + pageSize - 1) / pageSize
	}
	c.JSON(http.StatusOK, ResponseWithPage{
		Code:    CodeOK,
		Message: "success",
		Data:    data,
		Page: &PageInfo{
			Page:     page,
			PageSize: pageSize,
			Total:    total,
			Pages:    pages,
		},
	})
}

// Paginate 计算切片分页区间，page 从 1 开始
func Paginate(total, page, pageSize int) (start, end int) {
	if page < 1 {
		page = 1
	}
	start = (page - 1) * pageSize
	if start > total {
		start = total
	}
	end = min(start+pageSize, total)
	return start, end
}
