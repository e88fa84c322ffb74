package middleware

import (
	"bytes"
	"io"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// maxBodyBytes 索引请求体只包含少量参数
const maxBodyBytes = 1 << 20

// EnsureUTF8Body 将非 UTF-8 请求体（Windows 终端常见的 GBK）转为 UTF-8
// 转换失败时保留原始内容，由后续绑定报错
func EnsureUTF8Body() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.ContentLength == 0 {
			c.Next()
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
		_ = c.Request.Body.Close()
		if err != nil {
			c.Request.Body = io.NopCloser(bytes.NewReader(nil))
			c.Next()
			return
		}

		body = toUTF8(body)
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Request.ContentLength = int64(len(body))
		c.Next()
	}
}

// toUTF8 尝试 GBK 解码，结果仍不是合法 UTF-8 时原样返回
func toUTF8(body []byte) []byte {
	if len(body) == 0 || utf8.Valid(body) {
		return body
	}
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(body), simplifiedchinese.GBK.NewDecoder()))
	if err != nil || !utf8.Valid(decoded) {
		return body
	}
	return decoded
}
