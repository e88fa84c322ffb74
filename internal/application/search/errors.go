package search

import (
	"errors"
	"fmt"
)

// ErrNoProvider 没有配置向量化能力
var ErrNoProvider = errors.New("no embedding provider configured")

// QueryError 非法的查询参数组合，在执行任何检索之前返回
type QueryError struct {
	Field   string
	Message string
	Err     error
}

func (e *QueryError) Error() string {
	if e.Field == "" {
		return "invalid query: " + e.Message
	}
	return fmt.Sprintf("invalid query (%s): %s", e.Field, e.Message)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

func newQueryError(field, format string, args ...any) *QueryError {
	return &QueryError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsQueryError 判断是否为查询参数错误
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}
