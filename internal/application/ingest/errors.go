package ingest

import (
	"errors"
	"fmt"
)

// ErrMalformedSession 文件没有任何可解析的行
var ErrMalformedSession = errors.New("malformed session file")

// FileError 单个文件的摄取错误，不影响其他文件
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

func fileError(path string, err error) error {
	return &FileError{Path: path, Err: err}
}
