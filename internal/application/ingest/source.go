package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"github.com/convomemory/recall/internal/domain/session"
)

// skipDirs 遍历时跳过的目录
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
}

// SourceFile 扫描到的会话文件（尚未读取内容）
type SourceFile struct {
	Root   string // 扫描根目录
	Path   string // 绝对路径
	Size   int64
	Mtime  int64 // 纳秒
	Active bool  // 来自活跃目录，文件可能仍在增长
}

// Snapshot 一次读取的文件内容
type Snapshot struct {
	File *SourceFile
	Data []byte
	Hash string // sha256(Data)
}

// Load 读取文件内容并计算哈希
// Size 以实际读到的字节数为准，活跃文件可能在 stat 之后继续增长
func (f *SourceFile) Load() (*Snapshot, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fileError(f.Path, err)
	}
	sum := sha256.Sum256(data)
	f.Size = int64(len(data))
	return &Snapshot{File: f, Data: data, Hash: hex.EncodeToString(sum[:])}, nil
}

// StatFile 为单个文件构造 SourceFile（用于文件监听事件）
func StatFile(root, path string, active bool) (*SourceFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fileError(path, err)
	}
	if info.IsDir() {
		return nil, fileError(path, fmt.Errorf("is a directory"))
	}
	return &SourceFile{
		Root:   root,
		Path:   path,
		Size:   info.Size(),
		Mtime:  info.ModTime().UnixNano(),
		Active: active,
	}, nil
}

// Files 按字典序遍历 root 下的会话文件
// 单个条目出错时产出 FileError 并继续；root 不存在时产出一个错误后结束
func Files(ctx context.Context, root string, active bool) iter.Seq2[*SourceFile, error] {
	return func(yield func(*SourceFile, error) bool) {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			yield(nil, fileError(root, err))
			return
		}
		if _, err := os.Stat(absRoot); err != nil {
			yield(nil, fileError(absRoot, err))
			return
		}

		stop := errors.New("stop")
		walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				if path == absRoot {
					return err
				}
				if !yield(nil, fileError(path, err)) {
					return stop
				}
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if path != absRoot && skipDirs[d.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			if !session.IsSourceFile(path) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				if !yield(nil, fileError(path, err)) {
					return stop
				}
				return nil
			}
			sf := &SourceFile{
				Root:   absRoot,
				Path:   path,
				Size:   info.Size(),
				Mtime:  info.ModTime().UnixNano(),
				Active: active,
			}
			if !yield(sf, nil) {
				return stop
			}
			return nil
		})
		if walkErr != nil && !errors.Is(walkErr, stop) {
			yield(nil, fileError(absRoot, walkErr))
		}
	}
}
