package search

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/convomemory/recall/internal/infrastructure/config"
	"github.com/convomemory/recall/internal/infrastructure/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const (
	fileContextLines  = 2
	fileDedupePrefix  = 100
	fileScorePhrase   = 1.0
	fileScoreAllWords = 0.8
)

// cachedFile 已解析的文件，按 (mtime, size) 校验
type cachedFile struct {
	mtime    int64
	size     int64
	lines    []string
	lower    []string
	sections []string // 每行所属的最近一级标题，非 markdown 为空
}

// FileSearcher 在配置的文本/markdown 目录中按行检索
type FileSearcher struct {
	roots    []config.FileRoot
	patterns []string
	skip     map[string]bool
	cache    *lru.Cache[string, *cachedFile]
	md       goldmark.Markdown
	logger   *slog.Logger
}

// NewFileSearcher 创建文件检索器
func NewFileSearcher(cfg *config.FilesConfig) (*FileSearcher, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = 512
	}
	cache, err := lru.New[string, *cachedFile](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create file cache: %w", err)
	}
	skip := make(map[string]bool, len(cfg.SkipDirs))
	for _, d := range cfg.SkipDirs {
		skip[d] = true
	}
	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = []string{"*.md", "*.txt"}
	}
	roots := make([]config.FileRoot, 0, len(cfg.Roots))
	for _, r := range cfg.Roots {
		if r.Path == "" {
			continue
		}
		roots = append(roots, config.FileRoot{Agent: r.Agent, Path: config.ExpandPath(r.Path)})
	}
	return &FileSearcher{
		roots:    roots,
		patterns: patterns,
		skip:     skip,
		cache:    cache,
		md:       goldmark.New(),
		logger:   log.NewModuleLogger("search", "files"),
	}, nil
}

// Search 返回包含所有查询词的行，按得分、路径、行号排序，按行前缀去重
func (s *FileSearcher) Search(ctx context.Context, query, agent string, limit int) ([]*FileResult, error) {
	words := strings.Fields(strings.ToLower(query))
	results := []*FileResult{}
	if len(words) == 0 {
		return results, nil
	}
	if limit <= 0 {
		limit = 10
	}
	phrase := strings.Join(words, " ")
	terms := queryTerms(query)

	for _, root := range s.roots {
		if agent != "" && root.Agent != agent {
			continue
		}
		if _, err := os.Stat(root.Path); err != nil {
			continue
		}
		err := filepath.WalkDir(root.Path, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// 单个目录不可读时跳过
				if d != nil && d.IsDir() && path != root.Path {
					return filepath.SkipDir
				}
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				if path != root.Path && s.skip[d.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			if !s.matchPattern(d.Name()) {
				return nil
			}
			f, err := s.load(path, d)
			if err != nil {
				s.logger.Debug("Skipping unreadable file", "path", path, "error", err)
				return nil
			}
			results = append(results, s.matchLines(f, root.Agent, path, words, phrase, terms)...)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Line < b.Line
	})

	seen := make(map[string]bool)
	unique := make([]*FileResult, 0, min(limit, len(results)))
	for _, r := range results {
		fp := truncateRunes(strings.TrimSpace(r.Text), fileDedupePrefix)
		if seen[fp] {
			continue
		}
		seen[fp] = true
		unique = append(unique, r)
		if len(unique) >= limit {
			break
		}
	}
	return unique, nil
}

func (s *FileSearcher) matchPattern(name string) bool {
	for _, p := range s.patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

func (s *FileSearcher) matchLines(f *cachedFile, agent, path string, words []string, phrase string, terms [][]rune) []*FileResult {
	var out []*FileResult
	for i, lower := range f.lower {
		if !containsAll(lower, words) {
			continue
		}
		score := fileScoreAllWords
		if strings.Contains(lower, phrase) {
			score = fileScorePhrase
		}
		start := max(0, i-fileContextLines)
		end := min(len(f.lines), i+fileContextLines+1)
		out = append(out, &FileResult{
			Kind:          KindFile,
			Agent:         agent,
			Path:          path,
			Line:          i + 1,
			Text:          f.lines[i],
			Snippet:       snippet(f.lines[i], terms, 300),
			Section:       f.sections[i],
			Score:         score,
			ContextBefore: append([]string(nil), f.lines[start:i]...),
			ContextAfter:  append([]string(nil), f.lines[i+1:end]...),
		})
	}
	return out
}

func containsAll(line string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(line, w) {
			return false
		}
	}
	return true
}

// load 读取文件，缓存命中且 mtime/size 未变时直接返回
func (s *FileSearcher) load(path string, d fs.DirEntry) (*cachedFile, error) {
	info, err := d.Info()
	if err != nil {
		return nil, err
	}
	mtime, size := info.ModTime().UnixNano(), info.Size()
	if f, ok := s.cache.Get(path); ok && f.mtime == mtime && f.size == size {
		return f, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.ToValidUTF8(data, nil)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	f := &cachedFile{
		mtime:    mtime,
		size:     size,
		lines:    make([]string, len(lines)),
		lower:    make([]string, len(lines)),
		sections: make([]string, len(lines)),
	}
	for i, l := range lines {
		l = strings.TrimRight(l, "\r")
		f.lines[i] = l
		f.lower[i] = strings.ToLower(l)
	}
	if strings.EqualFold(filepath.Ext(path), ".md") {
		s.assignSections(data, f)
	}
	s.cache.Add(path, f)
	return f, nil
}

// assignSections 用 markdown AST 找到每行之前最近的标题
func (s *FileSearcher) assignSections(src []byte, f *cachedFile) {
	type heading struct {
		line  int
		title string
	}
	var headings []heading

	doc := s.md.Parser().Parse(text.NewReader(src))
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		if h.Lines().Len() > 0 {
			offset := h.Lines().At(0).Start
			headings = append(headings, heading{
				line:  bytes.Count(src[:offset], []byte("\n")),
				title: nodeText(h, src),
			})
		}
		return ast.WalkSkipChildren, nil
	})

	current := ""
	next := 0
	for i := range f.sections {
		for next < len(headings) && headings[next].line <= i {
			current = headings[next].title
			next++
		}
		f.sections[i] = current
	}
}

// nodeText 拼接节点下所有文本段
func nodeText(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		default:
			b.WriteString(nodeText(c, src))
		}
	}
	return strings.TrimSpace(b.String())
}
