// Package ingest 将各种格式的会话文件转换为归一化的会话与消息
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"iter"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/convomemory/recall/internal/domain/session"
	"github.com/convomemory/recall/internal/infrastructure/log"
)

// Ingested 一个文件的摄取结果
type Ingested struct {
	Session      *session.Session
	Messages     []*session.Message
	SkippedLines int // 无法解析的行数
}

// Ingestor 会话文件摄取器
type Ingestor struct {
	logger *slog.Logger
}

// NewIngestor 创建摄取器
func NewIngestor() *Ingestor {
	return &Ingestor{
		logger: log.NewModuleLogger("ingest", "ingestor"),
	}
}

// Ingest 惰性遍历 root 下的全部会话文件
// 输入不变时产出的序列不变；单个文件失败产出 FileError 后继续
func (i *Ingestor) Ingest(ctx context.Context, root string, active bool) iter.Seq2[*Ingested, error] {
	return func(yield func(*Ingested, error) bool) {
		for file, err := range Files(ctx, root, active) {
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			snap, err := file.Load()
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			if !yield(i.Parse(snap)) {
				return
			}
		}
	}
}

// Parse 解析已读取的文件内容
func (i *Ingestor) Parse(snap *Snapshot) (*Ingested, error) {
	file := snap.File

	var (
		raws    []*rawMessage
		format  string
		skipped int
		err     error
	)
	if strings.EqualFold(filepath.Ext(file.Path), ".txt") {
		format = FormatTranscript
		raws = newTranscriptParser(string(snap.Data)).parse()
	} else {
		raws, format, skipped, err = parseJSONL(snap.Data)
		if err != nil {
			return nil, fileError(file.Path, err)
		}
	}

	messages := make([]*session.Message, 0, len(raws))
	sessionID := session.IDFromPath(file.Path)
	for _, raw := range raws {
		role, content, ok := raw.normalize()
		if !ok {
			continue
		}
		ts := raw.Timestamp
		if ts == 0 {
			ts = timestampFromContent(content)
		}
		messages = append(messages, &session.Message{
			SessionID: sessionID,
			Ordinal:   len(messages),
			Role:      role,
			Content:   content,
			Timestamp: ts,
		})
	}

	meta := metadataFromPath(file.Path, format)
	start, end := session.Span(messages)
	sess := &session.Session{
		ID:           sessionID,
		AgentID:      meta.AgentID,
		Channel:      meta.Channel,
		ChannelID:    meta.ChannelID,
		Format:       format,
		StartedAt:    start,
		EndedAt:      end,
		SourceFile:   file.Path,
		SourceRoot:   file.Root,
		ContentHash:  snap.Hash,
		FileSize:     file.Size,
		FileMtime:    file.Mtime,
		MessageCount: len(messages),
		Active:       file.Active,
	}

	if skipped > 0 {
		i.logger.Debug("Skipped unparsable lines",
			"path", file.Path,
			"skipped", skipped,
		)
	}
	return &Ingested{Session: sess, Messages: messages, SkippedLines: skipped}, nil
}

// parseJSONL 逐行解析，格式由第一行可识别的内容决定
// 非空行全部无法解析时返回 ErrMalformedSession
func parseJSONL(data []byte) ([]*rawMessage, string, int, error) {
	var (
		adapter lineAdapter
		pending []*lineFields // 格式确定之前的行
		raws    []*rawMessage
		parsed  int
		skipped int
	)
	for line := range lines(data) {
		var p lineFields
		if err := json.Unmarshal(line, &p); err != nil {
			skipped++
			continue
		}
		parsed++
		if adapter == nil {
			if adapter = sniff(&p); adapter == nil {
				pending = append(pending, &p)
				continue
			}
			for _, prev := range pending {
				if m := adapter.decode(prev); m != nil {
					raws = append(raws, m)
				}
			}
			pending = nil
		}
		if m := adapter.decode(&p); m != nil {
			raws = append(raws, m)
		}
	}

	if parsed == 0 && skipped > 0 {
		return nil, "", skipped, ErrMalformedSession
	}
	if adapter == nil {
		return nil, FormatUnknown, skipped, nil
	}
	return raws, adapter.format(), skipped, nil
}

// lines 遍历非空行
func lines(data []byte) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for len(data) > 0 {
			var line []byte
			if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
				line, data = data[:idx], data[idx+1:]
			} else {
				line, data = data, nil
			}
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			if !yield(line) {
				return
			}
		}
	}
}
