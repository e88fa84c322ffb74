package indexer

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	domainIndex "github.com/convomemory/recall/internal/domain/index"
	domainSession "github.com/convomemory/recall/internal/domain/session"
)

// eligible 内容足够长才值得向量化
func (ix *Indexer) eligible(m *domainSession.Message) bool {
	return utf8.RuneCountInString(strings.TrimSpace(m.Content)) >= ix.minLength
}

// embedMessages 为消息生成并保存向量，统计写入 result，返回成功数
// 失败的消息保持无向量状态，由之后的索引补齐
func (ix *Indexer) embedMessages(ctx context.Context, sessions map[string]*domainSession.Session, messages []*domainSession.Message, result *PassResult) int {
	candidates := make([]*domainSession.Message, 0, len(messages))
	for _, m := range messages {
		if ix.eligible(m) && !result.embedFailed[m.ID] {
			candidates = append(candidates, m)
		}
	}

	embedded := 0
	for start := 0; start < len(candidates); start += ix.batchSize {
		if ctx.Err() != nil {
			result.EmbeddingErrors += len(candidates) - start
			break
		}
		batch := candidates[start:min(start+ix.batchSize, len(candidates))]
		ok, failedIDs := ix.embedBatch(ctx, sessions, batch)
		embedded += ok
		result.EmbeddingErrors += len(failedIDs)
		if len(failedIDs) > 0 && result.embedFailed == nil {
			result.embedFailed = make(map[int64]bool)
		}
		for _, id := range failedIDs {
			result.embedFailed[id] = true
		}
	}
	result.Embeddings += embedded
	return embedded
}

// embedBatch 向量化一批消息并写入存储与向量后端，返回成功数与失败的消息 ID
func (ix *Indexer) embedBatch(ctx context.Context, sessions map[string]*domainSession.Session, batch []*domainSession.Message) (int, []int64) {
	texts := make([]string, len(batch))
	for i, m := range batch {
		texts[i] = m.Content
	}
	result := ix.provider.Embed(ctx, texts)

	now := time.Now().UnixMilli()
	rows := make([]*domainIndex.Embedding, 0, len(batch))
	records := make([]domainIndex.VectorRecord, 0, len(batch))
	var failed []int64
	for i, m := range batch {
		if result.Errors[i] != nil || len(result.Vectors[i]) == 0 {
			failed = append(failed, m.ID)
			continue
		}
		rows = append(rows, &domainIndex.Embedding{
			MessageID: m.ID,
			Vector:    result.Vectors[i],
			Model:     ix.provider.Model(),
			CreatedAt: now,
		})
		rec := domainIndex.VectorRecord{
			MessageID: m.ID,
			SessionID: m.SessionID,
			Timestamp: m.Timestamp,
			Vector:    result.Vectors[i],
		}
		if s := sessions[m.SessionID]; s != nil {
			rec.AgentID, rec.Channel = s.AgentID, s.Channel
		}
		records = append(records, rec)
	}
	if len(rows) == 0 {
		return 0, failed
	}

	if err := ix.embeddings.SaveEmbeddings(ctx, rows); err != nil {
		ix.logger.Warn("Failed to save embeddings", "count", len(rows), "error", err)
		ids := make([]int64, len(batch))
		for i, m := range batch {
			ids[i] = m.ID
		}
		return 0, ids
	}
	_ = ix.mirror(ctx, records)
	return len(rows), failed
}

// mirrorsVectors 后端是否维护独立于 embeddings 表的副本
func (ix *Indexer) mirrorsVectors() bool {
	return ix.vectors.Name() != domainIndex.LocalVectorBackend
}

// mirror 写入向量后端并记录镜像状态，失败的记录留给 syncMirror 重试
func (ix *Indexer) mirror(ctx context.Context, records []domainIndex.VectorRecord) error {
	if !ix.mirrorsVectors() || len(records) == 0 {
		return nil
	}
	backend := ix.vectors.Name()
	if err := ix.vectors.Upsert(ctx, records); err != nil {
		ix.logger.Warn("Failed to mirror vectors", "backend", backend, "count", len(records), "error", err)
		return err
	}
	ids := make([]int64, len(records))
	for i, r := range records {
		ids[i] = r.MessageID
	}
	if err := ix.embeddings.MarkMirrored(ctx, backend, ids); err != nil {
		ix.logger.Warn("Failed to record mirror state", "backend", backend, "count", len(ids), "error", err)
		return err
	}
	return nil
}

// syncMirror 把已保存但尚未写入向量后端的向量补写过去
// 覆盖之前写入失败的批次和切换后端之前保存的向量；后端不可用时停止，留到下次
func (ix *Indexer) syncMirror(ctx context.Context, result *PassResult) error {
	if !ix.mirrorsVectors() {
		return nil
	}
	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pending, err := ix.embeddings.UnmirroredEmbeddings(ctx, ix.vectors.Name(), ix.batchSize, afterID)
		if err != nil {
			return fmt.Errorf("failed to list unmirrored embeddings: %w", err)
		}
		if len(pending) == 0 {
			break
		}
		afterID = pending[len(pending)-1].MessageID
		if err := ix.mirror(ctx, pending); err != nil {
			break
		}
		result.Mirrored += len(pending)
	}
	if result.Mirrored > 0 {
		ix.logger.Info("Mirrored stored embeddings", "backend", ix.vectors.Name(), "count", result.Mirrored)
	}
	return nil
}

// backfill 为历史消息补齐向量（之前的轻量索引没有生成向量）
func (ix *Indexer) backfill(ctx context.Context, result *PassResult) error {
	var afterID int64
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		missing, err := ix.embeddings.MissingEmbeddings(ctx, "", ix.minLength, ix.batchSize, afterID)
		if err != nil {
			return fmt.Errorf("failed to list messages missing embeddings: %w", err)
		}
		if len(missing) == 0 {
			break
		}
		afterID = missing[len(missing)-1].ID

		ids := make([]string, 0, len(missing))
		seen := make(map[string]bool)
		for _, m := range missing {
			if !seen[m.SessionID] {
				seen[m.SessionID] = true
				ids = append(ids, m.SessionID)
			}
		}
		sessions, err := ix.sessions.GetSessions(ctx, ids)
		if err != nil {
			return fmt.Errorf("failed to load sessions: %w", err)
		}

		total += ix.embedMessages(ctx, sessions, missing, result)
	}
	if total > 0 {
		ix.logger.Info("Backfilled embeddings", "count", total)
	}
	return nil
}
