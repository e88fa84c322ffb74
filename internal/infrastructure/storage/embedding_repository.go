package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	domainIndex "github.com/convomemory/recall/internal/domain/index"
	domainSession "github.com/convomemory/recall/internal/domain/session"
)

// 确保 EmbeddingRepositoryImpl 实现了 domainIndex.EmbeddingStore 接口
var _ domainIndex.EmbeddingStore = (*EmbeddingRepositoryImpl)(nil)

// EmbeddingRepositoryImpl 消息向量仓库实现
type EmbeddingRepositoryImpl struct {
	db *sql.DB
}

// NewEmbeddingRepository 创建向量仓库实例
func NewEmbeddingRepository(db *sql.DB) domainIndex.EmbeddingStore {
	return &EmbeddingRepositoryImpl{db: db}
}

// SaveEmbeddings 批量保存向量
// 消息若已在重新索引中被删除，对应向量会被静默丢弃
func (r *EmbeddingRepositoryImpl) SaveEmbeddings(ctx context.Context, embeddings []*domainIndex.Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO embeddings (message_id, vector, dim, model, created_at)
		SELECT ?, ?, ?, ?, ? WHERE EXISTS (SELECT 1 FROM messages WHERE id = ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare embedding insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for _, e := range embeddings {
		created := e.CreatedAt
		if created == 0 {
			created = now
		}
		if _, err := stmt.ExecContext(ctx, e.MessageID, EncodeVector(e.Vector), len(e.Vector), e.Model, created, e.MessageID); err != nil {
			return fmt.Errorf("failed to save embedding for message %d: %w", e.MessageID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit embeddings: %w", err)
	}
	return nil
}

// MissingEmbeddings 返回还没有向量且内容足够长的消息
func (r *EmbeddingRepositoryImpl) MissingEmbeddings(ctx context.Context, sessionID string, minLength, limit int, afterID int64) ([]*domainSession.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		LEFT JOIN embeddings e ON e.message_id = m.id
		WHERE e.message_id IS NULL AND length(trim(m.content)) >= ? AND m.id > ?`
	args := []any{minLength, afterID}
	if sessionID != "" {
		query += ` AND m.session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY m.id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query missing embeddings: %w", err)
	}
	return scanMessages(rows)
}

// ScanEmbeddings 遍历满足过滤条件的向量
func (r *EmbeddingRepositoryImpl) ScanEmbeddings(ctx context.Context, filter domainIndex.VectorFilter, fn func(messageID int64, vector []float32) error) error {
	query := `
		SELECT e.message_id, e.vector
		FROM embeddings e
		JOIN messages m ON m.id = e.message_id
		JOIN sessions s ON s.id = m.session_id
		WHERE 1 = 1`
	var args []any
	query, args = appendSessionFilter(query, args, domainIndex.MessageFilter{
		AgentID: filter.AgentID,
		Channel: filter.Channel,
		Since:   filter.Since,
	})

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to scan embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return err
		}
		vec, err := DecodeVector(blob)
		if err != nil {
			return fmt.Errorf("message %d: %w", id, err)
		}
		if err := fn(id, vec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// UnmirroredEmbeddings 返回还没有写入 backend 的向量
func (r *EmbeddingRepositoryImpl) UnmirroredEmbeddings(ctx context.Context, backend string, limit int, afterID int64) ([]domainIndex.VectorRecord, error) {
	query := `
		SELECT e.message_id, m.session_id, s.agent_id, s.channel, m.timestamp, e.vector
		FROM embeddings e
		JOIN messages m ON m.id = e.message_id
		JOIN sessions s ON s.id = m.session_id
		WHERE e.mirrored_to != ? AND e.message_id > ?
		ORDER BY e.message_id`
	args := []any{backend, afterID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query unmirrored embeddings: %w", err)
	}
	defer rows.Close()

	var records []domainIndex.VectorRecord
	for rows.Next() {
		var rec domainIndex.VectorRecord
		var blob []byte
		if err := rows.Scan(&rec.MessageID, &rec.SessionID, &rec.AgentID, &rec.Channel, &rec.Timestamp, &blob); err != nil {
			return nil, err
		}
		if rec.Vector, err = DecodeVector(blob); err != nil {
			return nil, fmt.Errorf("message %d: %w", rec.MessageID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// MarkMirrored 记录向量已写入 backend
func (r *EmbeddingRepositoryImpl) MarkMirrored(ctx context.Context, backend string, messageIDs []int64) error {
	if len(messageIDs) == 0 {
		return nil
	}
	args := make([]any, 0, len(messageIDs)+1)
	args = append(args, backend)
	for _, id := range messageIDs {
		args = append(args, id)
	}
	query := `UPDATE embeddings SET mirrored_to = ? WHERE message_id IN (?` + strings.Repeat(",?", len(messageIDs)-1) + `)`
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark embeddings mirrored: %w", err)
	}
	return nil
}

// CountEmbeddings 向量总数
func (r *EmbeddingRepositoryImpl) CountEmbeddings(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return n, nil
}

// appendSessionFilter 追加 agent/channel/时间过滤，要求查询中 m 为 messages、s 为 sessions
func appendSessionFilter(query string, args []any, filter domainIndex.MessageFilter) (string, []any) {
	if filter.AgentID != "" {
		query += ` AND s.agent_id = ?`
		args = append(args, filter.AgentID)
	}
	if filter.Channel != "" {
		query += ` AND s.channel = ?`
		args = append(args, filter.Channel)
	}
	if filter.Since > 0 {
		query += ` AND m.timestamp >= ?`
		args = append(args, filter.Since)
	}
	return query, args
}
