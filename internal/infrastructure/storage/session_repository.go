package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	domainSession "github.com/convomemory/recall/internal/domain/session"
)

// 确保 SessionRepositoryImpl 实现了 domainSession.Repository 接口
var _ domainSession.Repository = (*SessionRepositoryImpl)(nil)

// SessionRepositoryImpl 会话与消息仓库实现
type SessionRepositoryImpl struct {
	db    *sql.DB
	locks *keyedMutex
}

// NewSessionRepository 创建会话仓库实例
func NewSessionRepository(db *sql.DB) domainSession.Repository {
	return &SessionRepositoryImpl{db: db, locks: newKeyedMutex()}
}

const messageColumns = `m.id, m.session_id, m.ordinal, m.role, m.content, m.timestamp`

// ReplaceSession 在一个事务内写入会话并整体替换其消息
// 同一会话的并发写入串行执行（后写者覆盖），不同会话互不阻塞
func (r *SessionRepositoryImpl) ReplaceSession(ctx context.Context, s *domainSession.Session, messages []*domainSession.Message) ([]*domainSession.Message, error) {
	unlock := r.locks.lock(s.ID)
	defer unlock()

	if s.IndexedAt == 0 {
		s.IndexedAt = time.Now().UnixMilli()
	}
	s.MessageCount = len(messages)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (
			id, agent_id, channel, channel_id, format, started_at, ended_at,
			source_file, source_root, content_hash, file_size, file_mtime,
			message_count, active, indexed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			agent_id = excluded.agent_id,
			channel = excluded.channel,
			channel_id = excluded.channel_id,
			format = excluded.format,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			source_file = excluded.source_file,
			source_root = excluded.source_root,
			content_hash = excluded.content_hash,
			file_size = excluded.file_size,
			file_mtime = excluded.file_mtime,
			message_count = excluded.message_count,
			active = excluded.active,
			indexed_at = excluded.indexed_at`,
		s.ID, s.AgentID, s.Channel, s.ChannelID, s.Format, s.StartedAt, s.EndedAt,
		s.SourceFile, s.SourceRoot, s.ContentHash, s.FileSize, s.FileMtime,
		s.MessageCount, boolToInt(s.Active), s.IndexedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert session: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM embeddings WHERE message_id IN (SELECT id FROM messages WHERE session_id = ?)`, s.ID); err != nil {
		return nil, fmt.Errorf("failed to delete embeddings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, s.ID); err != nil {
		return nil, fmt.Errorf("failed to delete messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages (session_id, ordinal, role, content, timestamp) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare message insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range messages {
		m.SessionID = s.ID
		m.Ordinal = i
		res, err := stmt.ExecContext(ctx, s.ID, i, string(m.Role), m.Content, m.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to insert message %d: %w", i, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to read message id: %w", err)
		}
		m.ID = id
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit session %s: %w", s.ID, err)
	}
	return messages, nil
}

// GetSession 获取会话，找不到时返回 nil, nil
func (r *SessionRepositoryImpl) GetSession(ctx context.Context, id string) (*domainSession.Session, error) {
	sessions, err := r.GetSessions(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	return sessions[id], nil
}

// GetSessions 批量读取会话
func (r *SessionRepositoryImpl) GetSessions(ctx context.Context, ids []string) (map[string]*domainSession.Session, error) {
	result := make(map[string]*domainSession.Session, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `
		SELECT id, agent_id, channel, channel_id, format, started_at, ended_at,
		       source_file, source_root, content_hash, file_size, file_mtime,
		       message_count, active, indexed_at
		FROM sessions WHERE id IN (` + placeholders(len(ids)) + `)`

	rows, err := r.db.QueryContext(ctx, query, stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s domainSession.Session
		var active int
		if err := rows.Scan(
			&s.ID, &s.AgentID, &s.Channel, &s.ChannelID, &s.Format, &s.StartedAt, &s.EndedAt,
			&s.SourceFile, &s.SourceRoot, &s.ContentHash, &s.FileSize, &s.FileMtime,
			&s.MessageCount, &active, &s.IndexedAt,
		); err != nil {
			return nil, err
		}
		s.Active = active != 0
		result[s.ID] = &s
	}
	return result, rows.Err()
}

// GetMessages 按 ordinal 顺序返回会话全部消息
func (r *SessionRepositoryImpl) GetMessages(ctx context.Context, sessionID string) ([]*domainSession.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages m WHERE m.session_id = ? ORDER BY m.ordinal`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	return scanMessages(rows)
}

// GetMessagesByIDs 按 ID 批量读取
func (r *SessionRepositoryImpl) GetMessagesByIDs(ctx context.Context, ids []int64) (map[int64]*domainSession.Message, error) {
	result := make(map[int64]*domainSession.Message, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages m WHERE m.id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	for _, m := range messages {
		result[m.ID] = m
	}
	return result, nil
}

// GetContext 返回 ordinal 前后各 size 条消息
func (r *SessionRepositoryImpl) GetContext(ctx context.Context, sessionID string, ordinal, size int) ([]*domainSession.Message, []*domainSession.Message, error) {
	if size <= 0 {
		return nil, nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages m
		 WHERE m.session_id = ? AND m.ordinal BETWEEN ? AND ? AND m.ordinal != ?
		 ORDER BY m.ordinal`,
		sessionID, ordinal-size, ordinal+size, ordinal)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query context: %w", err)
	}
	messages, err := scanMessages(rows)
	if err != nil {
		return nil, nil, err
	}

	var before, after []*domainSession.Message
	for _, m := range messages {
		if m.Ordinal < ordinal {
			before = append(before, m)
		} else {
			after = append(after, m)
		}
	}
	return before, after, nil
}

// Stats 统计信息
func (r *SessionRepositoryImpl) Stats(ctx context.Context) (*domainSession.Stats, error) {
	stats := &domainSession.Stats{Agents: []domainSession.AgentCount{}}

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM sessions`, &stats.Sessions},
		{`SELECT COUNT(*) FROM messages`, &stats.Messages},
		{`SELECT COUNT(*) FROM embeddings`, &stats.Embeddings},
	}
	for _, c := range counts {
		if err := r.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count: %w", err)
		}
	}

	if err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(indexed_at), 0) FROM sessions`).Scan(&stats.LastIndexedAt); err != nil {
		return nil, fmt.Errorf("failed to read last indexed time: %w", err)
	}

	var pageCount, pageSize int64
	if err := r.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pageCount); err == nil {
		if err := r.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err == nil {
			stats.DBSizeBytes = pageCount * pageSize
		}
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT agent_id, COUNT(*) FROM sessions GROUP BY agent_id ORDER BY COUNT(*) DESC, agent_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ac domainSession.AgentCount
		if err := rows.Scan(&ac.AgentID, &ac.Sessions); err != nil {
			return nil, err
		}
		stats.Agents = append(stats.Agents, ac)
	}
	return stats, rows.Err()
}

// scanMessages 读取消息行并关闭 rows
func scanMessages(rows *sql.Rows) ([]*domainSession.Message, error) {
	defer rows.Close()

	var messages []*domainSession.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner, extra ...any) (*domainSession.Message, error) {
	var m domainSession.Message
	var role string
	dest := append([]any{&m.ID, &m.SessionID, &m.Ordinal, &role, &m.Content, &m.Timestamp}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainSession.ErrNotFound
		}
		return nil, err
	}
	m.Role = domainSession.Role(role)
	return &m, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
