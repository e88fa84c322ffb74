package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	domainIndex "github.com/convomemory/recall/internal/domain/index"
)

// 确保 MessageSearchRepositoryImpl 实现了 domainIndex.MessageSearcher 接口
var _ domainIndex.MessageSearcher = (*MessageSearchRepositoryImpl)(nil)

// MessageSearchRepositoryImpl 基于 FTS5 的全文检索
type MessageSearchRepositoryImpl struct {
	db *sql.DB
}

// NewMessageSearchRepository 创建全文检索实例
func NewMessageSearchRepository(db *sql.DB) domainIndex.MessageSearcher {
	return &MessageSearchRepositoryImpl{db: db}
}

// SearchFTS 执行 FTS5 MATCH 查询，按 bm25 排序
func (r *MessageSearchRepositoryImpl) SearchFTS(ctx context.Context, match string, filter domainIndex.MessageFilter, limit int) ([]domainIndex.KeywordHit, error) {
	query := `
		SELECT ` + messageColumns + `, bm25(messages_fts) AS rank
		FROM messages_fts
		JOIN messages m ON m.id = messages_fts.rowid
		JOIN sessions s ON s.id = m.session_id
		WHERE messages_fts MATCH ?`
	args := []any{match}
	query, args = appendSessionFilter(query, args, filter)
	query += ` ORDER BY rank, m.timestamp DESC, m.id LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fts query failed: %w", err)
	}
	return scanKeywordHits(rows)
}

// SearchSubstring 大小写不敏感的子串匹配（ASCII），按时间倒序
func (r *MessageSearchRepositoryImpl) SearchSubstring(ctx context.Context, needle string, filter domainIndex.MessageFilter, limit int) ([]domainIndex.KeywordHit, error) {
	query := `
		SELECT ` + messageColumns + `, 0 AS rank
		FROM messages m
		JOIN sessions s ON s.id = m.session_id
		WHERE m.content LIKE ? ESCAPE '\'`
	args := []any{"%" + escapeLike(needle) + "%"}
	query, args = appendSessionFilter(query, args, filter)
	query += ` ORDER BY m.timestamp DESC, m.id LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("substring query failed: %w", err)
	}
	return scanKeywordHits(rows)
}

func scanKeywordHits(rows *sql.Rows) ([]domainIndex.KeywordHit, error) {
	defer rows.Close()

	var hits []domainIndex.KeywordHit
	for rows.Next() {
		var rank float64
		m, err := scanMessage(rows, &rank)
		if err != nil {
			return nil, err
		}
		hits = append(hits, domainIndex.KeywordHit{Message: m, Rank: rank})
	}
	return hits, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
