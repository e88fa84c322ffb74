package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domainIndex "github.com/convomemory/recall/internal/domain/index"
)

// 确保 CheckpointRepositoryImpl 实现了 domainIndex.CheckpointStore 接口
var _ domainIndex.CheckpointStore = (*CheckpointRepositoryImpl)(nil)

// CheckpointRepositoryImpl 索引检查点仓库实现
type CheckpointRepositoryImpl struct {
	db *sql.DB
}

// NewCheckpointRepository 创建检查点仓库实例
func NewCheckpointRepository(db *sql.DB) domainIndex.CheckpointStore {
	return &CheckpointRepositoryImpl{db: db}
}

const checkpointColumns = `source_root, file_path, session_id, content_hash, file_size,
	file_mtime, message_count, embedded_count, status, indexed_at`

// Get 获取检查点，找不到时返回 nil, nil
func (r *CheckpointRepositoryImpl) Get(ctx context.Context, sourceRoot, filePath string) (*domainIndex.Checkpoint, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+checkpointColumns+` FROM index_checkpoints WHERE source_root = ? AND file_path = ?`,
		sourceRoot, filePath)

	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return cp, nil
}

// Save 保存检查点
func (r *CheckpointRepositoryImpl) Save(ctx context.Context, cp *domainIndex.Checkpoint) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO index_checkpoints (`+checkpointColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cp.SourceRoot, cp.FilePath, cp.SessionID, cp.ContentHash, cp.FileSize,
		cp.FileMtime, cp.MessageCount, cp.EmbeddedCount, cp.Status, cp.IndexedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// UpdateMtime 只刷新文件大小与修改时间
func (r *CheckpointRepositoryImpl) UpdateMtime(ctx context.Context, sourceRoot, filePath string, size, mtime int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE index_checkpoints SET file_size = ?, file_mtime = ? WHERE source_root = ? AND file_path = ?`,
		size, mtime, sourceRoot, filePath)
	if err != nil {
		return fmt.Errorf("failed to update checkpoint mtime: %w", err)
	}
	return nil
}

// Count 检查点总数
func (r *CheckpointRepositoryImpl) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM index_checkpoints`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count checkpoints: %w", err)
	}
	return n, nil
}

func scanCheckpoint(row rowScanner) (*domainIndex.Checkpoint, error) {
	var cp domainIndex.Checkpoint
	err := row.Scan(
		&cp.SourceRoot, &cp.FilePath, &cp.SessionID, &cp.ContentHash, &cp.FileSize,
		&cp.FileMtime, &cp.MessageCount, &cp.EmbeddedCount, &cp.Status, &cp.IndexedAt,
	)
	if err != nil {
		return nil, err
	}
	return &cp, nil
}
