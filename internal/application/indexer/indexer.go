package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/convomemory/recall/internal/application/ingest"
	"github.com/convomemory/recall/internal/domain/events"
	domainIndex "github.com/convomemory/recall/internal/domain/index"
	domainSession "github.com/convomemory/recall/internal/domain/session"
	"github.com/convomemory/recall/internal/infrastructure/config"
	"github.com/convomemory/recall/internal/infrastructure/embedding"
	"github.com/convomemory/recall/internal/infrastructure/log"
	"github.com/google/uuid"
)

// Indexer 增量索引器
type Indexer struct {
	ingestor    *ingest.Ingestor
	sessions    domainSession.Repository
	checkpoints domainIndex.CheckpointStore
	embeddings  domainIndex.EmbeddingStore
	vectors     domainIndex.VectorIndex
	provider    embedding.Provider // 可能为 nil
	bus         events.EventBus    // 可能为 nil
	minLength   int
	batchSize   int
	logger      *slog.Logger
}

// NewIndexer 创建索引器
func NewIndexer(
	ingestor *ingest.Ingestor,
	sessions domainSession.Repository,
	checkpoints domainIndex.CheckpointStore,
	embeddings domainIndex.EmbeddingStore,
	vectors domainIndex.VectorIndex,
	provider embedding.Provider,
	bus events.EventBus,
	cfg *config.EmbeddingConfig,
) *Indexer {
	minLength, batchSize := 20, 100
	if cfg != nil {
		if cfg.MinContentLength > 0 {
			minLength = cfg.MinContentLength
		}
		if cfg.BatchSize > 0 {
			batchSize = cfg.BatchSize
		}
	}
	return &Indexer{
		ingestor:    ingestor,
		sessions:    sessions,
		checkpoints: checkpoints,
		embeddings:  embeddings,
		vectors:     vectors,
		provider:    provider,
		bus:         bus,
		minLength:   minLength,
		batchSize:   batchSize,
		logger:      log.NewModuleLogger("indexer", "pass"),
	}
}

// HasProvider 是否配置了向量化服务
func (ix *Indexer) HasProvider() bool {
	return ix.provider != nil
}

// Pass 执行一次索引
// 单个会话失败会累计后继续；检查点存储失败或 ctx 取消时返回错误，已完成的统计仍然有效
func (ix *Indexer) Pass(ctx context.Context, opts PassOptions) (*PassResult, error) {
	start := time.Now()
	result := &PassResult{PassID: uuid.New().String()}
	ctx = log.WithPassID(ctx, result.PassID)
	logger := log.FromContext(ctx, ix.logger)

	logger.Info("Index pass started",
		"sources", len(opts.Sources),
		"incremental", opts.Incremental,
		"embeddings", opts.Embeddings,
		"provider", ix.provider != nil,
	)
	ix.publish(events.IndexPassStarted, result, "", "", 0, nil)

	err := ix.run(ctx, opts, result)

	result.Duration = time.Since(start)
	ix.publish(events.IndexPassFinished, result, "", "", 0, err)
	if err != nil {
		logger.Error("Index pass aborted",
			"indexed", result.Indexed,
			"errors", result.Errors,
			"error", err,
		)
		return result, err
	}
	logger.Info("Index pass finished",
		"indexed", result.Indexed,
		"skipped", result.Skipped,
		"errors", result.Errors,
		"messages", result.Messages,
		"embeddings", result.Embeddings,
		"duration", result.Duration,
	)
	return result, nil
}

func (ix *Indexer) run(ctx context.Context, opts PassOptions, result *PassResult) error {
	for _, src := range opts.Sources {
		for file, err := range ingest.Files(ctx, src.Path, src.Active) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				result.fail(src.Path, err)
				var fe *ingest.FileError
				if errors.As(err, &fe) {
					result.Failures[len(result.Failures)-1].Path = fe.Path
				}
				ix.logger.Warn("Source entry failed", "source", src.Path, "error", err)
				continue
			}
			if err := ix.indexFile(ctx, file, opts, result); err != nil {
				return err
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}

	if !opts.Embeddings {
		return nil
	}
	if ix.provider != nil {
		if err := ix.backfill(ctx, result); err != nil {
			return err
		}
	}
	return ix.syncMirror(ctx, result)
}

// indexFile 处理单个文件并更新统计，只有致命错误才返回
func (ix *Indexer) indexFile(ctx context.Context, file *ingest.SourceFile, opts PassOptions, result *PassResult) error {
	out, ing, err := ix.processFile(ctx, file, opts, result)
	if err != nil {
		result.fail(file.Path, err)
		if errors.Is(err, ErrCheckpoint) {
			return err
		}
		ix.publish(events.IndexSessionFailed, result, file.Root, domainSession.IDFromPath(file.Path), 0, err)
		ix.logger.Warn("Session indexing failed", "path", file.Path, "error", err)
		return nil
	}

	switch out {
	case outcomeIndexed:
		result.Indexed++
		result.Messages += len(ing.Messages)
		ix.publish(events.IndexSessionIndexed, result, file.Root, ing.Session.ID, len(ing.Messages), nil)
		ix.logger.Debug("Session indexed",
			"session_id", ing.Session.ID,
			"messages", len(ing.Messages),
		)
	default:
		result.Skipped++
	}
	return nil
}

// processFile 按检查点决定跳过或重建会话
func (ix *Indexer) processFile(ctx context.Context, file *ingest.SourceFile, opts PassOptions, result *PassResult) (outcome, *ingest.Ingested, error) {
	cp, err := ix.checkpoints.Get(ctx, file.Root, file.Path)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrCheckpoint, err)
	}

	// 快速检查：活跃文件的 mtime 不可信，总是做哈希检查
	if opts.Incremental && cp != nil && !file.Active && cp.QuickMatch(file.Size, file.Mtime) {
		return outcomeSkipped, nil, nil
	}

	snap, err := file.Load()
	if err != nil {
		return 0, nil, err
	}

	// 精确检查：内容未变只刷新 mtime
	if opts.Incremental && cp != nil && !cp.NeedsReindex(snap.Hash) {
		if cp.NeedsMtimeUpdate(file.Size, file.Mtime, snap.Hash) {
			if err := ix.checkpoints.UpdateMtime(ctx, file.Root, file.Path, file.Size, file.Mtime); err != nil {
				return 0, nil, fmt.Errorf("%w: %v", ErrCheckpoint, err)
			}
		}
		return outcomeSkipped, nil, nil
	}

	ing, err := ix.ingestor.Parse(snap)
	if err != nil {
		return 0, nil, err
	}

	out := outcomeIndexed
	status := domainIndex.StatusIndexed
	embedded := 0
	if len(ing.Messages) == 0 {
		out, status = outcomeEmpty, domainIndex.StatusEmpty
	}

	// 之前有消息的会话变空时也需要替换，清掉旧消息
	if len(ing.Messages) > 0 || (cp != nil && cp.MessageCount > 0) {
		stored, err := ix.sessions.ReplaceSession(ctx, ing.Session, ing.Messages)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to store session %s: %w", ing.Session.ID, err)
		}
		ing.Messages = stored

		if err := ix.vectors.DeleteSession(ctx, ing.Session.ID); err != nil {
			ix.logger.Warn("Failed to clear session vectors", "session_id", ing.Session.ID, "backend", ix.vectors.Name(), "error", err)
		}

		if opts.Embeddings && ix.provider != nil {
			embedded = ix.embedMessages(ctx, map[string]*domainSession.Session{ing.Session.ID: ing.Session}, stored, result)
		}
	}

	err = ix.checkpoints.Save(ctx, &domainIndex.Checkpoint{
		SourceRoot:    file.Root,
		FilePath:      file.Path,
		SessionID:     ing.Session.ID,
		ContentHash:   snap.Hash,
		FileSize:      file.Size,
		FileMtime:     file.Mtime,
		MessageCount:  len(ing.Messages),
		EmbeddedCount: embedded,
		Status:        status,
		IndexedAt:     time.Now().UnixMilli(),
	})
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrCheckpoint, err)
	}
	return out, ing, nil
}

// IndexFile 索引单个活跃文件（文件监听触发）
func (ix *Indexer) IndexFile(ctx context.Context, root, path string) (*PassResult, error) {
	start := time.Now()
	result := &PassResult{PassID: uuid.New().String()}
	ctx = log.WithPassID(ctx, result.PassID)

	file, err := ingest.StatFile(root, path, true)
	if err != nil {
		result.fail(path, err)
		return result, nil
	}
	err = ix.indexFile(ctx, file, PassOptions{Incremental: true}, result)
	result.Duration = time.Since(start)
	return result, err
}

// HandleEvent 处理会话文件事件，实现 events.Handler
func (ix *Indexer) HandleEvent(event events.Event) error {
	e, ok := event.(*events.SessionFileEvent)
	if !ok || e.EventType == events.SessionFileDeleted {
		return nil
	}
	ctx := log.WithSessionID(context.Background(), e.SessionID)
	result, err := ix.IndexFile(ctx, e.Root, e.FilePath)
	if err != nil {
		return err
	}
	if result.Errors > 0 {
		return fmt.Errorf("index %s: %s", e.FilePath, result.Failures[0].Error)
	}
	return nil
}

// publish 发布进度事件
func (ix *Indexer) publish(t events.EventType, result *PassResult, source, sessionID string, messages int, err error) {
	if ix.bus == nil {
		return
	}
	e := &events.IndexProgressEvent{
		EventType: t,
		PassID:    result.PassID,
		Source:    source,
		SessionID: sessionID,
		Messages:  messages,
		Indexed:   result.Indexed,
		Skipped:   result.Skipped,
		Errors:    result.Errors,
		EventTime: time.Now(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	ix.bus.Publish(e)
}
