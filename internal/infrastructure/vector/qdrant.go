package vector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/convomemory/recall/internal/domain/index"
	"github.com/convomemory/recall/internal/infrastructure/config"
	"github.com/convomemory/recall/internal/infrastructure/log"
	"github.com/qdrant/go-client/qdrant"
)

// 确保 QdrantIndex 实现了 VectorIndex 接口
var _ index.VectorIndex = (*QdrantIndex)(nil)

// QdrantIndex 使用外部 Qdrant 服务
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dimension  uint64

	mu      sync.Mutex
	ensured bool
	logger  *slog.Logger
}

// NewQdrantIndex 连接 Qdrant 并检查服务可用
func NewQdrantIndex(ctx context.Context, cfg *config.QdrantConfig) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	// 测试连接：尝试列出集合
	if _, err := client.ListCollections(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("qdrant not reachable at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &QdrantIndex{
		client:     client,
		collection: cfg.Collection,
		dimension:  uint64(cfg.Dimension),
		logger:     log.NewModuleLogger("vector", "qdrant"),
	}, nil
}

// Name 后端名称
func (q *QdrantIndex) Name() string { return BackendQdrant }

// Close 关闭连接
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

// ensureCollection 确保集合存在，维度未配置时取第一次写入的向量长度
func (q *QdrantIndex) ensureCollection(ctx context.Context, dim int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ensured {
		return nil
	}

	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		size := q.dimension
		if size == 0 {
			size = uint64(dim)
		}
		err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: q.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     size,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection %s: %w", q.collection, err)
		}
		q.logger.Info("Created qdrant collection", "collection", q.collection, "dimension", size)
	}
	q.ensured = true
	return nil
}

// Upsert 写入向量，点 ID 即消息 ID
func (q *QdrantIndex) Upsert(ctx context.Context, records []index.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := q.ensureCollection(ctx, len(records[0].Vector)); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, r := range records {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(r.MessageID)),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"session_id": r.SessionID,
				"agent_id":   r.AgentID,
				"channel":    r.Channel,
				"timestamp":  r.Timestamp,
			}),
		})
	}

	wait := true
	if _, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// DeleteSession 通过 session_id 过滤删除
func (q *QdrantIndex) DeleteSession(ctx context.Context, sessionID string) error {
	if err := q.ensureCollection(ctx, int(q.dimension)); err != nil {
		return err
	}
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{qdrant.NewMatch("session_id", sessionID)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

// Search 查询最相似的点
func (q *QdrantIndex) Search(ctx context.Context, query []float32, filter index.VectorFilter, limit int) ([]index.VectorHit, error) {
	if limit <= 0 {
		return nil, nil
	}
	n := uint64(limit)
	resp, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &n,
		Filter:         buildFilter(filter),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query qdrant: %w", err)
	}

	hits := make([]index.VectorHit, 0, len(resp))
	for _, p := range resp {
		hits = append(hits, index.VectorHit{
			MessageID: int64(p.GetId().GetNum()),
			Score:     float64(p.GetScore()),
		})
	}
	return topK(hits, limit), nil
}

// buildFilter 构建过滤条件，无条件时返回 nil
func buildFilter(filter index.VectorFilter) *qdrant.Filter {
	var must []*qdrant.Condition
	if filter.AgentID != "" {
		must = append(must, qdrant.NewMatch("agent_id", filter.AgentID))
	}
	if filter.Channel != "" {
		must = append(must, qdrant.NewMatch("channel", filter.Channel))
	}
	if filter.Since > 0 {
		since := float64(filter.Since)
		must = append(must, qdrant.NewRange("timestamp", &qdrant.Range{Gte: &since}))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}
