package vector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/qdrant/go-client/qdrant"

	"github.com/docuchat/backend/internal/domain/document"
	"github.com/docuchat/backend/internal/infrastructure/config"
	"github.com/docuchat/backend/internal/infrastructure/log"
)

// Store 基于 Qdrant 的分块向量存储
type Store struct {
	client     *qdrant.Client
	collection string
	logger     *slog.Logger
}

// NewStore 创建向量存储并连接 Qdrant
func NewStore(cfg *config.Config) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Qdrant.Host,
		Port: cfg.Qdrant.GRPCPort,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &Store{
		client:     client,
		collection: cfg.Qdrant.Collection,
		logger:     log.NewModuleLogger("vector", "store"),
	}, nil
}

// EnsureCollection 确保集合存在，不存在则创建（余弦距离）
func (s *Store) EnsureCollection(ctx context.Context) error {
	existing, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, name := range existing {
		if name == s.collection {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(document.EmbeddingDimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", s.collection, err)
	}

	s.logger.Info("Collection created", "collection", s.collection, "dimension", document.EmbeddingDimension)
	return nil
}

// ChunkFailure 单个分块写入失败的记录
type ChunkFailure struct {
	ChunkID string
	Index   int
	Err     error
}

// UpsertReport 批量写入结果，记录成功数与逐条失败
type UpsertReport struct {
	Succeeded int
	Failed    []ChunkFailure
}

// UpsertChunks 批量写入分块向量。整批失败时降级为逐条写入，
// 返回每个分块的成败情况，已写入的分块不会被丢弃。
func (s *Store) UpsertChunks(ctx context.Context, chunks []*document.Chunk) (*UpsertReport, error) {
	if len(chunks) == 0 {
		return &UpsertReport{}, nil
	}

	points := s.buildPoints(chunks)

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err == nil {
		return &UpsertReport{Succeeded: len(chunks)}, nil
	}

	s.logger.Warn("Batch upsert failed, retrying per chunk", "error", err, "chunks", len(chunks))

	report := &UpsertReport{}
	for i, chunk := range chunks {
		_, perr := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points[i : i+1],
		})
		if perr != nil {
			report.Failed = append(report.Failed, ChunkFailure{
				ChunkID: chunk.ID,
				Index:   chunk.Index,
				Err:     perr,
			})
			continue
		}
		report.Succeeded++
	}

	return report, nil
}

// buildPoints 将分块转换为 Qdrant 点
func (s *Store) buildPoints(chunks []*document.Chunk) []*qdrant.PointStruct {
	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		vectorArgs := make([]float32, len(chunk.Embedding))
		copy(vectorArgs, chunk.Embedding)

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(chunk.ID),
			Vectors: qdrant.NewVectors(vectorArgs...),
			Payload: qdrant.NewValueMap(map[string]interface{}{
				"chunk_id":     chunk.ID,
				"document_id":  chunk.DocumentID,
				"owner_id":     chunk.OwnerID,
				"chunk_index":  int64(chunk.Index),
				"content":      chunk.Content,
				"content_type": chunk.ContentType,
				"created_at":   chunk.CreatedAt.Unix(),
			}),
		}
	}
	return points
}

// NearestQuery 近邻查询参数
type NearestQuery struct {
	Vector      []float32
	OwnerID     string
	DocumentIDs []string
	ContentType string
	Threshold   float32
	Limit       int
}

// ScoredChunk 近邻查询命中结果
type ScoredChunk struct {
	ChunkID     string
	DocumentID  string
	OwnerID     string
	Index       int
	Content     string
	ContentType string
	Score       float32
}

// Nearest 按相似度查询最近的分块。所有者过滤是强制条件，
// 分数严格大于阈值的命中才会返回。
func (s *Store) Nearest(ctx context.Context, q NearestQuery) ([]*ScoredChunk, error) {
	if q.OwnerID == "" {
		return nil, fmt.Errorf("owner id is required for nearest query")
	}

	filter := buildNearestFilter(q)
	limit := uint64(q.Limit)
	threshold := q.Threshold

	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(q.Vector...),
		Limit:          &limit,
		Filter:         filter,
		ScoreThreshold: &threshold,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query qdrant: %w", err)
	}

	results := make([]*ScoredChunk, 0, len(hits))
	for _, hit := range hits {
		// Qdrant 的 score_threshold 是 >=，阈值本身的命中在这里剔除
		if hit.GetScore() <= q.Threshold {
			continue
		}
		chunk := hitToScoredChunk(hit)
		if chunk != nil {
			results = append(results, chunk)
		}
	}

	sortScoredChunks(results)
	return results, nil
}

// buildNearestFilter 构建查询过滤条件：所有者必选，
// 文档允许列表与内容类型可选。
func buildNearestFilter(q NearestQuery) *qdrant.Filter {
	must := []*qdrant.Condition{
		qdrant.NewMatch("owner_id", q.OwnerID),
	}

	if len(q.DocumentIDs) == 1 {
		must = append(must, qdrant.NewMatch("document_id", q.DocumentIDs[0]))
	} else if len(q.DocumentIDs) > 1 {
		must = append(must, qdrant.NewMatchKeywords("document_id", q.DocumentIDs...))
	}

	if q.ContentType != "" {
		must = append(must, qdrant.NewMatch("content_type", q.ContentType))
	}

	return &qdrant.Filter{Must: must}
}

// sortScoredChunks 分数降序；同分按分块序号升序，再按文档 ID 升序
func sortScoredChunks(chunks []*ScoredChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Score != chunks[j].Score {
			return chunks[i].Score > chunks[j].Score
		}
		if chunks[i].Index != chunks[j].Index {
			return chunks[i].Index < chunks[j].Index
		}
		return chunks[i].DocumentID < chunks[j].DocumentID
	})
}

// hitToScoredChunk 将命中点转换为分块结果
func hitToScoredChunk(hit *qdrant.ScoredPoint) *ScoredChunk {
	payload := hit.GetPayload()
	if payload == nil {
		return nil
	}

	result := &ScoredChunk{
		Score: hit.GetScore(),
	}

	if val, ok := payload["chunk_id"]; ok {
		result.ChunkID = extractStringValue(val)
	}
	if val, ok := payload["document_id"]; ok {
		result.DocumentID = extractStringValue(val)
	}
	if val, ok := payload["owner_id"]; ok {
		result.OwnerID = extractStringValue(val)
	}
	if val, ok := payload["chunk_index"]; ok {
		result.Index = int(extractIntValue(val))
	}
	if val, ok := payload["content"]; ok {
		result.Content = extractStringValue(val)
	}
	if val, ok := payload["content_type"]; ok {
		result.ContentType = extractStringValue(val)
	}

	if result.ChunkID == "" {
		return nil
	}
	return result
}

// DeleteByDocument 删除指定文档的全部向量
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{
						qdrant.NewMatch("document_id", documentID),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete vectors for document %s: %w", documentID, err)
	}
	return nil
}

// CountByOwner 统计指定所有者的向量数量
func (s *Store) CountByOwner(ctx context.Context, ownerID string) (uint64, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("owner_id", ownerID),
			},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}
	return count, nil
}

// Close 关闭 Qdrant 连接
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// extractStringValue 从 qdrant.Value 提取字符串值
func extractStringValue(val *qdrant.Value) string {
	if val == nil {
		return ""
	}
	if sv, ok := val.GetKind().(*qdrant.Value_StringValue); ok {
		return sv.StringValue
	}
	return ""
}

// extractIntValue 从 qdrant.Value 提取整数值
func extractIntValue(val *qdrant.Value) int64 {
	if val == nil {
		return 0
	}
	if iv, ok := val.GetKind().(*qdrant.Value_IntegerValue); ok {
		return iv.IntegerValue
	}
	return 0
}
