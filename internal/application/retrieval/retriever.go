package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/docuchat/backend/internal/domain/document"
	"github.com/docuchat/backend/internal/infrastructure/config"
	"github.com/docuchat/backend/internal/infrastructure/log"
	"github.com/docuchat/backend/internal/infrastructure/vector"
)

// QueryEmbedder 查询向量化网关
type QueryEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// NearestStore 近邻向量查询
type NearestStore interface {
	Nearest(ctx context.Context, q vector.NearestQuery) ([]*vector.ScoredChunk, error)
}

// Evidence 检索命中的证据分块
type Evidence struct {
	ChunkID     string  `json:"chunk_id"`
	DocumentID  string  `json:"document_id"`
	Index       int     `json:"chunk_index"`
	Content     string  `json:"content"`
	ContentType string  `json:"content_type"`
	Score       float32 `json:"score"`
}

// Query 一次检索请求
type Query struct {
	OwnerID string
	Text    string
	// DocumentIDs 文档白名单；为空表示该用户的全部已完成文档
	DocumentIDs []string
	ContentType string
	// Threshold 本次调用的相似度阈值；不大于 0 时使用配置默认值
	Threshold float32
	Limit     int
}

// Retriever 语义检索服务
// 所有查询强制按所有者过滤，白名单中未完成处理的文档不参与检索。
type Retriever struct {
	docRepo   document.Repository
	embedder  QueryEmbedder
	store     NearestStore
	threshold float32
	limit     int
	logger    *slog.Logger
}

// NewRetriever 创建语义检索服务
func NewRetriever(cfg *config.Config, docRepo document.Repository, embedder QueryEmbedder, store NearestStore) *Retriever {
	return &Retriever{
		docRepo:   docRepo,
		embedder:  embedder,
		store:     store,
		threshold: cfg.Retrieval.Threshold,
		limit:     cfg.Retrieval.Limit,
		logger:    log.NewModuleLogger("retrieval", "retriever"),
	}
}

// Retrieve 检索与查询语义最接近的证据分块
// 白名单非空但其中没有已完成文档时返回空结果而不报错。
func (r *Retriever) Retrieve(ctx context.Context, q Query) ([]*Evidence, error) {
	if q.OwnerID == "" {
		return nil, fmt.Errorf("owner id is required")
	}

	scope, err := r.docRepo.CompletedIDs(q.OwnerID, q.DocumentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve document scope: %w", err)
	}
	if len(scope) == 0 {
		r.logger.Debug("No completed documents in scope", "owner_id", q.OwnerID)
		return []*Evidence{}, nil
	}

	embedding, err := r.embedder.EmbedText(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	limit := q.Limit
	if limit <= 0 || limit > r.limit {
		limit = r.limit
	}

	threshold := q.Threshold
	if threshold <= 0 || threshold >= 1 {
		threshold = r.threshold
	}

	hits, err := r.store.Nearest(ctx, vector.NearestQuery{
		Vector:      embedding,
		OwnerID:     q.OwnerID,
		DocumentIDs: scope,
		ContentType: q.ContentType,
		Threshold:   threshold,
		Limit:       limit,
	})
	if err != nil {
		return nil, fmt.Errorf("nearest query failed: %w", err)
	}

	evidence := r.filterHits(q.OwnerID, hits)
	if len(evidence) > limit {
		evidence = evidence[:limit]
	}

	r.logger.Debug("Retrieval finished",
		"owner_id", q.OwnerID, "scope", len(scope), "hits", len(evidence))
	return evidence, nil
}

// filterHits 丢弃归属不符的命中并保持确定性排序
// 向量侧已带所有者过滤，这里是最后一道隔离校验。
func (r *Retriever) filterHits(ownerID string, hits []*vector.ScoredChunk) []*Evidence {
	evidence := make([]*Evidence, 0, len(hits))
	for _, hit := range hits {
		if hit.OwnerID != ownerID {
			r.logger.Error("Dropping hit with mismatched owner",
				"expected_owner", ownerID, "actual_owner", hit.OwnerID, "chunk_id", hit.ChunkID)
			continue
		}
		evidence = append(evidence, &Evidence{
			ChunkID:     hit.ChunkID,
			DocumentID:  hit.DocumentID,
			Index:       hit.Index,
			Content:     hit.Content,
			ContentType: hit.ContentType,
			Score:       hit.Score,
		})
	}

	sort.SliceStable(evidence, func(i, j int) bool {
		if evidence[i].Score != evidence[j].Score {
			return evidence[i].Score > evidence[j].Score
		}
		if evidence[i].Index != evidence[j].Index {
			return evidence[i].Index < evidence[j].Index
		}
		return evidence[i].DocumentID < evidence[j].DocumentID
	})
	return evidence
}
