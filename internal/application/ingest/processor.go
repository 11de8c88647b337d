package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docuchat/backend/internal/domain/document"
	"github.com/docuchat/backend/internal/infrastructure/config"
	"github.com/docuchat/backend/internal/infrastructure/log"
	"github.com/docuchat/backend/internal/infrastructure/vector"
)

// EmbeddingGateway 向量化网关
type EmbeddingGateway interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// ChunkVectorStore 分块向量存储
type ChunkVectorStore interface {
	UpsertChunks(ctx context.Context, chunks []*document.Chunk) (*vector.UpsertReport, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}

// TextReader 按文件类型提取文档文本
type TextReader interface {
	ReadText(path, fileType string) (string, error)
}

// StructuredExtractor 结构化抽取器
type StructuredExtractor interface {
	ApplyAll(text string) map[string]any
}

// StatusNotifier 处理状态通知
type StatusNotifier interface {
	NotifyStatus(ownerID, documentID, status, errMsg string)
}

// Processor 文档处理流水线
// 分块 → 结构化抽取 → 受限并发向量化 → 批量入库 → 聚合元数据 → 状态推进
type Processor struct {
	docRepo     document.Repository
	chunkRepo   document.ChunkRepository
	chunker     *Chunker
	texts       TextReader
	extractor   StructuredExtractor
	embedder    EmbeddingGateway
	store       ChunkVectorStore
	notifier    StatusNotifier
	uploadDir   string
	concurrency int
	logger      *slog.Logger
}

// NewProcessor 创建文档处理流水线
func NewProcessor(
	cfg *config.Config,
	docRepo document.Repository,
	chunkRepo document.ChunkRepository,
	chunker *Chunker,
	texts TextReader,
	extractor StructuredExtractor,
	embedder EmbeddingGateway,
	store ChunkVectorStore,
	notifier StatusNotifier,
) *Processor {
	return &Processor{
		docRepo:     docRepo,
		chunkRepo:   chunkRepo,
		chunker:     chunker,
		texts:       texts,
		extractor:   extractor,
		embedder:    embedder,
		store:       store,
		notifier:    notifier,
		uploadDir:   cfg.Ingest.UploadDir,
		concurrency: cfg.Ingest.EmbedConcurrency,
		logger:      log.NewModuleLogger("ingest", "processor"),
	}
}

// Process 执行文档处理流水线
// 部分分块失败时文档仍标记完成并返回 PartialBatchFailure；
// 整体失败时文档标记 failed 并带上错误信息。
func (p *Processor) Process(ctx context.Context, documentID string) error {
	doc, err := p.docRepo.Get(documentID)
	if err != nil {
		return fmt.Errorf("failed to load document %s: %w", documentID, err)
	}

	logger := p.logger.With("document_id", doc.ID, "owner_id", doc.OwnerID)
	logger.Info("Processing document", "file_type", doc.FileType, "file_size", doc.FileSize)

	p.setStatus(doc, document.StatusProcessing, "")

	text, err := p.readText(doc)
	if err != nil {
		return p.fail(doc, fmt.Errorf("failed to read document text: %w", err))
	}

	return p.ProcessText(ctx, doc, text)
}

// ProcessText 对已提取的文本执行分块之后的流水线阶段
func (p *Processor) ProcessText(ctx context.Context, doc *document.Document, text string) error {
	logger := p.logger.With("document_id", doc.ID, "owner_id", doc.OwnerID)

	drafts := p.chunker.Chunk(text)
	if len(drafts) == 0 {
		logger.Warn("Document produced no chunks")
		p.completeDocument(doc, nil, nil)
		return nil
	}

	chunks := p.buildChunks(doc, drafts)

	failures := p.embedChunks(ctx, chunks)
	failed := make(map[string]bool, len(failures))
	for _, f := range failures {
		failed[f.ChunkID] = true
	}

	succeeded := make([]*document.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if !failed[chunk.ID] {
			succeeded = append(succeeded, chunk)
		}
	}

	if len(succeeded) == 0 {
		return p.fail(doc, fmt.Errorf("all %d chunk embeddings failed: %w", len(chunks), failures[0].Err))
	}

	report, err := p.store.UpsertChunks(ctx, succeeded)
	if err != nil {
		return p.fail(doc, fmt.Errorf("failed to store chunk vectors: %w", err))
	}
	for _, f := range report.Failed {
		failures = append(failures, ChunkError{Ordinal: f.Index, ChunkID: f.ChunkID, Err: f.Err})
		failed[f.ChunkID] = true
	}

	stored := make([]*document.Chunk, 0, len(succeeded))
	for _, chunk := range succeeded {
		if !failed[chunk.ID] {
			stored = append(stored, chunk)
		}
	}

	if err := p.chunkRepo.SaveChunks(stored); err != nil {
		return p.fail(doc, fmt.Errorf("failed to save chunk rows: %w", err))
	}

	sort.Slice(failures, func(i, j int) bool { return failures[i].Ordinal < failures[j].Ordinal })
	p.completeDocument(doc, stored, failures)

	logger.Info("Document processed", "chunks", len(stored), "failed_chunks", len(failures))

	if len(failures) > 0 {
		return &PartialBatchFailure{DocumentID: doc.ID, Failures: failures}
	}
	return nil
}

// buildChunks 将草稿补全为带归属和抽取结果的分块
func (p *Processor) buildChunks(doc *document.Document, drafts []document.ChunkDraft) []*document.Chunk {
	now := time.Now()
	chunks := make([]*document.Chunk, len(drafts))
	for i, draft := range drafts {
		chunks[i] = &document.Chunk{
			ID:          uuid.NewString(),
			DocumentID:  doc.ID,
			OwnerID:     doc.OwnerID,
			Index:       draft.Index,
			Content:     draft.Content,
			ContentType: draft.ContentType,
			Extracted:   p.extractor.ApplyAll(draft.Content),
			Metadata:    draft.Metadata,
			CreatedAt:   now,
		}
	}
	return chunks
}

// embedChunks 受限并发向量化，单块失败不影响其余分块
func (p *Processor) embedChunks(ctx context.Context, chunks []*document.Chunk) []ChunkError {
	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup

	var mu sync.Mutex
	var failures []ChunkError

	for _, chunk := range chunks {
		wg.Add(1)
		sem <- struct{}{}
		go func(c *document.Chunk) {
			defer wg.Done()
			defer func() { <-sem }()

			embedding, err := p.embedder.EmbedText(ctx, c.Content)
			if err != nil {
				p.logger.Warn("Chunk embedding failed",
					"document_id", c.DocumentID, "ordinal", c.Index, "error", err)
				mu.Lock()
				failures = append(failures, ChunkError{Ordinal: c.Index, ChunkID: c.ID, Err: err})
				mu.Unlock()
				return
			}
			c.Embedding = embedding
		}(chunk)
	}
	wg.Wait()

	sort.Slice(failures, func(i, j int) bool { return failures[i].Ordinal < failures[j].Ordinal })
	return failures
}

// completeDocument 聚合文档级元数据并标记完成
func (p *Processor) completeDocument(doc *document.Document, stored []*document.Chunk, failures []ChunkError) {
	totalLength := 0
	contentTypes := make(map[string]int)
	schemas := make(map[string]bool)
	for _, chunk := range stored {
		totalLength += len(chunk.Content)
		contentTypes[chunk.ContentType]++
		for name := range chunk.Extracted {
			schemas[name] = true
		}
	}

	metadata := map[string]any{
		"total_chunks":         len(stored),
		"total_content_length": totalLength,
		"content_types":        contentTypes,
	}
	if len(stored) > 0 {
		metadata["avg_chunk_size"] = totalLength / len(stored)
	}
	if len(schemas) > 0 {
		applied := make([]string, 0, len(schemas))
		for name := range schemas {
			applied = append(applied, name)
		}
		sort.Strings(applied)
		metadata["schemas_applied"] = applied
	}
	if len(failures) > 0 {
		ordinals := make([]int, len(failures))
		for i, f := range failures {
			ordinals[i] = f.Ordinal
		}
		metadata["failed_chunks"] = ordinals
	}

	if err := p.docRepo.UpdateMetadata(doc.ID, metadata); err != nil {
		p.logger.Error("Failed to update document metadata", "document_id", doc.ID, "error", err)
	}
	p.setStatus(doc, document.StatusCompleted, "")
}

// fail 标记文档失败并保留错误信息
func (p *Processor) fail(doc *document.Document, err error) error {
	p.logger.Error("Document processing failed", "document_id", doc.ID, "error", err)
	p.setStatus(doc, document.StatusFailed, err.Error())
	return err
}

// setStatus 推进文档状态并广播
func (p *Processor) setStatus(doc *document.Document, status, errMsg string) {
	if err := p.docRepo.UpdateStatus(doc.ID, status, errMsg); err != nil {
		p.logger.Error("Failed to update document status",
			"document_id", doc.ID, "status", status, "error", err)
		return
	}
	doc.Status = status
	doc.ProcessingError = errMsg
	if p.notifier != nil {
		p.notifier.NotifyStatus(doc.OwnerID, doc.ID, status, errMsg)
	}
}

// readText 读取已上传文件的文本内容，PDF/docx 经格式解析后返回纯文本
func (p *Processor) readText(doc *document.Document) (string, error) {
	path := filepath.Join(p.uploadDir, doc.Filename)
	return p.texts.ReadText(path, doc.FileType)
}
