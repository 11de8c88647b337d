package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docuchat/backend/internal/domain/chat"
	"github.com/docuchat/backend/internal/domain/document"
	"github.com/docuchat/backend/internal/infrastructure/config"
	"github.com/docuchat/backend/internal/infrastructure/log"
)

// 上传校验错误
var (
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrUnsupportedFileType = errors.New("unsupported file type")
)

// allowedFileTypes 允许上传的扩展名
// 旧版二进制 .doc 不在列表里：处理流水线没有对应的文本提取器
var allowedFileTypes = map[string]bool{
	"pdf":  true,
	"docx": true,
	"md":   true,
	"txt":  true,
}

// Service 文档接入服务：上传、直接文本接入、查询、删除与统计
type Service struct {
	docRepo     document.Repository
	chunkRepo   document.ChunkRepository
	sessionRepo chat.SessionRepository
	store       ChunkVectorStore
	processor   *Processor
	uploadDir   string
	maxFileSize int64
	logger      *slog.Logger
}

// NewService 创建文档接入服务
func NewService(
	cfg *config.Config,
	docRepo document.Repository,
	chunkRepo document.ChunkRepository,
	sessionRepo chat.SessionRepository,
	store ChunkVectorStore,
	processor *Processor,
) *Service {
	return &Service{
		docRepo:     docRepo,
		chunkRepo:   chunkRepo,
		sessionRepo: sessionRepo,
		store:       store,
		processor:   processor,
		uploadDir:   cfg.Ingest.UploadDir,
		maxFileSize: cfg.Ingest.MaxFileSize,
		logger:      log.NewModuleLogger("ingest", "service"),
	}
}

// Upload 校验并保存上传文件，创建文档记录并触发后台处理
func (s *Service) Upload(ctx context.Context, ownerID, originalFilename string, size int64, r io.Reader) (*document.Document, error) {
	if size > s.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, size)
	}

	fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(originalFilename)), ".")
	if !allowedFileTypes[fileType] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, fileType)
	}

	doc := s.newDocument(ownerID, originalFilename, fileType, size)

	if err := s.saveFile(doc.Filename, io.LimitReader(r, s.maxFileSize+1)); err != nil {
		return nil, fmt.Errorf("failed to save uploaded file: %w", err)
	}
	if err := s.docRepo.Save(doc); err != nil {
		os.Remove(filepath.Join(s.uploadDir, doc.Filename))
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}

	s.logger.Info("Document uploaded",
		"document_id", doc.ID, "owner_id", ownerID, "filename", originalFilename, "size", size)

	s.startProcessing(doc.ID)
	return doc, nil
}

// IngestText 直接接入一段文本作为文档
func (s *Service) IngestText(ctx context.Context, ownerID, name, text string) (*document.Document, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text content is empty")
	}
	if name == "" {
		name = "inline.txt"
	}
	if !strings.Contains(name, ".") {
		name += ".txt"
	}

	doc := s.newDocument(ownerID, name, "txt", int64(len(text)))

	if err := s.saveFile(doc.Filename, strings.NewReader(text)); err != nil {
		return nil, fmt.Errorf("failed to save text content: %w", err)
	}
	if err := s.docRepo.Save(doc); err != nil {
		os.Remove(filepath.Join(s.uploadDir, doc.Filename))
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}

	s.startProcessing(doc.ID)
	return doc, nil
}

// newDocument 构造 uploaded 状态的文档记录
func (s *Service) newDocument(ownerID, originalFilename, fileType string, size int64) *document.Document {
	now := time.Now()
	id := uuid.NewString()
	return &document.Document{
		ID:               id,
		OwnerID:          ownerID,
		Filename:         id + "_" + sanitizeFilename(originalFilename),
		OriginalFilename: originalFilename,
		FileType:         fileType,
		FileSize:         size,
		Status:           document.StatusUploaded,
		Metadata:         map[string]any{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// startProcessing 在后台运行处理流水线
func (s *Service) startProcessing(documentID string) {
	go func() {
		if err := s.processor.Process(context.Background(), documentID); err != nil {
			s.logger.Warn("Background processing finished with error",
				"document_id", documentID, "error", err)
		}
	}()
}

// saveFile 将内容写入上传目录
func (s *Service) saveFile(filename string, r io.Reader) error {
	if err := os.MkdirAll(s.uploadDir, 0755); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(s.uploadDir, filename))
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(f, r)
	return err
}

// Get 获取用户的单个文档
func (s *Service) Get(ctx context.Context, documentID, ownerID string) (*document.Document, error) {
	return s.docRepo.GetOwned(documentID, ownerID)
}

// List 分页列出用户的文档
func (s *Service) List(ctx context.Context, ownerID string, limit, offset int) ([]*document.Document, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.docRepo.List(ownerID, limit, offset)
}

// Delete 删除文档：行数据级联、向量与上传文件一并清除
func (s *Service) Delete(ctx context.Context, documentID, ownerID string) error {
	doc, err := s.docRepo.GetOwned(documentID, ownerID)
	if err != nil {
		return err
	}

	if err := s.docRepo.Delete(documentID, ownerID); err != nil {
		return err
	}
	if err := s.store.DeleteByDocument(ctx, documentID); err != nil {
		// 行数据已删，向量清理失败只记录
		s.logger.Error("Failed to delete document vectors", "document_id", documentID, "error", err)
	}
	if doc.Filename != "" {
		if err := os.Remove(filepath.Join(s.uploadDir, doc.Filename)); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("Failed to remove uploaded file", "document_id", documentID, "error", err)
		}
	}

	s.logger.Info("Document deleted", "document_id", documentID, "owner_id", ownerID)
	return nil
}

// Stats 文档分块统计
func (s *Service) Stats(ctx context.Context, documentID, ownerID string) (*document.ChunkStats, error) {
	if _, err := s.docRepo.GetOwned(documentID, ownerID); err != nil {
		return nil, err
	}
	return s.chunkRepo.Stats(documentID)
}

// ServiceTotals 服务级总量统计
type ServiceTotals struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
	Sessions  int `json:"sessions"`
}

// Totals 用户维度的服务总量
func (s *Service) Totals(ctx context.Context, ownerID string) (*ServiceTotals, error) {
	documents, err := s.docRepo.Count(ownerID)
	if err != nil {
		return nil, err
	}
	chunks, err := s.chunkRepo.Count(ownerID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessionRepo.Count(ownerID)
	if err != nil {
		return nil, err
	}
	return &ServiceTotals{Documents: documents, Chunks: chunks, Sessions: sessions}, nil
}

// sanitizeFilename 清理文件名中的路径分隔符与空白
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, " ", "_")
	return name
}
