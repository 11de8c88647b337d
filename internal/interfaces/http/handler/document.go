package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"

	appIngest "github.com/docuchat/backend/internal/application/ingest"
	"github.com/docuchat/backend/internal/domain/document"
	"github.com/docuchat/backend/internal/infrastructure/log"
	"github.com/docuchat/backend/internal/interfaces/http/middleware"
	"github.com/docuchat/backend/internal/interfaces/http/response"
)

// DocumentHandler 文档处理器
type DocumentHandler struct {
	service *appIngest.Service
	logger  *slog.Logger
}

// NewDocumentHandler 创建文档处理器
func NewDocumentHandler(service *appIngest.Service) *DocumentHandler {
	return &DocumentHandler{
		service: service,
		logger:  log.NewModuleLogger("http", "document"),
	}
}

// DocumentView 文档响应视图
type DocumentView struct {
	ID               string         `json:"id"`
	Filename         string         `json:"filename"`
	FileType         string         `json:"file_type"`
	FileSize         int64          `json:"file_size"`
	Status           string         `json:"status"`
	ProcessingError  string         `json:"processing_error,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	ProcessedAt      *time.Time     `json:"processed_at,omitempty"`
}

func toDocumentView(doc *document.Document) *DocumentView {
	view := &DocumentView{
		ID:              doc.ID,
		Filename:        doc.OriginalFilename,
		FileType:        doc.FileType,
		FileSize:        doc.FileSize,
		Status:          doc.Status,
		ProcessingError: doc.ProcessingError,
		Metadata:        doc.Metadata,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
	if !doc.ProcessedAt.IsZero() {
		processedAt := doc.ProcessedAt
		view.ProcessedAt = &processedAt
	}
	return view
}

// Upload 上传文档
// POST /api/v1/documents
func (h *DocumentHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	doc, err := h.service.Upload(c.Request.Context(), middleware.OwnerID(c), header.Filename, header.Size, file)
	if err != nil {
		switch {
		case errors.Is(err, appIngest.ErrFileTooLarge):
			response.Error(c, http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, appIngest.ErrUnsupportedFileType):
			response.Error(c, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("Upload failed", "error", err)
			response.Error(c, http.StatusInternalServerError, err.Error())
		}
		return
	}

	response.Accepted(c, toDocumentView(doc))
}

// IngestTextRequest 文本接入请求
type IngestTextRequest struct {
	Name string `json:"name,omitempty"`
	Text string `json:"text" binding:"required"`
}

// IngestText 直接接入文本
// POST /api/v1/documents/text
func (h *DocumentHandler) IngestText(c *gin.Context) {
	var req IngestTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.service.IngestText(c.Request.Context(), middleware.OwnerID(c), req.Name, req.Text)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.Accepted(c, toDocumentView(doc))
}

// List 列出文档
// GET /api/v1/documents
func (h *DocumentHandler) List(c *gin.Context) {
	limit := intQuery(c, "limit", 20)
	offset := intQuery(c, "offset", 0)

	docs, err := h.service.List(c.Request.Context(), middleware.OwnerID(c), limit, offset)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]*DocumentView, len(docs))
	for i, doc := range docs {
		views[i] = toDocumentView(doc)
	}
	response.SuccessList(c, views, limit, offset, len(views))
}

// Get 获取单个文档
// GET /api/v1/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.service.Get(c.Request.Context(), c.Param("id"), middleware.OwnerID(c))
	if err != nil {
		notFoundOrError(c, err)
		return
	}
	response.Success(c, toDocumentView(doc))
}

// Status 查询文档处理状态
// GET /api/v1/documents/:id/status
func (h *DocumentHandler) Status(c *gin.Context) {
	doc, err := h.service.Get(c.Request.Context(), c.Param("id"), middleware.OwnerID(c))
	if err != nil {
		notFoundOrError(c, err)
		return
	}
	response.Success(c, gin.H{
		"document_id": doc.ID,
		"status":      doc.Status,
		"error":       doc.ProcessingError,
	})
}

// Delete 删除文档
// DELETE /api/v1/documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), middleware.OwnerID(c)); err != nil {
		notFoundOrError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// Stats 文档分块统计
// GET /api/v1/documents/:id/stats
func (h *DocumentHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), c.Param("id"), middleware.OwnerID(c))
	if err != nil {
		notFoundOrError(c, err)
		return
	}
	response.Success(c, gin.H{
		"total_chunks":         stats.TotalChunks,
		"total_content_length": stats.TotalContentLength,
		"content_types":        stats.ContentTypes,
	})
}

// notFoundOrError 将领域错误映射为 HTTP 状态码
func notFoundOrError(c *gin.Context, err error) {
	if errors.Is(err, document.ErrNotFound) {
		response.Error(c, http.StatusNotFound, err.Error())
		return
	}
	response.Error(c, http.StatusInternalServerError, err.Error())
}

// intQuery 解析整型查询参数
func intQuery(c *gin.Context, key string, defaultValue int) int {
	raw := c.Query(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return value
}
