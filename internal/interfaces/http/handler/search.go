package handler

import (
	"errors"
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/docuchat/backend/internal/application/retrieval"
	"github.com/docuchat/backend/internal/infrastructure/embedding"
	"github.com/docuchat/backend/internal/infrastructure/log"
	"github.com/docuchat/backend/internal/interfaces/http/middleware"
	"github.com/docuchat/backend/internal/interfaces/http/response"
)

// SearchHandler 语义搜索处理器
type SearchHandler struct {
	retriever *retrieval.Retriever
	logger    *slog.Logger
}

// NewSearchHandler 创建语义搜索处理器
func NewSearchHandler(retriever *retrieval.Retriever) *SearchHandler {
	return &SearchHandler{
		retriever: retriever,
		logger:    log.NewModuleLogger("http", "search"),
	}
}

// SearchRequest 搜索请求
type SearchRequest struct {
	Query       string   `json:"query" binding:"required"`
	DocumentIDs []string `json:"document_ids,omitempty"`
	ContentType string   `json:"content_type,omitempty"`
	Threshold   float32  `json:"threshold,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}

// Search 处理语义搜索请求
// POST /api/v1/search
func (h *SearchHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	results, err := h.retriever.Retrieve(c.Request.Context(), retrieval.Query{
		OwnerID:     middleware.OwnerID(c),
		Text:        req.Query,
		DocumentIDs: req.DocumentIDs,
		ContentType: req.ContentType,
		Threshold:   req.Threshold,
		Limit:       req.Limit,
	})
	if err != nil {
		if errors.Is(err, embedding.ErrUnavailable) {
			response.Error(c, http.StatusServiceUnavailable, err.Error())
			return
		}
		h.logger.Error("Search failed", "error", err)
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.Success(c, gin.H{
		"results": results,
		"count":   len(results),
	})
}
