package handler

import (
	"errors"
	"net/http"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"

	appChat "github.com/docuchat/backend/internal/application/chat"
	"github.com/docuchat/backend/internal/domain/chat"
	"github.com/docuchat/backend/internal/domain/document"
	"github.com/docuchat/backend/internal/infrastructure/llm"
	"github.com/docuchat/backend/internal/infrastructure/log"
	"github.com/docuchat/backend/internal/interfaces/http/middleware"
	"github.com/docuchat/backend/internal/interfaces/http/response"
)

// SessionHandler 聊天会话处理器
type SessionHandler struct {
	service *appChat.Service
	logger  *slog.Logger
}

// NewSessionHandler 创建聊天会话处理器
func NewSessionHandler(service *appChat.Service) *SessionHandler {
	return &SessionHandler{
		service: service,
		logger:  log.NewModuleLogger("http", "session"),
	}
}

// SessionView 会话响应视图
type SessionView struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	DocumentIDs  []string  `json:"document_ids,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

func toSessionView(s *chat.Session) *SessionView {
	return &SessionView{
		ID:           s.ID,
		Name:         s.Name,
		DocumentIDs:  s.DocumentIDs,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
	}
}

// MessageView 消息响应视图
type MessageView struct {
	ID               string         `json:"id"`
	Role             string         `json:"role"`
	Content          string         `json:"content"`
	ReferencedChunks []string       `json:"referenced_chunks,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

func toMessageView(m *chat.Message) *MessageView {
	return &MessageView{
		ID:               m.ID,
		Role:             m.Role,
		Content:          m.Content,
		ReferencedChunks: m.ReferencedChunks,
		Metadata:         m.Metadata,
		CreatedAt:        m.CreatedAt,
	}
}

// CreateSessionRequest 创建会话请求
type CreateSessionRequest struct {
	Name        string   `json:"name,omitempty"`
	DocumentIDs []string `json:"document_ids,omitempty"`
}

// Create 创建会话
// POST /api/v1/sessions
func (h *SessionHandler) Create(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.service.CreateSession(c.Request.Context(), middleware.OwnerID(c), req.Name, req.DocumentIDs)
	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			response.Error(c, http.StatusBadRequest, err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.Created(c, toSessionView(session))
}

// List 列出会话
// GET /api/v1/sessions
func (h *SessionHandler) List(c *gin.Context) {
	sessions, err := h.service.ListSessions(c.Request.Context(), middleware.OwnerID(c))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]*SessionView, len(sessions))
	for i, s := range sessions {
		views[i] = toSessionView(s)
	}
	response.Success(c, gin.H{"sessions": views, "count": len(views)})
}

// Get 获取单个会话
// GET /api/v1/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.service.GetSession(c.Request.Context(), c.Param("id"), middleware.OwnerID(c))
	if err != nil {
		h.sessionError(c, err)
		return
	}
	response.Success(c, toSessionView(session))
}

// Delete 删除会话
// DELETE /api/v1/sessions/:id
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteSession(c.Request.Context(), c.Param("id"), middleware.OwnerID(c)); err != nil {
		h.sessionError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// Messages 会话消息列表
// GET /api/v1/sessions/:id/messages
func (h *SessionHandler) Messages(c *gin.Context) {
	messages, err := h.service.Messages(c.Request.Context(), c.Param("id"), middleware.OwnerID(c))
	if err != nil {
		h.sessionError(c, err)
		return
	}

	views := make([]*MessageView, len(messages))
	for i, m := range messages {
		views[i] = toMessageView(m)
	}
	response.Success(c, gin.H{"messages": views, "count": len(views)})
}

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// SendMessage 在会话中发送消息并返回助手回复
// POST /api/v1/sessions/:id/messages
func (h *SessionHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := h.service.SendMessage(c.Request.Context(), c.Param("id"), middleware.OwnerID(c), req.Content)
	if err != nil {
		if errors.Is(err, llm.ErrUnavailable) {
			response.Error(c, http.StatusServiceUnavailable, err.Error())
			return
		}
		h.sessionError(c, err)
		return
	}

	response.Success(c, toMessageView(reply))
}

// sessionError 将会话错误映射为 HTTP 状态码
func (h *SessionHandler) sessionError(c *gin.Context, err error) {
	if errors.Is(err, chat.ErrSessionNotFound) {
		response.Error(c, http.StatusNotFound, err.Error())
		return
	}
	h.logger.Error("Session request failed", "error", err)
	response.Error(c, http.StatusInternalServerError, err.Error())
}
