package notification

import (
	"log/slog"
	"time"

	"github.com/docuchat/backend/internal/infrastructure/log"
	"github.com/docuchat/backend/internal/infrastructure/websocket"
)

// StatusEvent 文档处理状态事件
type StatusEvent struct {
	Type       string `json:"type"`
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// ProcessingNotifier 通过 WebSocket 推送文档处理状态变化
type ProcessingNotifier struct {
	hub    *websocket.Hub
	logger *slog.Logger
}

// NewProcessingNotifier 创建处理状态通知器
func NewProcessingNotifier(hub *websocket.Hub) *ProcessingNotifier {
	return &ProcessingNotifier{
		hub:    hub,
		logger: log.NewModuleLogger("notification", "processing"),
	}
}

// NotifyStatus 推送状态变化到文档所有者的全部连接
// 推送失败只记录日志，不影响处理流水线
func (n *ProcessingNotifier) NotifyStatus(ownerID, documentID, status, errMsg string) {
	event := &StatusEvent{
		Type:       "document_status",
		DocumentID: documentID,
		Status:     status,
		Error:      errMsg,
		Timestamp:  time.Now().Unix(),
	}

	if err := n.hub.BroadcastToOwner(ownerID, event); err != nil {
		n.logger.Warn("Failed to broadcast status event",
			"document_id", documentID, "status", status, "error", err)
	}
}
