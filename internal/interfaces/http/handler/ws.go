package handler

import (
	"net/http"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"

	"github.com/docuchat/backend/internal/infrastructure/log"
	"github.com/docuchat/backend/internal/infrastructure/websocket"
	"github.com/docuchat/backend/internal/interfaces/http/middleware"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WSHandler 处理状态推送的 WebSocket 升级
type WSHandler struct {
	hub      *websocket.Hub
	upgrader gorilla.Upgrader
	logger   *slog.Logger
}

// NewWSHandler 创建 WebSocket 处理器
func NewWSHandler(hub *websocket.Hub) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 本地服务，不校验来源
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: log.NewModuleLogger("http", "websocket"),
	}
}

// Serve 升级连接并订阅该用户的处理状态事件
// GET /ws
func (h *WSHandler) Serve(c *gin.Context) {
	ownerID := middleware.OwnerID(c)

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", "error", err)
		return
	}

	conn := &websocket.Connection{
		OwnerID: ownerID,
		Send:    make(chan []byte, 16),
	}
	h.hub.Register(conn)
	h.logger.Info("WebSocket client connected", "owner_id", ownerID)

	go h.writeLoop(ws, conn)
	go h.readLoop(ws, conn)
}

// writeLoop 将 Hub 消息写入连接并定期发送 ping
func (h *WSHandler) writeLoop(ws *gorilla.Conn, conn *websocket.Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case data, ok := <-conn.Send:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(gorilla.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(gorilla.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorilla.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop 消费客户端消息，连接断开时注销
func (h *WSHandler) readLoop(ws *gorilla.Conn, conn *websocket.Connection) {
	defer func() {
		h.hub.Unregister(conn)
		ws.Close()
		h.logger.Info("WebSocket client disconnected", "owner_id", conn.OwnerID)
	}()

	ws.SetReadLimit(512)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}
