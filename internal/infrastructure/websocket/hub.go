package websocket

import (
	"encoding/json"
	"sync"
)

// Hub WebSocket 连接管理中心
// 连接按所有者分组，广播只达同一用户的订阅
type Hub struct {
	// 按用户分组的连接
	owners map[string]map[*Connection]bool
	// 注册连接
	register chan *Connection
	// 注销连接
	unregister chan *Connection
	// 广播消息
	broadcast chan *Message
	mu        sync.RWMutex
}

// Connection WebSocket 连接
type Connection struct {
	OwnerID string
	Send    chan []byte
}

// Message 消息
type Message struct {
	OwnerID string
	Data    []byte
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{
		owners:     make(map[string]map[*Connection]bool),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan *Message),
	}
}

// Run 运行 Hub（需要在 goroutine 中运行）
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			if h.owners[conn.OwnerID] == nil {
				h.owners[conn.OwnerID] = make(map[*Connection]bool)
			}
			h.owners[conn.OwnerID][conn] = true
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.owners[conn.OwnerID]; ok {
				if _, ok := conns[conn]; ok {
					delete(conns, conn)
					close(conn.Send)
					if len(conns) == 0 {
						delete(h.owners, conn.OwnerID)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			if conns, ok := h.owners[msg.OwnerID]; ok {
				for conn := range conns {
					select {
					case conn.Send <- msg.Data:
					default:
						close(conn.Send)
						delete(conns, conn)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Start 启动 Hub（启动后台 goroutine）
func (h *Hub) Start() {
	go h.Run()
}

// Register 注册连接
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister 注销连接
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// BroadcastToOwner 向指定用户的全部连接广播消息
func (h *Hub) BroadcastToOwner(ownerID string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	h.broadcast <- &Message{
		OwnerID: ownerID,
		Data:    jsonData,
	}
	return nil
}
