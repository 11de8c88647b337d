package chat

import "time"

// 消息角色常量
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message 聊天消息模型
// 创建后不可变，会话内按创建时间排序
type Message struct {
	ID        string // UUID
	SessionID string // 所属会话 ID
	OwnerID   string // 所属用户 ID
	Role      string // user/assistant/system
	Content   string // 消息文本

	// ReferencedChunks 实际进入提示词的分块 ID（仅 assistant 消息）
	ReferencedChunks []string

	// Metadata 消息级元数据（degraded_context 标记、检索统计等）
	Metadata map[string]any

	CreatedAt time.Time
}
