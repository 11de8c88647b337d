package chat

import "time"

// Session 聊天会话模型
// DocumentIDs 定义会话的检索范围：空集合表示不限制（搜索用户全部文档）
type Session struct {
	ID          string   // UUID
	OwnerID     string   // 所属用户 ID
	Name        string   // 显示名称
	DocumentIDs []string // 检索范围文档集合

	CreatedAt    time.Time
	LastActivity time.Time // 每次消息交换后刷新
}

// IdleSince 检查会话在给定时间之前是否一直无活动
func (s *Session) IdleSince(cutoff time.Time) bool {
	return s.LastActivity.Before(cutoff)
}
