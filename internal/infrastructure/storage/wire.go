package storage

import "github.com/google/wire"

// ProviderSet Storage 基础设施层 ProviderSet
var ProviderSet = wire.NewSet(
	ProvideDB,             // 提供数据库连接
	NewDocumentRepository, // 文档仓储
	NewChunkRepository,    // 分块元数据仓储
	NewSessionRepository,  // 聊天会话仓储
	NewMessageRepository,  // 聊天消息仓储
)
