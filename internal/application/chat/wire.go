package chat

import (
	"github.com/google/wire"

	"github.com/docuchat/backend/internal/application/retrieval"
	"github.com/docuchat/backend/internal/infrastructure/llm"
)

// ProviderSet Chat 应用层 ProviderSet
var ProviderSet = wire.NewSet(
	NewPromptBuilder, // 提示词构建器
	NewOrchestrator,  // 聊天编排器
	NewService,       // 会话管理服务
	NewSweeper,       // 空闲会话清理
	wire.Bind(new(EvidenceRetriever), new(*retrieval.Retriever)),
	wire.Bind(new(Completer), new(*llm.Client)),
)
