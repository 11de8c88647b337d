package retrieval

import (
	"github.com/google/wire"

	"github.com/docuchat/backend/internal/infrastructure/embedding"
	"github.com/docuchat/backend/internal/infrastructure/vector"
)

// ProviderSet Retrieval 应用层 ProviderSet
var ProviderSet = wire.NewSet(
	NewRetriever, // 语义检索服务
	wire.Bind(new(QueryEmbedder), new(*embedding.Client)),
	wire.Bind(new(NearestStore), new(*vector.Store)),
)
