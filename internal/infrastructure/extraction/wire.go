package extraction

import "github.com/google/wire"

// ProviderSet Extraction 基础设施层 ProviderSet
var ProviderSet = wire.NewSet(
	NewLoader,        // schema 加载器
	NewExtractor,     // 结构化抽取器
	NewSchemaWatcher, // schema 目录热重载
)
