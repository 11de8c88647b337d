package textract

import "github.com/google/wire"

// ProviderSet 文本提取模块提供者集合
var ProviderSet = wire.NewSet(NewReader)
