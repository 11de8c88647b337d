package ingest

import (
	"github.com/google/wire"

	"github.com/docuchat/backend/internal/infrastructure/embedding"
	"github.com/docuchat/backend/internal/infrastructure/extraction"
	"github.com/docuchat/backend/internal/infrastructure/notification"
	"github.com/docuchat/backend/internal/infrastructure/textract"
	"github.com/docuchat/backend/internal/infrastructure/vector"
)

// ProvideChunker 提供默认配置的分块器
func ProvideChunker() (*Chunker, error) {
	return NewChunker(DefaultChunkerConfig())
}

// ProviderSet Ingest 应用层 ProviderSet
var ProviderSet = wire.NewSet(
	ProvideChunker, // 文本分块器
	NewProcessor,   // 处理流水线
	NewService,     // 文档接入服务
	wire.Bind(new(EmbeddingGateway), new(*embedding.Client)),
	wire.Bind(new(ChunkVectorStore), new(*vector.Store)),
	wire.Bind(new(TextReader), new(*textract.Reader)),
	wire.Bind(new(StructuredExtractor), new(*extraction.Extractor)),
	wire.Bind(new(StatusNotifier), new(*notification.ProcessingNotifier)),
)
