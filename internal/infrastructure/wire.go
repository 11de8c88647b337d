package infrastructure

import (
	"github.com/google/wire"

	"github.com/docuchat/backend/internal/infrastructure/config"
	"github.com/docuchat/backend/internal/infrastructure/embedding"
	"github.com/docuchat/backend/internal/infrastructure/extraction"
	"github.com/docuchat/backend/internal/infrastructure/llm"
	"github.com/docuchat/backend/internal/infrastructure/notification"
	"github.com/docuchat/backend/internal/infrastructure/storage"
	"github.com/docuchat/backend/internal/infrastructure/textract"
	"github.com/docuchat/backend/internal/infrastructure/vector"
	"github.com/docuchat/backend/internal/infrastructure/websocket"
)

// ProviderSet Infrastructure 层总 ProviderSet
var ProviderSet = wire.NewSet(
	config.ProviderSet,
	storage.ProviderSet,
	vector.ProviderSet,
	embedding.ProviderSet,
	llm.ProviderSet,
	extraction.ProviderSet,
	textract.ProviderSet,
	websocket.ProviderSet,
	notification.ProviderSet,
)
