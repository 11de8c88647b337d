package application

import (
	"github.com/google/wire"

	"github.com/docuchat/backend/internal/application/chat"
	"github.com/docuchat/backend/internal/application/ingest"
	"github.com/docuchat/backend/internal/application/retrieval"
)

// ProviderSet Application 层总 ProviderSet
var ProviderSet = wire.NewSet(
	ingest.ProviderSet,
	retrieval.ProviderSet,
	chat.ProviderSet,
)
