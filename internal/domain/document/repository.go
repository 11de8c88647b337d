package document

import "errors"

// ErrNotFound 文档不存在
var ErrNotFound = errors.New("document not found")

// Repository 文档仓库接口
type Repository interface {
	Save(doc *Document) error
	Get(id string) (*Document, error)
	GetOwned(id, ownerID string) (*Document, error)
	List(ownerID string, limit, offset int) ([]*Document, error)
	UpdateStatus(id, status, processingError string) error
	UpdateMetadata(id string, metadata map[string]any) error
	Delete(id, ownerID string) error
	CompletedIDs(ownerID string, candidates []string) ([]string, error)
	Count(ownerID string) (int, error)
}

// ChunkStats 文档分块统计
type ChunkStats struct {
	TotalChunks        int
	TotalContentLength int
	ContentTypes       map[string]int
}

// ChunkRepository 分块元数据仓库接口
// 只存关系侧的行数据，向量侧由 vector store 负责
type ChunkRepository interface {
	SaveChunks(chunks []*Chunk) error
	GetChunk(id string) (*Chunk, error)
	GetChunksByDocument(documentID string) ([]*Chunk, error)
	DeleteChunksByDocument(documentID string) error
	Stats(documentID string) (*ChunkStats, error)
	Count(ownerID string) (int, error)
}
