package document

import "time"

// 分块内容类型常量
const (
	ContentTypeText   = "text"
	ContentTypeTable  = "table"
	ContentTypeImage  = "image"
	ContentTypeHeader = "header"
)

// EmbeddingDimension 向量维度（text-embedding-3-small 兼容）
const EmbeddingDimension = 1536

// ChunkDraft 分块草稿
// 分块器的纯输出：尚未向量化、尚未落库
type ChunkDraft struct {
	Index       int            // 文档内序号，从 0 开始严格递增
	Content     string         // 分块文本
	ContentType string         // text/table/image/header
	Metadata    map[string]any // 分块级元数据（长度、词数、页码等）
}

// Chunk 知识分块模型
// 归属于唯一的 Document，删除文档时级联删除其全部分块
type Chunk struct {
	// 基础标识
	ID         string // UUID，同时作为向量库 point_id
	DocumentID string // 所属文档 ID
	OwnerID    string // 所属用户 ID（从 Document 镜像，用于隔离过滤）
	Index      int    // 文档内序号

	// 核心内容
	Content     string // 分块文本
	ContentType string // text/table/image/header

	// 向量
	Embedding     []float32            // 主向量（固定维度）
	AuxEmbeddings map[string][]float32 // 辅助向量，按用途键入（可选）

	// 结构化抽取结果与元数据
	Extracted map[string]any // schema 抽取输出，按 schema 名键入
	Metadata  map[string]any // 分块级元数据

	CreatedAt time.Time
}

// ContentPreview 获取分块内容预览（前 200 字符）
func (c *Chunk) ContentPreview() string {
	const previewLen = 200
	if len(c.Content) <= previewLen {
		return c.Content
	}
	return c.Content[:previewLen] + "..."
}
