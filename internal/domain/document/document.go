package document

import "time"

// 处理状态常量
// 状态只能由处理流水线推进：uploaded → processing → completed | failed
const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Document 文档模型
// 上传时创建，状态仅由处理流水线修改，检索流程只读
type Document struct {
	// 基础标识
	ID      string // UUID
	OwnerID string // 所属用户 ID

	// 文件信息
	Filename         string // 存储文件名（带 document_id 前缀）
	OriginalFilename string // 上传时的原始文件名
	FileType         string // pdf/docx/doc/md/txt
	FileSize         int64  // 字节数

	// 生命周期
	Status          string // uploaded/processing/completed/failed
	ProcessingError string // 失败时的错误信息

	// 文档级元数据（处理完成后由各分块聚合得到）
	Metadata map[string]any

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ProcessedAt time.Time // 零值表示尚未处理完成
}

// IsCompleted 检查文档是否已处理完成
func (d *Document) IsCompleted() bool {
	return d.Status == StatusCompleted
}

// IsTerminal 检查文档是否处于终态
func (d *Document) IsTerminal() bool {
	return d.Status == StatusCompleted || d.Status == StatusFailed
}
