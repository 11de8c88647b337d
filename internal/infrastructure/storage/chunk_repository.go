package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/docuchat/backend/internal/domain/document"
)

// 确保 ChunkRepositoryImpl 实现了 document.ChunkRepository 接口
var _ document.ChunkRepository = (*ChunkRepositoryImpl)(nil)

// ChunkRepositoryImpl 分块元数据仓库实现
type ChunkRepositoryImpl struct {
	db *sql.DB
}

// NewChunkRepository 创建分块仓库实例
func NewChunkRepository(db *sql.DB) document.ChunkRepository {
	return &ChunkRepositoryImpl{db: db}
}

// SaveChunks 批量保存分块行（事务 + 预编译语句）
func (r *ChunkRepositoryImpl) SaveChunks(chunks []*document.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO chunks (
			id, document_id, owner_id, chunk_index, content, content_type,
			content_length, extracted, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		extractedJSON, err := json.Marshal(chunk.Extracted)
		if err != nil {
			return fmt.Errorf("failed to marshal extracted fields for chunk %s: %w", chunk.ID, err)
		}
		metadataJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for chunk %s: %w", chunk.ID, err)
		}

		_, err = stmt.Exec(
			chunk.ID,
			chunk.DocumentID,
			chunk.OwnerID,
			chunk.Index,
			chunk.Content,
			chunk.ContentType,
			len(chunk.Content),
			string(extractedJSON),
			string(metadataJSON),
			chunk.CreatedAt.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("failed to save chunk %s: %w", chunk.ID, err)
		}
	}

	return tx.Commit()
}

// GetChunk 按 ID 获取分块
func (r *ChunkRepositoryImpl) GetChunk(id string) (*document.Chunk, error) {
	row := r.db.QueryRow(selectChunkSQL+" WHERE id = ?", id)
	return scanChunk(row)
}

// GetChunksByDocument 获取文档的全部分块，按序号升序
func (r *ChunkRepositoryImpl) GetChunksByDocument(documentID string) ([]*document.Chunk, error) {
	rows, err := r.db.Query(
		selectChunkSQL+" WHERE document_id = ? ORDER BY chunk_index ASC",
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	chunks := make([]*document.Chunk, 0)
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// DeleteChunksByDocument 删除文档的全部分块行
func (r *ChunkRepositoryImpl) DeleteChunksByDocument(documentID string) error {
	if _, err := r.db.Exec(`DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// Stats 统计文档分块：总数、内容总长度、按内容类型计数
func (r *ChunkRepositoryImpl) Stats(documentID string) (*document.ChunkStats, error) {
	stats := &document.ChunkStats{
		ContentTypes: make(map[string]int),
	}

	rows, err := r.db.Query(
		`SELECT content_type, COUNT(*), COALESCE(SUM(content_length), 0)
		 FROM chunks WHERE document_id = ? GROUP BY content_type`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var contentType string
		var count, length int
		if err := rows.Scan(&contentType, &count, &length); err != nil {
			return nil, fmt.Errorf("failed to scan chunk stats: %w", err)
		}
		stats.ContentTypes[contentType] = count
		stats.TotalChunks += count
		stats.TotalContentLength += length
	}
	return stats, rows.Err()
}

// Count 统计用户的分块总数
func (r *ChunkRepositoryImpl) Count(ownerID string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM chunks WHERE owner_id = ?`, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

const selectChunkSQL = `
	SELECT id, document_id, owner_id, chunk_index, content, content_type,
	       extracted, metadata, created_at
	FROM chunks`

func scanChunk(row rowScanner) (*document.Chunk, error) {
	var chunk document.Chunk
	var extractedJSON, metadataJSON string
	var createdAt int64

	err := row.Scan(
		&chunk.ID,
		&chunk.DocumentID,
		&chunk.OwnerID,
		&chunk.Index,
		&chunk.Content,
		&chunk.ContentType,
		&extractedJSON,
		&metadataJSON,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, document.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan chunk: %w", err)
	}

	if err := json.Unmarshal([]byte(extractedJSON), &chunk.Extracted); err != nil {
		return nil, fmt.Errorf("failed to unmarshal extracted fields: %w", err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &chunk.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chunk metadata: %w", err)
	}

	chunk.CreatedAt = time.Unix(0, createdAt)
	return &chunk, nil
}
