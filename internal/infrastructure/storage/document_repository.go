package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/docuchat/backend/internal/domain/document"
)

// 确保 DocumentRepositoryImpl 实现了 document.Repository 接口
var _ document.Repository = (*DocumentRepositoryImpl)(nil)

// DocumentRepositoryImpl 文档仓库实现
type DocumentRepositoryImpl struct {
	db *sql.DB
}

// NewDocumentRepository 创建文档仓库实例
func NewDocumentRepository(db *sql.DB) document.Repository {
	return &DocumentRepositoryImpl{db: db}
}

// Save 保存文档（存在则整行覆盖）
func (r *DocumentRepositoryImpl) Save(doc *document.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal document metadata: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO documents (
			id, owner_id, filename, original_filename, file_type, file_size,
			status, processing_error, metadata, created_at, updated_at, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.Exec(
		query,
		doc.ID,
		doc.OwnerID,
		doc.Filename,
		doc.OriginalFilename,
		doc.FileType,
		doc.FileSize,
		doc.Status,
		doc.ProcessingError,
		string(metadataJSON),
		doc.CreatedAt.UnixNano(),
		doc.UpdatedAt.UnixNano(),
		nanoOrZero(doc.ProcessedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// Get 按 ID 获取文档
func (r *DocumentRepositoryImpl) Get(id string) (*document.Document, error) {
	row := r.db.QueryRow(selectDocumentSQL+" WHERE id = ?", id)
	return scanDocument(row)
}

// GetOwned 按 ID 获取文档，并校验所有者
func (r *DocumentRepositoryImpl) GetOwned(id, ownerID string) (*document.Document, error) {
	row := r.db.QueryRow(selectDocumentSQL+" WHERE id = ? AND owner_id = ?", id, ownerID)
	return scanDocument(row)
}

// List 分页列出用户的文档，按创建时间倒序
func (r *DocumentRepositoryImpl) List(ownerID string, limit, offset int) ([]*document.Document, error) {
	rows, err := r.db.Query(
		selectDocumentSQL+" WHERE owner_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?",
		ownerID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*document.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// UpdateStatus 更新文档处理状态
func (r *DocumentRepositoryImpl) UpdateStatus(id, status, processingError string) error {
	now := time.Now().UnixNano()

	var result sql.Result
	var err error
	if status == document.StatusCompleted {
		result, err = r.db.Exec(
			`UPDATE documents SET status = ?, processing_error = ?, updated_at = ?, processed_at = ? WHERE id = ?`,
			status, processingError, now, now, id,
		)
	} else {
		result, err = r.db.Exec(
			`UPDATE documents SET status = ?, processing_error = ?, updated_at = ? WHERE id = ?`,
			status, processingError, now, id,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return document.ErrNotFound
	}
	return nil
}

// UpdateMetadata 更新文档级元数据
func (r *DocumentRepositoryImpl) UpdateMetadata(id string, metadata map[string]any) error {
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal document metadata: %w", err)
	}

	result, err := r.db.Exec(
		`UPDATE documents SET metadata = ?, updated_at = ? WHERE id = ?`,
		string(metadataJSON), time.Now().UnixNano(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update document metadata: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return document.ErrNotFound
	}
	return nil
}

// Delete 删除文档及其全部分块行
func (r *DocumentRepositoryImpl) Delete(id, ownerID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`DELETE FROM documents WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return document.ErrNotFound
	}

	if _, err := tx.Exec(`DELETE FROM chunks WHERE document_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete document chunks: %w", err)
	}

	return tx.Commit()
}

// CompletedIDs 在候选集合中筛出属于该用户且已处理完成的文档 ID
func (r *DocumentRepositoryImpl) CompletedIDs(ownerID string, candidates []string) ([]string, error) {
	if len(candidates) == 0 {
		// 无候选时返回用户全部已完成文档
		rows, err := r.db.Query(
			`SELECT id FROM documents WHERE owner_id = ? AND status = ?`,
			ownerID, document.StatusCompleted,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to query completed documents: %w", err)
		}
		defer rows.Close()
		return collectIDs(rows)
	}

	placeholders := strings.Repeat("?,", len(candidates))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(candidates)+2)
	args = append(args, ownerID, document.StatusCompleted)
	for _, id := range candidates {
		args = append(args, id)
	}

	rows, err := r.db.Query(
		fmt.Sprintf(`SELECT id FROM documents WHERE owner_id = ? AND status = ? AND id IN (%s)`, placeholders),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed documents: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

// Count 统计用户的文档总数
func (r *DocumentRepositoryImpl) Count(ownerID string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM documents WHERE owner_id = ?`, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

const selectDocumentSQL = `
	SELECT id, owner_id, filename, original_filename, file_type, file_size,
	       status, processing_error, metadata, created_at, updated_at, processed_at
	FROM documents`

// rowScanner 兼容 *sql.Row 与 *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*document.Document, error) {
	var doc document.Document
	var metadataJSON string
	var createdAt, updatedAt, processedAt int64

	err := row.Scan(
		&doc.ID,
		&doc.OwnerID,
		&doc.Filename,
		&doc.OriginalFilename,
		&doc.FileType,
		&doc.FileSize,
		&doc.Status,
		&doc.ProcessingError,
		&metadataJSON,
		&createdAt,
		&updatedAt,
		&processedAt,
	)
	if err == sql.ErrNoRows {
		return nil, document.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}

	if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document metadata: %w", err)
	}

	doc.CreatedAt = time.Unix(0, createdAt)
	doc.UpdatedAt = time.Unix(0, updatedAt)
	if processedAt > 0 {
		doc.ProcessedAt = time.Unix(0, processedAt)
	}

	return &doc, nil
}

func collectIDs(rows *sql.Rows) ([]string, error) {
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nanoOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
