package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/docuchat/backend/internal/domain/chat"
)

// 确保 MessageRepositoryImpl 实现了 chat.MessageRepository 接口
var _ chat.MessageRepository = (*MessageRepositoryImpl)(nil)

// MessageRepositoryImpl 消息仓库实现
type MessageRepositoryImpl struct {
	db *sql.DB
}

// NewMessageRepository 创建消息仓库实例
func NewMessageRepository(db *sql.DB) chat.MessageRepository {
	return &MessageRepositoryImpl{db: db}
}

// Save 保存消息
func (r *MessageRepositoryImpl) Save(message *chat.Message) error {
	referencedJSON, err := json.Marshal(message.ReferencedChunks)
	if err != nil {
		return fmt.Errorf("failed to marshal referenced chunks: %w", err)
	}
	metadataJSON, err := json.Marshal(message.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal message metadata: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO chat_messages (
			id, session_id, owner_id, role, content, referenced_chunks, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.Exec(
		query,
		message.ID,
		message.SessionID,
		message.OwnerID,
		message.Role,
		message.Content,
		string(referencedJSON),
		string(metadataJSON),
		message.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// ListBySession 列出会话的全部消息，按创建时间升序
func (r *MessageRepositoryImpl) ListBySession(sessionID string) ([]*chat.Message, error) {
	rows, err := r.db.Query(
		selectMessageSQL+" WHERE session_id = ? ORDER BY created_at ASC",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

// LastN 返回会话内最近的 n 条消息，按创建时间升序
func (r *MessageRepositoryImpl) LastN(sessionID string, n int) ([]*chat.Message, error) {
	rows, err := r.db.Query(
		`SELECT * FROM (`+selectMessageSQL+` WHERE session_id = ? ORDER BY created_at DESC LIMIT ?)
		 ORDER BY created_at ASC`,
		sessionID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

const selectMessageSQL = `
	SELECT id, session_id, owner_id, role, content, referenced_chunks, metadata, created_at
	FROM chat_messages`

func collectMessages(rows *sql.Rows) ([]*chat.Message, error) {
	messages := make([]*chat.Message, 0)
	for rows.Next() {
		var message chat.Message
		var referencedJSON, metadataJSON string
		var createdAt int64

		err := rows.Scan(
			&message.ID,
			&message.SessionID,
			&message.OwnerID,
			&message.Role,
			&message.Content,
			&referencedJSON,
			&metadataJSON,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		if err := json.Unmarshal([]byte(referencedJSON), &message.ReferencedChunks); err != nil {
			return nil, fmt.Errorf("failed to unmarshal referenced chunks: %w", err)
		}
		if err := json.Unmarshal([]byte(metadataJSON), &message.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message metadata: %w", err)
		}

		message.CreatedAt = time.Unix(0, createdAt)
		messages = append(messages, &message)
	}
	return messages, rows.Err()
}
