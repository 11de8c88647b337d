package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/docuchat/backend/internal/domain/chat"
)

// 确保 SessionRepositoryImpl 实现了 chat.SessionRepository 接口
var _ chat.SessionRepository = (*SessionRepositoryImpl)(nil)

// SessionRepositoryImpl 会话仓库实现
type SessionRepositoryImpl struct {
	db *sql.DB
}

// NewSessionRepository 创建会话仓库实例
func NewSessionRepository(db *sql.DB) chat.SessionRepository {
	return &SessionRepositoryImpl{db: db}
}

// Save 保存会话
func (r *SessionRepositoryImpl) Save(session *chat.Session) error {
	documentIDsJSON, err := json.Marshal(session.DocumentIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal document ids: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO chat_sessions (
			id, owner_id, name, document_ids, created_at, last_activity
		) VALUES (?, ?, ?, ?, ?, ?)`

	_, err = r.db.Exec(
		query,
		session.ID,
		session.OwnerID,
		session.Name,
		string(documentIDsJSON),
		session.CreatedAt.UnixNano(),
		session.LastActivity.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Get 按 ID 获取会话，并校验所有者
func (r *SessionRepositoryImpl) Get(id, ownerID string) (*chat.Session, error) {
	row := r.db.QueryRow(selectSessionSQL+" WHERE id = ? AND owner_id = ?", id, ownerID)
	return scanSession(row)
}

// List 列出用户的全部会话，按最近活动倒序
func (r *SessionRepositoryImpl) List(ownerID string) ([]*chat.Session, error) {
	rows, err := r.db.Query(
		selectSessionSQL+" WHERE owner_id = ? ORDER BY last_activity DESC",
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*chat.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// TouchActivity 刷新会话活动时间
func (r *SessionRepositoryImpl) TouchActivity(id string, at time.Time) error {
	result, err := r.db.Exec(
		`UPDATE chat_sessions SET last_activity = ? WHERE id = ?`,
		at.UnixNano(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to touch session activity: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return chat.ErrSessionNotFound
	}
	return nil
}

// Delete 删除会话及其全部消息
func (r *SessionRepositoryImpl) Delete(id, ownerID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`DELETE FROM chat_sessions WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return chat.ErrSessionNotFound
	}

	if _, err := tx.Exec(`DELETE FROM chat_messages WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session messages: %w", err)
	}

	return tx.Commit()
}

// DeleteIdleBefore 删除活动时间早于 cutoff 的会话及其消息，返回被删除的会话 ID
func (r *SessionRepositoryImpl) DeleteIdleBefore(cutoff time.Time) ([]string, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`SELECT id FROM chat_sessions WHERE last_activity < ?`, cutoff.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query idle sessions: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan idle session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate idle sessions: %w", err)
	}
	rows.Close()

	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	if _, err := tx.Exec(
		`DELETE FROM chat_messages WHERE session_id IN
		 (SELECT id FROM chat_sessions WHERE last_activity < ?)`,
		cutoff.UnixNano(),
	); err != nil {
		return nil, fmt.Errorf("failed to delete idle session messages: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM chat_sessions WHERE last_activity < ?`, cutoff.UnixNano()); err != nil {
		return nil, fmt.Errorf("failed to delete idle sessions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return ids, nil
}

// Count 统计用户的会话总数
func (r *SessionRepositoryImpl) Count(ownerID string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM chat_sessions WHERE owner_id = ?`, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

const selectSessionSQL = `
	SELECT id, owner_id, name, document_ids, created_at, last_activity
	FROM chat_sessions`

func scanSession(row rowScanner) (*chat.Session, error) {
	var session chat.Session
	var documentIDsJSON string
	var createdAt, lastActivity int64

	err := row.Scan(
		&session.ID,
		&session.OwnerID,
		&session.Name,
		&documentIDsJSON,
		&createdAt,
		&lastActivity,
	)
	if err == sql.ErrNoRows {
		return nil, chat.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	if err := json.Unmarshal([]byte(documentIDsJSON), &session.DocumentIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document ids: %w", err)
	}

	session.CreatedAt = time.Unix(0, createdAt)
	session.LastActivity = time.Unix(0, lastActivity)
	return &session, nil
}
