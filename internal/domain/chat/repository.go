package chat

import (
	"errors"
	"time"
)

// ErrSessionNotFound 会话不存在
var ErrSessionNotFound = errors.New("chat session not found")

// SessionRepository 会话仓库接口
type SessionRepository interface {
	Save(session *Session) error
	Get(id, ownerID string) (*Session, error)
	List(ownerID string) ([]*Session, error)
	TouchActivity(id string, at time.Time) error
	Delete(id, ownerID string) error
	DeleteIdleBefore(cutoff time.Time) ([]string, error)
	Count(ownerID string) (int, error)
}

// MessageRepository 消息仓库接口
type MessageRepository interface {
	Save(message *Message) error
	ListBySession(sessionID string) ([]*Message, error)
	// LastN 返回会话内最近的 n 条消息，按创建时间升序
	LastN(sessionID string, n int) ([]*Message, error)
}
