package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/docuchat/backend/internal/domain/chat"
	"github.com/docuchat/backend/internal/domain/document"
	"github.com/docuchat/backend/internal/infrastructure/log"
)

// Service 会话管理服务：创建、查询、删除与消息列表
type Service struct {
	sessionRepo  chat.SessionRepository
	messageRepo  chat.MessageRepository
	docRepo      document.Repository
	orchestrator *Orchestrator
	logger       *slog.Logger
}

// NewService 创建会话管理服务
func NewService(
	sessionRepo chat.SessionRepository,
	messageRepo chat.MessageRepository,
	docRepo document.Repository,
	orchestrator *Orchestrator,
) *Service {
	return &Service{
		sessionRepo:  sessionRepo,
		messageRepo:  messageRepo,
		docRepo:      docRepo,
		orchestrator: orchestrator,
		logger:       log.NewModuleLogger("chat", "service"),
	}
}

// CreateSession 创建会话，documentIDs 为空表示检索范围不限制
// 白名单中的文档必须属于该用户。
func (s *Service) CreateSession(ctx context.Context, ownerID, name string, documentIDs []string) (*chat.Session, error) {
	for _, docID := range documentIDs {
		if _, err := s.docRepo.GetOwned(docID, ownerID); err != nil {
			return nil, fmt.Errorf("document %s: %w", docID, err)
		}
	}

	if name == "" {
		name = "New chat"
	}

	now := time.Now()
	session := &chat.Session{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		Name:         name,
		DocumentIDs:  documentIDs,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := s.sessionRepo.Save(session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("Session created",
		"session_id", session.ID, "owner_id", ownerID, "documents", len(documentIDs))
	return session, nil
}

// GetSession 获取用户的会话
func (s *Service) GetSession(ctx context.Context, sessionID, ownerID string) (*chat.Session, error) {
	return s.sessionRepo.Get(sessionID, ownerID)
}

// ListSessions 按最近活动排列会话
func (s *Service) ListSessions(ctx context.Context, ownerID string) ([]*chat.Session, error) {
	return s.sessionRepo.List(ownerID)
}

// DeleteSession 删除会话及其全部消息
func (s *Service) DeleteSession(ctx context.Context, sessionID, ownerID string) error {
	if err := s.sessionRepo.Delete(sessionID, ownerID); err != nil {
		return err
	}
	s.orchestrator.releaseLock(sessionID)
	s.logger.Info("Session deleted", "session_id", sessionID, "owner_id", ownerID)
	return nil
}

// Messages 返回会话内的全部消息，按创建时间升序
func (s *Service) Messages(ctx context.Context, sessionID, ownerID string) ([]*chat.Message, error) {
	if _, err := s.sessionRepo.Get(sessionID, ownerID); err != nil {
		return nil, err
	}
	return s.messageRepo.ListBySession(sessionID)
}

// SendMessage 在会话中发送一条用户消息并返回助手回复
func (s *Service) SendMessage(ctx context.Context, sessionID, ownerID, content string) (*chat.Message, error) {
	return s.orchestrator.Respond(ctx, sessionID, ownerID, content)
}
