package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docuchat/backend/internal/application/retrieval"
	"github.com/docuchat/backend/internal/domain/chat"
	"github.com/docuchat/backend/internal/infrastructure/config"
	"github.com/docuchat/backend/internal/infrastructure/llm"
	"github.com/docuchat/backend/internal/infrastructure/log"
)

// EvidenceRetriever 语义检索入口
type EvidenceRetriever interface {
	Retrieve(ctx context.Context, q retrieval.Query) ([]*retrieval.Evidence, error)
}

// Completer 补全网关
type Completer interface {
	Chat(ctx context.Context, messages []llm.Message, maxTokens int, temperature float32) (string, error)
}

// Orchestrator 聊天编排器
// 同一会话的消息串行处理；用户消息先落库，补全失败不产生助手消息。
type Orchestrator struct {
	sessionRepo chat.SessionRepository
	messageRepo chat.MessageRepository
	retriever   EvidenceRetriever
	completer   Completer
	prompts     *PromptBuilder

	maxTokens    int
	temperature  float32
	historyLimit int

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	logger *slog.Logger
}

// NewOrchestrator 创建聊天编排器
func NewOrchestrator(
	cfg *config.Config,
	sessionRepo chat.SessionRepository,
	messageRepo chat.MessageRepository,
	retriever EvidenceRetriever,
	completer Completer,
	prompts *PromptBuilder,
) *Orchestrator {
	return &Orchestrator{
		sessionRepo:  sessionRepo,
		messageRepo:  messageRepo,
		retriever:    retriever,
		completer:    completer,
		prompts:      prompts,
		maxTokens:    cfg.Completion.MaxTokens,
		temperature:  cfg.Completion.Temperature,
		historyLimit: cfg.Chat.HistoryLimit,
		locks:        make(map[string]*sync.Mutex),
		logger:       log.NewModuleLogger("chat", "orchestrator"),
	}
}

// sessionLock 按会话 ID 取互斥锁
func (o *Orchestrator) sessionLock(sessionID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[sessionID] = lock
	}
	return lock
}

// releaseLock 移除会话锁（会话删除时调用）
func (o *Orchestrator) releaseLock(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.locks, sessionID)
}

// Respond 处理一次消息交换并返回助手回复
// 检索失败时降级为无证据回答并在助手消息元数据中标记 degraded_context；
// 补全失败时返回错误，用户消息保留，不写入助手消息。
func (o *Orchestrator) Respond(ctx context.Context, sessionID, ownerID, content string) (*chat.Message, error) {
	if content == "" {
		return nil, fmt.Errorf("message content is empty")
	}

	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := o.sessionRepo.Get(sessionID, ownerID)
	if err != nil {
		return nil, err
	}

	logger := o.logger.With("session_id", sessionID, "owner_id", ownerID)

	// 历史在用户消息落库前读取，当前问题单独附在末尾
	history, err := o.messageRepo.LastN(sessionID, o.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load session history: %w", err)
	}

	userMsg := newMessage(session, chat.RoleUser, content)
	if err := o.messageRepo.Save(userMsg); err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	evidence, retrieveErr := o.retriever.Retrieve(ctx, retrieval.Query{
		OwnerID:     ownerID,
		Text:        content,
		DocumentIDs: session.DocumentIDs,
	})
	degraded := retrieveErr != nil
	if degraded {
		logger.Warn("Retrieval failed, answering without document context", "error", retrieveErr)
	}

	prompt := o.prompts.Build(evidence, history, content, degraded)

	answer, err := o.completer.Chat(ctx, prompt.Messages, o.maxTokens, o.temperature)
	if err != nil {
		// 用户消息保留，本轮没有助手回复
		logger.Error("Completion failed", "error", err)
		return nil, fmt.Errorf("completion failed: %w", err)
	}

	assistantMsg := newMessage(session, chat.RoleAssistant, answer)
	assistantMsg.ReferencedChunks = prompt.ReferencedChunks
	assistantMsg.Metadata = map[string]any{
		"evidence_count": len(prompt.ReferencedChunks),
	}
	if degraded {
		assistantMsg.Metadata["degraded_context"] = true
	}

	if err := o.messageRepo.Save(assistantMsg); err != nil {
		return nil, fmt.Errorf("failed to save assistant message: %w", err)
	}

	if err := o.sessionRepo.TouchActivity(sessionID, assistantMsg.CreatedAt); err != nil {
		logger.Warn("Failed to refresh session activity", "error", err)
	}

	logger.Info("Message exchange completed",
		"evidence", len(prompt.ReferencedChunks), "degraded", degraded)
	return assistantMsg, nil
}

// newMessage 构造会话内消息
func newMessage(session *chat.Session, role, content string) *chat.Message {
	return &chat.Message{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		OwnerID:   session.OwnerID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}
