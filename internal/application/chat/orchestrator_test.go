package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuchat/backend/internal/application/retrieval"
	"github.com/docuchat/backend/internal/domain/chat"
	"github.com/docuchat/backend/internal/infrastructure/config"
	"github.com/docuchat/backend/internal/infrastructure/llm"
)

// memSessionRepo 内存会话仓库
type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*chat.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*chat.Session)}
}

func (r *memSessionRepo) Save(s *chat.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return nil
}

func (r *memSessionRepo) Get(id, ownerID string) (*chat.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.OwnerID != ownerID {
		return nil, chat.ErrSessionNotFound
	}
	return s, nil
}

func (r *memSessionRepo) List(ownerID string) ([]*chat.Session, error) { return nil, nil }

func (r *memSessionRepo) TouchActivity(id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.LastActivity = at
	}
	return nil
}

func (r *memSessionRepo) Delete(id, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *memSessionRepo) DeleteIdleBefore(cutoff time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []string
	for id, s := range r.sessions {
		if s.IdleSince(cutoff) {
			delete(r.sessions, id)
			removed = append(removed, id)
		}
	}
	return removed, nil
}

func (r *memSessionRepo) Count(ownerID string) (int, error) { return len(r.sessions), nil }

// memMessageRepo 内存消息仓库
type memMessageRepo struct {
	mu       sync.Mutex
	messages []*chat.Message
	saveErr  map[string]error // 按角色注入保存失败
}

func (r *memMessageRepo) Save(m *chat.Message) error {
	if err := r.saveErr[m.Role]; err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
	return nil
}

func (r *memMessageRepo) ListBySession(sessionID string) ([]*chat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*chat.Message
	for _, m := range r.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memMessageRepo) LastN(sessionID string, n int) ([]*chat.Message, error) {
	all, _ := r.ListBySession(sessionID)
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}

// stubRetriever 固定返回证据或错误
type stubRetriever struct {
	evidence  []*retrieval.Evidence
	err       error
	lastQuery retrieval.Query
}

func (s *stubRetriever) Retrieve(ctx context.Context, q retrieval.Query) ([]*retrieval.Evidence, error) {
	s.lastQuery = q
	if s.err != nil {
		return nil, s.err
	}
	return s.evidence, nil
}

// stubCompleter 固定返回补全文本或错误
type stubCompleter struct {
	answer       string
	err          error
	lastMessages []llm.Message
}

func (s *stubCompleter) Chat(ctx context.Context, messages []llm.Message, maxTokens int, temperature float32) (string, error) {
	s.lastMessages = messages
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

type chatFixture struct {
	orchestrator *Orchestrator
	sessions     *memSessionRepo
	messages     *memMessageRepo
	retriever    *stubRetriever
	completer    *stubCompleter
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	cfg := config.NewConfig()
	f := &chatFixture{
		sessions:  newMemSessionRepo(),
		messages:  &memMessageRepo{},
		retriever: &stubRetriever{},
		completer: &stubCompleter{answer: "Here is the answer."},
	}
	f.orchestrator = NewOrchestrator(cfg, f.sessions, f.messages,
		f.retriever, f.completer, NewPromptBuilder(cfg))
	return f
}

func (f *chatFixture) addSession(id, ownerID string, documentIDs ...string) *chat.Session {
	now := time.Now()
	s := &chat.Session{
		ID: id, OwnerID: ownerID, Name: "test",
		DocumentIDs: documentIDs, CreatedAt: now, LastActivity: now,
	}
	f.sessions.Save(s)
	return s
}

func TestRespond_PersistsExchange(t *testing.T) {
	f := newChatFixture(t)
	f.addSession("s1", "user-1", "doc-a")
	f.retriever.evidence = []*retrieval.Evidence{
		{ChunkID: "c1", DocumentID: "doc-a", Content: "Refunds within 30 days.", Score: 0.91},
	}

	reply, err := f.orchestrator.Respond(context.Background(), "s1", "user-1", "What is the refund policy?")
	require.NoError(t, err)

	assert.Equal(t, chat.RoleAssistant, reply.Role)
	assert.Equal(t, "Here is the answer.", reply.Content)
	assert.Equal(t, []string{"c1"}, reply.ReferencedChunks)
	assert.Equal(t, 1, reply.Metadata["evidence_count"])
	assert.NotContains(t, reply.Metadata, "degraded_context")

	// 用户消息与助手消息按序落库
	stored, _ := f.messages.ListBySession("s1")
	require.Len(t, stored, 2)
	assert.Equal(t, chat.RoleUser, stored[0].Role)
	assert.Equal(t, chat.RoleAssistant, stored[1].Role)

	// 检索范围来自会话白名单
	assert.Equal(t, []string{"doc-a"}, f.retriever.lastQuery.DocumentIDs)
	assert.Equal(t, "user-1", f.retriever.lastQuery.OwnerID)
}

func TestRespond_RetrieverFailureDegrades(t *testing.T) {
	f := newChatFixture(t)
	f.addSession("s1", "user-1")
	f.retriever.err = errors.New("qdrant unreachable")

	reply, err := f.orchestrator.Respond(context.Background(), "s1", "user-1", "question")
	require.NoError(t, err)

	assert.Equal(t, true, reply.Metadata["degraded_context"])
	assert.Empty(t, reply.ReferencedChunks)

	// 降级提示替换证据段落
	require.NotEmpty(t, f.completer.lastMessages)
	assert.Contains(t, f.completer.lastMessages[0].Content, "retrieval is temporarily unavailable")
}

func TestRespond_CompletionFailureKeepsUserMessage(t *testing.T) {
	f := newChatFixture(t)
	f.addSession("s1", "user-1")
	f.completer.err = llm.ErrUnavailable

	before := time.Now()
	_, err := f.orchestrator.Respond(context.Background(), "s1", "user-1", "question")
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrUnavailable)

	// 用户消息保留，没有助手消息
	stored, _ := f.messages.ListBySession("s1")
	require.Len(t, stored, 1)
	assert.Equal(t, chat.RoleUser, stored[0].Role)

	// 失败的交换不刷新会话活动时间
	s, _ := f.sessions.Get("s1", "user-1")
	assert.False(t, s.LastActivity.After(before))
}

func TestRespond_SessionNotFound(t *testing.T) {
	f := newChatFixture(t)
	f.addSession("s1", "user-1")

	_, err := f.orchestrator.Respond(context.Background(), "s1", "user-2", "question")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)

	stored, _ := f.messages.ListBySession("s1")
	assert.Empty(t, stored)
}

func TestRespond_TouchesSessionActivity(t *testing.T) {
	f := newChatFixture(t)
	s := f.addSession("s1", "user-1")
	s.LastActivity = time.Now().Add(-time.Hour)

	_, err := f.orchestrator.Respond(context.Background(), "s1", "user-1", "question")
	require.NoError(t, err)

	got, _ := f.sessions.Get("s1", "user-1")
	assert.WithinDuration(t, time.Now(), got.LastActivity, 5*time.Second)
}

func TestRespond_HistoryIncludedInPrompt(t *testing.T) {
	f := newChatFixture(t)
	f.addSession("s1", "user-1")

	_, err := f.orchestrator.Respond(context.Background(), "s1", "user-1", "first question")
	require.NoError(t, err)
	_, err = f.orchestrator.Respond(context.Background(), "s1", "user-1", "second question")
	require.NoError(t, err)

	// system + 2 条历史 + 当前问题
	require.Len(t, f.completer.lastMessages, 4)
	assert.Equal(t, "first question", f.completer.lastMessages[1].Content)
	assert.Equal(t, "Here is the answer.", f.completer.lastMessages[2].Content)
	assert.Equal(t, "second question", f.completer.lastMessages[3].Content)
}

func TestSweepOnce_RemovesIdleSessions(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Chat.SessionTTL = time.Hour

	f := newChatFixture(t)
	f.sessions.Save(&chat.Session{ID: "old", OwnerID: "u", LastActivity: time.Now().Add(-2 * time.Hour)})
	f.sessions.Save(&chat.Session{ID: "fresh", OwnerID: "u", LastActivity: time.Now()})

	sweeper := NewSweeper(cfg, f.sessions, f.orchestrator)
	sweeper.SweepOnce()

	_, err := f.sessions.Get("old", "u")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
	_, err = f.sessions.Get("fresh", "u")
	assert.NoError(t, err)
}

func TestSweepOnce_ReleasesSessionLocks(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Chat.SessionTTL = time.Hour

	f := newChatFixture(t)
	f.sessions.Save(&chat.Session{ID: "old", OwnerID: "u", LastActivity: time.Now().Add(-2 * time.Hour)})
	f.sessions.Save(&chat.Session{ID: "fresh", OwnerID: "u", LastActivity: time.Now()})
	f.orchestrator.sessionLock("old")
	f.orchestrator.sessionLock("fresh")

	sweeper := NewSweeper(cfg, f.sessions, f.orchestrator)
	sweeper.SweepOnce()

	f.orchestrator.mu.Lock()
	defer f.orchestrator.mu.Unlock()
	assert.NotContains(t, f.orchestrator.locks, "old")
	assert.Contains(t, f.orchestrator.locks, "fresh")
}
