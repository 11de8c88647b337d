package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuchat/backend/internal/application/retrieval"
	"github.com/docuchat/backend/internal/domain/chat"
	"github.com/docuchat/backend/internal/infrastructure/config"
)

func newTestBuilder(evidenceBudget, historyBudget, historyLimit int) *PromptBuilder {
	cfg := config.NewConfig()
	cfg.Chat.EvidenceTokenBudget = evidenceBudget
	cfg.Chat.HistoryTokenBudget = historyBudget
	cfg.Chat.HistoryLimit = historyLimit
	return NewPromptBuilder(cfg)
}

func evidenceOf(chunkID, docID, content string) *retrieval.Evidence {
	return &retrieval.Evidence{ChunkID: chunkID, DocumentID: docID, Content: content}
}

func TestBuild_EvidenceSectionsNumbered(t *testing.T) {
	b := newTestBuilder(2000, 1000, 10)
	evidence := []*retrieval.Evidence{
		evidenceOf("c1", "doc-a", "Refunds are accepted within 30 days."),
		evidenceOf("c2", "doc-b", "Shipping takes 5 business days."),
	}

	prompt := b.Build(evidence, nil, "question", false)

	system := prompt.Messages[0].Content
	assert.Contains(t, system, "Document Section 1 (source: doc-a):")
	assert.Contains(t, system, "Document Section 2 (source: doc-b):")
	assert.Equal(t, []string{"c1", "c2"}, prompt.ReferencedChunks)
}

func TestBuild_EvidenceBudgetTruncatesTail(t *testing.T) {
	// 预算只够第一段证据
	b := newTestBuilder(60, 1000, 10)
	long := strings.Repeat("refund policy details ", 10)
	evidence := []*retrieval.Evidence{
		evidenceOf("c1", "doc-a", long),
		evidenceOf("c2", "doc-a", long),
		evidenceOf("c3", "doc-a", long),
	}

	prompt := b.Build(evidence, nil, "question", false)

	// 排名靠前的证据优先保留
	assert.Equal(t, []string{"c1"}, prompt.ReferencedChunks)
	assert.NotContains(t, prompt.Messages[0].Content, "Document Section 2")
}

func TestBuild_FirstEvidenceAlwaysIncluded(t *testing.T) {
	b := newTestBuilder(1, 1000, 10)
	evidence := []*retrieval.Evidence{
		evidenceOf("c1", "doc-a", strings.Repeat("long content ", 50)),
	}

	prompt := b.Build(evidence, nil, "question", false)
	assert.Equal(t, []string{"c1"}, prompt.ReferencedChunks)
}

func TestBuild_NoEvidenceStatesSo(t *testing.T) {
	b := newTestBuilder(2000, 1000, 10)

	prompt := b.Build(nil, nil, "question", false)
	assert.Contains(t, prompt.Messages[0].Content, "No relevant document sections")
	assert.Empty(t, prompt.ReferencedChunks)
}

func TestBuild_DegradedUsesFallbackInstruction(t *testing.T) {
	b := newTestBuilder(2000, 1000, 10)
	evidence := []*retrieval.Evidence{evidenceOf("c1", "doc-a", "content")}

	prompt := b.Build(evidence, nil, "question", true)

	assert.True(t, prompt.Degraded)
	assert.Empty(t, prompt.ReferencedChunks)
	assert.NotContains(t, prompt.Messages[0].Content, "Document Section")
}

func TestBuild_HistoryKeepsMostRecent(t *testing.T) {
	// 预算充足但条数上限为 2
	b := newTestBuilder(2000, 1000, 2)
	history := []*chat.Message{
		{Role: chat.RoleUser, Content: "oldest"},
		{Role: chat.RoleAssistant, Content: "middle"},
		{Role: chat.RoleUser, Content: "newest"},
	}

	prompt := b.Build(nil, history, "question", false)

	// system + 2 条历史 + 当前问题
	require.Len(t, prompt.Messages, 4)
	assert.Equal(t, "middle", prompt.Messages[1].Content)
	assert.Equal(t, "newest", prompt.Messages[2].Content)
	assert.Equal(t, "question", prompt.Messages[3].Content)
}

func TestBuild_HistoryBudgetDropsOldest(t *testing.T) {
	long := strings.Repeat("previous discussion about refunds ", 20)
	b := newTestBuilder(2000, 40, 10)
	history := []*chat.Message{
		{Role: chat.RoleUser, Content: long},
		{Role: chat.RoleAssistant, Content: long},
		{Role: chat.RoleUser, Content: "short recent question"},
	}

	prompt := b.Build(nil, history, "question", false)

	// 预算内只留得下最近一条
	require.Len(t, prompt.Messages, 3)
	assert.Equal(t, "short recent question", prompt.Messages[1].Content)
}

func TestBuild_MessageOrder(t *testing.T) {
	b := newTestBuilder(2000, 1000, 10)

	prompt := b.Build(nil, nil, "the question", false)

	require.Len(t, prompt.Messages, 2)
	assert.Equal(t, chat.RoleSystem, prompt.Messages[0].Role)
	assert.Equal(t, chat.RoleUser, prompt.Messages[1].Role)
	assert.Equal(t, "the question", prompt.Messages[1].Content)
}
