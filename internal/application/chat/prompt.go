package chat

import (
	"fmt"
	"strings"

	"github.com/docuchat/backend/internal/application/retrieval"
	"github.com/docuchat/backend/internal/domain/chat"
	"github.com/docuchat/backend/internal/infrastructure/config"
	"github.com/docuchat/backend/internal/infrastructure/llm"
	"github.com/docuchat/backend/internal/infrastructure/token"
)

const systemInstruction = `You are a document assistant. Answer the user's question using only the document sections provided below. Cite the section numbers you relied on. If the sections do not contain the answer, say that the documents do not cover it instead of guessing.`

const degradedInstruction = `You are a document assistant. Document retrieval is temporarily unavailable, so no document sections could be provided. Answer from the conversation so far and state clearly that you could not consult the documents.`

// PromptBuilder 按 token 预算组装提示词
// 证据按检索排名填充，历史从最近一条向前回填。
type PromptBuilder struct {
	evidenceBudget int
	historyBudget  int
	historyLimit   int
}

// NewPromptBuilder 创建提示词构建器
func NewPromptBuilder(cfg *config.Config) *PromptBuilder {
	return &PromptBuilder{
		evidenceBudget: cfg.Chat.EvidenceTokenBudget,
		historyBudget:  cfg.Chat.HistoryTokenBudget,
		historyLimit:   cfg.Chat.HistoryLimit,
	}
}

// Prompt 组装结果
type Prompt struct {
	Messages []llm.Message
	// ReferencedChunks 实际进入提示词的分块 ID
	ReferencedChunks []string
	Degraded         bool
}

// Build 组装完整消息序列：系统提示（含证据）+ 截断历史 + 当前问题
// degraded 为 true 时不附带证据并改用降级系统提示。
func (b *PromptBuilder) Build(evidence []*retrieval.Evidence, history []*chat.Message, question string, degraded bool) *Prompt {
	prompt := &Prompt{Degraded: degraded}

	var system string
	if degraded {
		system = degradedInstruction
	} else {
		var included []string
		system, included = b.buildSystemPrompt(evidence)
		prompt.ReferencedChunks = included
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: chat.RoleSystem, Content: system})
	messages = append(messages, b.truncateHistory(history)...)
	messages = append(messages, llm.Message{Role: chat.RoleUser, Content: question})

	prompt.Messages = messages
	return prompt
}

// buildSystemPrompt 在 token 预算内按排名附加证据段落
func (b *PromptBuilder) buildSystemPrompt(evidence []*retrieval.Evidence) (string, []string) {
	if len(evidence) == 0 {
		return systemInstruction + "\n\nNo relevant document sections were found for this question.", nil
	}

	var sb strings.Builder
	sb.WriteString(systemInstruction)
	sb.WriteString("\n\n")

	var included []string
	used := 0
	for i, ev := range evidence {
		section := fmt.Sprintf("Document Section %d (source: %s):\n%s\n\n",
			i+1, ev.DocumentID, ev.Content)
		cost := countTokens(section)
		if used+cost > b.evidenceBudget && len(included) > 0 {
			break
		}
		sb.WriteString(section)
		used += cost
		included = append(included, ev.ChunkID)
	}

	return strings.TrimRight(sb.String(), "\n"), included
}

// truncateHistory 从最近一条向前保留，直到超出条数或 token 预算
func (b *PromptBuilder) truncateHistory(history []*chat.Message) []llm.Message {
	if len(history) == 0 {
		return nil
	}

	used := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		if len(history)-i > b.historyLimit {
			break
		}
		cost := countTokens(history[i].Content)
		if used+cost > b.historyBudget && start < len(history) {
			break
		}
		used += cost
		start = i
	}

	kept := history[start:]
	messages := make([]llm.Message, 0, len(kept))
	for _, msg := range kept {
		messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	return messages
}

// countTokens 估算 token 数，估算器不可用时退化为字符数/4
func countTokens(text string) int {
	estimator, err := token.GetEstimator()
	if err != nil {
		return len(text) / 4
	}
	return estimator.CountTokens(text)
}
