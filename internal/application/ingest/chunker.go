package ingest

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/docuchat/backend/internal/domain/document"
)

// ChunkerConfig 分块配置
type ChunkerConfig struct {
	// MaxChunkSize 单个分块的最大字符数（硬上限）
	MaxChunkSize int
	// MinChunkSize 单个分块的最小字符数（软下限，末块豁免）
	MinChunkSize int
	// OverlapSize 相邻分块之间的重叠字符数
	OverlapSize int
	// PreserveSentences 尽量在句子边界切分
	PreserveSentences bool
	// PreserveParagraphs 优先在段落边界切分
	PreserveParagraphs bool
}

// DefaultChunkerConfig 返回默认分块配置
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		MaxChunkSize:       1000,
		MinChunkSize:       200,
		OverlapSize:        100,
		PreserveSentences:  true,
		PreserveParagraphs: true,
	}
}

// ConfigError 非法分块配置，在任何处理开始前拒绝
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid chunker config: %s", e.Reason)
}

// Validate 校验分块配置
func (c ChunkerConfig) Validate() error {
	if c.MaxChunkSize <= 0 {
		return &ConfigError{Reason: "max_chunk_size must be positive"}
	}
	if c.MinChunkSize < 0 {
		return &ConfigError{Reason: "min_chunk_size must not be negative"}
	}
	if c.MinChunkSize > c.MaxChunkSize {
		return &ConfigError{Reason: "min_chunk_size exceeds max_chunk_size"}
	}
	if c.OverlapSize < 0 {
		return &ConfigError{Reason: "overlap_size must not be negative"}
	}
	if c.OverlapSize >= c.MaxChunkSize {
		return &ConfigError{Reason: "overlap_size must be smaller than max_chunk_size"}
	}
	return nil
}

// Chunker 文本分块器
// 纯函数式：相同输入与配置产生相同的分块序列，无副作用
type Chunker struct {
	config ChunkerConfig
}

// NewChunker 创建分块器，配置非法时返回 ConfigError
func NewChunker(config ChunkerConfig) (*Chunker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{config: config}, nil
}

// Chunk 将文本切分为有序的分块草稿序列
// 贪心累积句子（或词）直到再加一个单元会超过硬上限；
// 段落边界在达到最小长度后优先作为切分点；
// 每个分块以上一块的重叠尾部开头；末块不受最小长度约束。
// 空输入返回空序列。
func (c *Chunker) Chunk(text string) []document.ChunkDraft {
	normalized := normalizeText(text)
	if normalized == "" {
		return []document.ChunkDraft{}
	}

	paragraphs := strings.Split(normalized, "\n\n")

	drafts := make([]document.ChunkDraft, 0)
	buffer := ""
	pendingSep := ""

	// emit 输出当前缓冲并以重叠尾部作为下一缓冲的种子
	emit := func(seed bool) {
		content := strings.TrimSpace(buffer)
		if content == "" {
			buffer = ""
			pendingSep = ""
			return
		}
		drafts = append(drafts, c.newDraft(content, len(drafts)))
		if seed {
			buffer = c.overlapSeed(content)
		} else {
			buffer = ""
		}
		pendingSep = ""
	}

	appendUnit := func(unit string) {
		sep := pendingSep
		if buffer == "" {
			sep = ""
		} else if sep == "" {
			sep = " "
		}
		buffer += sep + unit
		pendingSep = ""
	}

	for pi, paragraph := range paragraphs {
		var units []string
		if c.config.PreserveSentences {
			units = splitSentences(paragraph)
		} else {
			units = strings.Fields(paragraph)
		}

		for _, unit := range units {
			// 单个单元超过硬上限：按字符边界硬切
			if len(unit) > c.config.MaxChunkSize {
				emit(false)
				pieces := hardSplit(unit, c.config.MaxChunkSize)
				for i, piece := range pieces {
					buffer = piece
					if i < len(pieces)-1 {
						emit(false)
					}
				}
				continue
			}

			sepLen := 0
			if buffer != "" {
				sepLen = 1
			}
			if len(buffer)+sepLen+len(unit) > c.config.MaxChunkSize {
				emit(true)
				// 种子加新单元仍超上限时放弃种子
				if buffer != "" && len(buffer)+1+len(unit) > c.config.MaxChunkSize {
					buffer = ""
				}
			}
			appendUnit(unit)
		}

		// 段落边界：缓冲已达最小长度时优先在此切分
		if pi < len(paragraphs)-1 {
			if c.config.PreserveParagraphs && len(strings.TrimSpace(buffer)) >= c.config.MinChunkSize {
				emit(true)
			} else if c.config.PreserveParagraphs {
				pendingSep = "\n\n"
			} else {
				pendingSep = " "
			}
		}
	}

	// 末块：剩余内容直接输出，不受最小长度约束
	if strings.TrimSpace(buffer) != "" {
		emit(false)
	}

	return drafts
}

// newDraft 构造分块草稿并附带内容统计元数据
func (c *Chunker) newDraft(content string, index int) document.ChunkDraft {
	metadata := map[string]any{
		"length":     len(content),
		"word_count": len(strings.Fields(content)),
	}
	if dates := extractDates(content); len(dates) > 0 {
		metadata["dates"] = dates
	}
	if numbers := extractNumbers(content); len(numbers) > 0 {
		metadata["numbers"] = numbers
	}

	return document.ChunkDraft{
		Index:       index,
		Content:     content,
		ContentType: document.ContentTypeText,
		Metadata:    metadata,
	}
}

// overlapSeed 计算分块尾部的重叠种子
// 保留句子时取不超过重叠窗口的完整句子后缀；
// 否则取尾部窗口并去掉起始的半个词。
func (c *Chunker) overlapSeed(content string) string {
	if c.config.OverlapSize <= 0 {
		return ""
	}
	if len(content) <= c.config.OverlapSize {
		return content
	}

	if c.config.PreserveSentences {
		sentences := splitSentences(content)
		seed := ""
		for i := len(sentences) - 1; i >= 0; i-- {
			candidate := strings.Join(sentences[i:], " ")
			if len(candidate) > c.config.OverlapSize {
				break
			}
			seed = candidate
		}
		if seed != "" {
			return seed
		}
	}

	window := content[len(content)-c.config.OverlapSize:]
	// 避免落在多字节字符中间
	for len(window) > 0 && !utf8.RuneStart(window[0]) {
		window = window[1:]
	}
	// 去掉起始的半个词
	if idx := strings.IndexByte(window, ' '); idx >= 0 {
		return strings.TrimSpace(window[idx+1:])
	}
	return window
}

// normalizeText 规范化文本：统一换行、去除控制字符、
// 压缩段内空白、段落边界保留为显式标记
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)

	blocks := splitParagraphs(text)
	normalized := make([]string, 0, len(blocks))
	for _, block := range blocks {
		collapsed := strings.Join(strings.Fields(block), " ")
		if collapsed != "" {
			normalized = append(normalized, collapsed)
		}
	}
	return strings.Join(normalized, "\n\n")
}

// splitParagraphs 按空行切分段落
func splitParagraphs(text string) []string {
	var paragraphs []string
	var current []string

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			if len(current) > 0 {
				paragraphs = append(paragraphs, strings.Join(current, "\n"))
				current = current[:0]
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		paragraphs = append(paragraphs, strings.Join(current, "\n"))
	}
	return paragraphs
}

// sentenceTerminators 句子终止符（含中英文）
func isSentenceTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

// splitSentences 按句子边界切分文本，终止符保留在句尾
func splitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string

	start := 0
	i := 0
	for i < len(runes) {
		if !isSentenceTerminator(runes[i]) {
			i++
			continue
		}

		// 吞并连续终止符
		j := i + 1
		for j < len(runes) && isSentenceTerminator(runes[j]) {
			j++
		}

		// 终止符后是空白或文本结束才算句子边界
		if j >= len(runes) || unicode.IsSpace(runes[j]) {
			sentence := strings.TrimSpace(string(runes[start:j]))
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			start = j
		}
		i = j
	}

	if start < len(runes) {
		if sentence := strings.TrimSpace(string(runes[start:])); sentence != "" {
			sentences = append(sentences, sentence)
		}
	}
	return sentences
}

// hardSplit 将超长单元按硬上限切分（对齐到字符边界）
func hardSplit(text string, maxSize int) []string {
	var pieces []string
	for len(text) > maxSize {
		cut := maxSize
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		pieces = append(pieces, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		pieces = append(pieces, text)
	}
	return pieces
}
