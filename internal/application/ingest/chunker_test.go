package ingest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuchat/backend/internal/domain/document"
)

// proseSentences 构造 n 个各 100 字符的英文句子
func proseSentences(n int) []string {
	sentences := make([]string, n)
	for i := 0; i < n; i++ {
		// 4 + 15*6 + 6 = 100 字符
		sentences[i] = fmt.Sprintf("s%02d %sended.", i, strings.Repeat("alpha ", 15))
	}
	return sentences
}

func TestChunkerConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultChunkerConfig().Validate())

	var configErr *ConfigError

	overlap := DefaultChunkerConfig()
	overlap.OverlapSize = overlap.MaxChunkSize
	err := overlap.Validate()
	require.Error(t, err)
	assert.ErrorAs(t, err, &configErr)

	minMax := DefaultChunkerConfig()
	minMax.MinChunkSize = minMax.MaxChunkSize + 1
	err = minMax.Validate()
	require.Error(t, err)
	assert.ErrorAs(t, err, &configErr)

	zero := DefaultChunkerConfig()
	zero.MaxChunkSize = 0
	assert.Error(t, zero.Validate())
}

func TestNewChunker_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultChunkerConfig()
	cfg.OverlapSize = cfg.MaxChunkSize + 10

	_, err := NewChunker(cfg)
	var configErr *ConfigError
	assert.ErrorAs(t, err, &configErr)
}

func TestChunker_EmptyInput(t *testing.T) {
	chunker, err := NewChunker(DefaultChunkerConfig())
	require.NoError(t, err)

	assert.Empty(t, chunker.Chunk(""))
	assert.Empty(t, chunker.Chunk("   \n\n  \t "))
}

func TestChunker_ShortTextSingleChunk(t *testing.T) {
	chunker, err := NewChunker(DefaultChunkerConfig())
	require.NoError(t, err)

	chunks := chunker.Chunk("A short paragraph. It fits in one chunk.")
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "A short paragraph. It fits in one chunk.", chunks[0].Content)
	assert.Equal(t, document.ContentTypeText, chunks[0].ContentType)
	assert.Equal(t, len(chunks[0].Content), chunks[0].Metadata["length"])
}

func TestChunker_ProseScenario2500Chars(t *testing.T) {
	chunker, err := NewChunker(DefaultChunkerConfig())
	require.NoError(t, err)

	text := strings.Join(proseSentences(25), " ")
	require.Greater(t, len(text), 2400)

	chunks := chunker.Chunk(text)
	require.Len(t, chunks, 3)

	// 除末块外长度不超过硬上限
	for _, chunk := range chunks[:len(chunks)-1] {
		assert.LessOrEqual(t, len(chunk.Content), 1000)
		assert.GreaterOrEqual(t, len(chunk.Content), 200)
	}
	assert.Less(t, len(chunks[2].Content), 1000)

	// 第二块以第一块的尾部重叠开头（对齐到句子边界）
	tail := chunks[0].Content[len(chunks[0].Content)-100:]
	assert.True(t, strings.HasPrefix(chunks[1].Content, tail),
		"chunk 2 should begin with the trailing overlap of chunk 1")
}

func TestChunker_OrdinalsStrictlyIncreasing(t *testing.T) {
	chunker, err := NewChunker(DefaultChunkerConfig())
	require.NoError(t, err)

	chunks := chunker.Chunk(strings.Join(proseSentences(40), " "))
	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
	}
}

func TestChunker_Deterministic(t *testing.T) {
	chunker, err := NewChunker(DefaultChunkerConfig())
	require.NoError(t, err)

	text := strings.Join(proseSentences(30), " ")
	first := chunker.Chunk(text)
	second := chunker.Chunk(text)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Content, second[i].Content)
		assert.Equal(t, first[i].Index, second[i].Index)
	}
}

func TestChunker_RoundTripWithoutOverlap(t *testing.T) {
	cfg := DefaultChunkerConfig()
	cfg.OverlapSize = 0
	chunker, err := NewChunker(cfg)
	require.NoError(t, err)

	text := strings.Join(proseSentences(30), " ")
	chunks := chunker.Chunk(text)
	require.Greater(t, len(chunks), 1)

	// 无重叠时分块拼接还原规范化文本
	parts := make([]string, len(chunks))
	for i, chunk := range chunks {
		parts[i] = chunk.Content
	}
	assert.Equal(t, normalizeText(text), strings.Join(parts, " "))
}

func TestChunker_ParagraphBoundaryPreferred(t *testing.T) {
	chunker, err := NewChunker(DefaultChunkerConfig())
	require.NoError(t, err)

	// 两个各约 300 字符的段落：虽远未达硬上限，仍应在段落边界切分
	para1 := strings.Join(proseSentences(3), " ")
	para2 := strings.Join(proseSentences(3), " ")
	chunks := chunker.Chunk(para1 + "\n\n" + para2)

	require.Len(t, chunks, 2)
	assert.Equal(t, para1, chunks[0].Content)
	assert.True(t, strings.HasSuffix(chunks[1].Content, para2))
}

func TestChunker_SmallParagraphsMerged(t *testing.T) {
	chunker, err := NewChunker(DefaultChunkerConfig())
	require.NoError(t, err)

	// 均低于最小长度的段落合并为一块，保留段落标记
	chunks := chunker.Chunk("First tiny paragraph.\n\nSecond tiny paragraph.")
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, "\n\n")
}

func TestChunker_OversizedSentenceHardSplit(t *testing.T) {
	chunker, err := NewChunker(DefaultChunkerConfig())
	require.NoError(t, err)

	// 2500 字符的无边界长句按硬上限切分
	chunks := chunker.Chunk(strings.Repeat("x", 2500))
	require.Len(t, chunks, 3)
	assert.Equal(t, 1000, len(chunks[0].Content))
	assert.Equal(t, 1000, len(chunks[1].Content))
	assert.Equal(t, 500, len(chunks[2].Content))
}

func TestChunker_WordModeOverlap(t *testing.T) {
	cfg := DefaultChunkerConfig()
	cfg.PreserveSentences = false
	chunker, err := NewChunker(cfg)
	require.NoError(t, err)

	words := make([]string, 300)
	for i := range words {
		words[i] = fmt.Sprintf("word%03d", i)
	}
	chunks := chunker.Chunk(strings.Join(words, " "))
	require.Greater(t, len(chunks), 1)

	// 重叠种子裁剪到词边界：第二块以完整的词开头
	firstWord := strings.SplitN(chunks[1].Content, " ", 2)[0]
	assert.Contains(t, chunks[0].Content, firstWord)
	assert.Regexp(t, `^word\d{3}$`, firstWord)
}

func TestNormalizeText(t *testing.T) {
	// 压缩段内空白，统一换行，段落边界保留
	input := "Line  one\twith   spaces.\r\nStill paragraph one.\r\n\r\nParagraph two."
	expected := "Line one with spaces. Still paragraph one.\n\nParagraph two."
	assert.Equal(t, expected, normalizeText(input))

	// 控制字符被剔除
	assert.Equal(t, "ab", normalizeText("a\x00b"))
}

func TestSplitSentences(t *testing.T) {
	sentences := splitSentences("First one. Second one! Third one? Trailing fragment")
	require.Len(t, sentences, 4)
	assert.Equal(t, "First one.", sentences[0])
	assert.Equal(t, "Second one!", sentences[1])
	assert.Equal(t, "Third one?", sentences[2])
	assert.Equal(t, "Trailing fragment", sentences[3])

	// 小数点不是句子边界
	sentences = splitSentences("Total is 3.50 dollars. Next sentence.")
	require.Len(t, sentences, 2)

	// 中文句号
	sentences = splitSentences("第一句。 第二句。")
	assert.Len(t, sentences, 2)
}

func TestExtractChunkMetadata(t *testing.T) {
	dates := extractDates("Signed 2024-03-15 and again March 20, 2024.")
	assert.NotEmpty(t, dates)
	assert.Contains(t, dates, "2024-03-15")

	numbers := extractNumbers("Paid $1,250.00 out of 10,000 budget.")
	assert.Contains(t, numbers, "$1,250.00")
}
