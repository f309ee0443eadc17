package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_EmptyInput(t *testing.T) {
	c := New(StrategyParagraph)

	assert.Empty(t, c.Chunk("doc-1", ""))
	assert.Empty(t, c.Chunk("doc-1", "   \n\t  "))
}

func TestChunk_Deterministic(t *testing.T) {
	text := "First sentence. Second sentence. Third sentence. Fourth sentence. Fifth sentence."

	for _, strategy := range []Strategy{StrategySentence, StrategyParagraph, StrategyFixedSize, StrategySection} {
		c := New(strategy, WithSize(40), WithOverlap(10))

		first := c.Chunk("doc-1", text)
		second := c.Chunk("doc-1", text)

		require.Equal(t, len(first), len(second), "strategy %s", strategy)
		for i := range first {
			assert.Equal(t, first[i].Start, second[i].Start, "strategy %s chunk %d", strategy, i)
			assert.Equal(t, first[i].End, second[i].End, "strategy %s chunk %d", strategy, i)
			assert.Equal(t, first[i].Content, second[i].Content, "strategy %s chunk %d", strategy, i)
		}
	}
}

func TestChunk_BoundsWithinDocument(t *testing.T) {
	text := "Alpha paragraph one.\n\nBeta paragraph two with more words in it.\n\nGamma paragraph three."
	runes := []rune(text)

	for _, strategy := range []Strategy{StrategySentence, StrategyParagraph, StrategyFixedSize, StrategySection} {
		c := New(strategy, WithSize(30), WithOverlap(5))
		for _, chunk := range c.Chunk("doc-1", text) {
			assert.GreaterOrEqual(t, chunk.Start, 0)
			assert.LessOrEqual(t, chunk.End, len(runes))
			assert.Less(t, chunk.Start, chunk.End)
			assert.Equal(t, string(runes[chunk.Start:chunk.End]), chunk.Content)
		}
	}
}

func TestChunk_SentenceGrouping(t *testing.T) {
	text := "One. Two. Three. Four. Five. Six. Seven."
	c := New(StrategySentence) // defaults: 3 sentences per chunk, 1 overlap

	chunks := c.Chunk("doc-1", text)

	// Groups of 3 with stride 2: [1-3], [3-5], [5-7].
	require.Len(t, chunks, 3)
	assert.Contains(t, chunks[0].Content, "One.")
	assert.Contains(t, chunks[0].Content, "Three.")
	assert.Contains(t, chunks[1].Content, "Three.")
	assert.Contains(t, chunks[1].Content, "Five.")
	assert.Contains(t, chunks[2].Content, "Seven.")
}

func TestChunk_Paragraph_SingleChunkForShortDoc(t *testing.T) {
	// 50-word document with a generous size budget produces exactly one
	// chunk covering the full text.
	words := make([]string, 50)
	for i := range words {
		words[i] = "word"
	}
	text := strings.Join(words, " ")

	c := New(StrategyParagraph, WithSize(1000))
	chunks := c.Chunk("doc-1", text)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Content)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, len([]rune(text)), chunks[0].End)
}

func TestChunk_Paragraph_SplitsOnBudget(t *testing.T) {
	para := strings.Repeat("alpha beta gamma ", 10) // ~170 chars
	text := para + "\n\n" + para + "\n\n" + para

	c := New(StrategyParagraph, WithSize(200), WithOverlap(0))
	chunks := c.Chunk("doc-1", text)

	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(chunk.Content))
	}
}

func TestChunk_Paragraph_OverlapSeeding(t *testing.T) {
	para1 := strings.Repeat("a", 150)
	para2 := strings.Repeat("b", 150)
	text := para1 + "\n\n" + para2

	c := New(StrategyParagraph, WithSize(200), WithOverlap(50))
	chunks := c.Chunk("doc-1", text)

	require.Len(t, chunks, 2)
	// The second chunk is seeded with the trailing 50 runes of the first.
	assert.True(t, strings.HasPrefix(chunks[1].Content, strings.Repeat("a", 50)))
	// Overlap never exceeds the configured window.
	overlap := chunks[0].End - chunks[1].Start
	assert.LessOrEqual(t, overlap, 50)
}

func TestChunk_FixedSize(t *testing.T) {
	text := strings.Repeat("x", 250)

	c := New(StrategyFixedSize, WithSize(100), WithOverlap(20))
	chunks := c.Chunk("doc-1", text)

	// Stride 80: [0,100), [80,180), [160,250).
	require.Len(t, chunks, 3)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 100, chunks[0].End)
	assert.Equal(t, 80, chunks[1].Start)
	assert.Equal(t, 160, chunks[2].Start)
	assert.Equal(t, 250, chunks[2].End)
}

func TestChunk_FixedSize_FinalPartialWindow(t *testing.T) {
	text := strings.Repeat("y", 120)

	c := New(StrategyFixedSize, WithSize(100), WithOverlap(0))
	chunks := c.Chunk("doc-1", text)

	require.Len(t, chunks, 2)
	assert.Equal(t, 20, chunks[1].End-chunks[1].Start)
}

func TestChunk_Section_MarkdownHeadings(t *testing.T) {
	text := "# Intro\nwelcome text\n\n# Pricing\nour plans cost money\n\n# FAQ\nquestions"

	c := New(StrategySection)
	chunks := c.Chunk("doc-1", text)

	require.Len(t, chunks, 3)
	assert.Contains(t, chunks[0].Content, "Intro")
	assert.Contains(t, chunks[1].Content, "Pricing")
	assert.Contains(t, chunks[2].Content, "FAQ")
}

func TestChunk_Section_NumberedAndCapsHeadings(t *testing.T) {
	text := "1. Overview\nbody one\nTERMS AND CONDITIONS\nbody two\n2.1 Details\nbody three"

	c := New(StrategySection)
	chunks := c.Chunk("doc-1", text)

	require.Len(t, chunks, 3)
	assert.Contains(t, chunks[1].Content, "TERMS AND CONDITIONS")
	assert.Contains(t, chunks[2].Content, "2.1 Details")
}

func TestChunk_SemanticFallsBackToParagraph(t *testing.T) {
	text := "Paragraph one.\n\nParagraph two."

	semantic := New(StrategySemantic).Chunk("doc-1", text)
	paragraph := New(StrategyParagraph).Chunk("doc-1", text)

	require.Equal(t, len(paragraph), len(semantic))
	for i := range semantic {
		assert.Equal(t, paragraph[i].Start, semantic[i].Start)
		assert.Equal(t, paragraph[i].End, semantic[i].End)
	}
}

func TestChunk_PositionsAreOrdinal(t *testing.T) {
	text := strings.Repeat("z", 500)
	c := New(StrategyFixedSize, WithSize(100), WithOverlap(0))

	for i, chunk := range c.Chunk("doc-1", text) {
		assert.Equal(t, i, chunk.Position)
		assert.Equal(t, "doc-1", chunk.DocumentID)
		assert.NotEmpty(t, chunk.ID)
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("sentence")
	require.NoError(t, err)
	assert.Equal(t, StrategySentence, s)

	s, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyParagraph, s)

	_, err = ParseStrategy("recursive")
	assert.Error(t, err)
}
