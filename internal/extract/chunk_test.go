package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertChunksValid(t *testing.T, doc string, chunks []Chunk, maxChars int) {
	t.Helper()
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, doc[c.Offset:c.End()], c.Text)
		assert.LessOrEqual(t, len(c.Text), maxChars)
		assert.NotEmpty(t, strings.TrimSpace(c.Text))
	}
}

func TestSplitChunks_SingleChunk(t *testing.T) {
	doc := "\n\n  Hello world.\n\nSecond paragraph.\n"
	chunks := SplitChunks(doc, 1000)

	require.Len(t, chunks, 1)
	assert.Equal(t, "Hello world.\n\nSecond paragraph.", chunks[0].Text)
	assertChunksValid(t, doc, chunks, 1000)
}

func TestSplitChunks_PacksParagraphs(t *testing.T) {
	p := strings.Repeat("a", 39) + "."
	doc := p + "\n\n" + p + "\n\n" + p

	chunks := SplitChunks(doc, 100)

	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Offset)
	assert.Equal(t, p+"\n\n"+p, chunks[0].Text)
	assert.Equal(t, 84, chunks[1].Offset)
	assertChunksValid(t, doc, chunks, 100)
}

func TestSplitChunks_OversizeAtSentence(t *testing.T) {
	doc := "First sentence here. Second sentence is here. Third one."

	chunks := SplitChunks(doc, 30)

	require.Len(t, chunks, 3)
	assert.Equal(t, "First sentence here.", chunks[0].Text)
	assert.Equal(t, "Second sentence is here.", chunks[1].Text)
	assert.Equal(t, "Third one.", chunks[2].Text)
	assertChunksValid(t, doc, chunks, 30)
}

func TestSplitChunks_HardCut(t *testing.T) {
	doc := strings.Repeat("x", 25)

	chunks := SplitChunks(doc, 10)

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[2].Text, 5)
	assertChunksValid(t, doc, chunks, 10)
}

func TestSplitChunks_HardCutRespectsRunes(t *testing.T) {
	doc := strings.Repeat("é", 12) // 24 bytes

	chunks := SplitChunks(doc, 5)

	for _, c := range chunks {
		assert.True(t, strings.HasPrefix(c.Text, "é"))
	}
	assertChunksValid(t, doc, chunks, 5)
	assert.Equal(t, doc, strings.Join(texts(chunks), ""))
}

func TestSplitChunks_CRLF(t *testing.T) {
	doc := "One.\r\n\r\nTwo."
	chunks := SplitChunks(doc, 6)

	require.Len(t, chunks, 2)
	assert.Equal(t, "One.", chunks[0].Text)
	assert.Equal(t, "Two.", chunks[1].Text)
}

func texts(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
