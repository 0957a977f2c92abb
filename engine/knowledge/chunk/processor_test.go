package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProcessor(t *testing.T) *Processor {
	t.Helper()
	p, err := NewProcessor(DefaultSettings())
	require.NoError(t, err)
	return p
}

func offsets(t *testing.T, c Chunk) (int, int) {
	t.Helper()
	start, ok := c.Metadata[MetaStartChar].(int)
	require.True(t, ok, "missing start_char on %s", c.ID)
	end, ok := c.Metadata[MetaEndChar].(int)
	require.True(t, ok, "missing end_char on %s", c.ID)
	return start, end
}

func TestNewProcessor(t *testing.T) {
	t.Run("Should reject invalid windows", func(t *testing.T) {
		for _, s := range []Settings{{Size: 0}, {Size: 10, Overlap: -1}, {Size: 10, Overlap: 10}} {
			_, err := NewProcessor(s)
			assert.Error(t, err, "settings %+v", s)
		}
	})
}

func TestProcessor_MakeChunks(t *testing.T) {
	base := map[string]any{MetaSourceURL: "https://example.com/doc.txt", MetaDocumentType: "text"}

	t.Run("Should return one untrimmed chunk for short text", func(t *testing.T) {
		text := "  The grace period is thirty days.  "
		chunks := newTestProcessor(t).MakeChunks(text, base)
		require.Len(t, chunks, 1)
		assert.Equal(t, text, chunks[0].Text)
		assert.Equal(t, strings.TrimSpace(text), strings.TrimSpace(chunks[0].Text))
		assert.Equal(t, "chunk_0", chunks[0].ID)
		assert.Equal(t, 0, chunks[0].Index())
		assert.NotContains(t, chunks[0].Metadata, MetaStartChar)
		assert.Equal(t, "text", chunks[0].Metadata[MetaDocumentType])
	})

	t.Run("Should return nothing for blank text", func(t *testing.T) {
		assert.Empty(t, newTestProcessor(t).MakeChunks(" \n\t ", base))
		assert.Empty(t, newTestProcessor(t).MakeChunks("", base))
	})

	t.Run("Should keep contiguous indices and bounded overlap", func(t *testing.T) {
		text := strings.Repeat("lorem ipsum dolor sit amet consectetur ", 250)
		chunks := newTestProcessor(t).MakeChunks(text, base)
		require.Greater(t, len(chunks), 1)
		for i, c := range chunks {
			assert.Equal(t, i, c.Index())
			assert.Equal(t, c.Text, strings.TrimSpace(c.Text))
			assert.NotEmpty(t, c.Text)
			if i == 0 {
				continue
			}
			_, prevEnd := offsets(t, chunks[i-1])
			start, _ := offsets(t, c)
			assert.LessOrEqual(t, start, prevEnd)
			assert.GreaterOrEqual(t, start, prevEnd-DefaultOverlap)
		}
		_, lastEnd := offsets(t, chunks[len(chunks)-1])
		assert.Equal(t, utf8.RuneCountInString(text), lastEnd)
	})

	t.Run("Should snap the first boundary to the space at 950", func(t *testing.T) {
		text := strings.Repeat("a", 950) + " " + strings.Repeat("b", 1049)
		chunks := newTestProcessor(t).MakeChunks(text, base)
		require.Len(t, chunks, 3)
		start, end := offsets(t, chunks[0])
		assert.Equal(t, 0, start)
		assert.Equal(t, 950, end)
		assert.Equal(t, strings.Repeat("a", 950), chunks[0].Text)
		start, end = offsets(t, chunks[1])
		assert.Equal(t, 750, start)
		assert.Equal(t, 1750, end)
	})

	t.Run("Should split mid-word when no space is available", func(t *testing.T) {
		text := strings.Repeat("x", 1500)
		chunks := newTestProcessor(t).MakeChunks(text, base)
		require.Len(t, chunks, 2)
		_, end := offsets(t, chunks[0])
		assert.Equal(t, 1000, end)
		start, end := offsets(t, chunks[1])
		assert.Equal(t, 800, start)
		assert.Equal(t, 1500, end)
	})

	t.Run("Should produce three chunks for 2500 characters of prose", func(t *testing.T) {
		text := strings.Repeat("abcd ", 500)
		require.Equal(t, 2500, len(text))
		chunks := newTestProcessor(t).MakeChunks(text, base)
		require.Len(t, chunks, 3)
		expected := [][2]int{{0, 999}, {799, 1794}, {1594, 2500}}
		for i, c := range chunks {
			start, end := offsets(t, c)
			assert.Equal(t, expected[i][0], start, "chunk %d start", i)
			assert.Equal(t, expected[i][1], end, "chunk %d end", i)
			assert.Equal(t, "text", c.Metadata[MetaDocumentType])
		}
	})

	t.Run("Should count characters rather than bytes", func(t *testing.T) {
		text := strings.Repeat("é", 1500)
		chunks := newTestProcessor(t).MakeChunks(text, base)
		require.Len(t, chunks, 2)
		assert.Equal(t, 1000, utf8.RuneCountInString(chunks[0].Text))
		assert.Equal(t, 700, utf8.RuneCountInString(chunks[1].Text))
	})

	t.Run("Should leave base metadata untouched", func(t *testing.T) {
		local := map[string]any{MetaSourceURL: "u"}
		newTestProcessor(t).MakeChunks(strings.Repeat("word ", 400), local)
		assert.Equal(t, map[string]any{MetaSourceURL: "u"}, local)
	})
}

func TestProcessor_MakeChunksFrom(t *testing.T) {
	t.Run("Should continue numbering from the given index", func(t *testing.T) {
		chunks := newTestProcessor(t).MakeChunksFrom(strings.Repeat("page text ", 150), nil, 4)
		require.Len(t, chunks, 2)
		assert.Equal(t, "chunk_4", chunks[0].ID)
		assert.Equal(t, "chunk_5", chunks[1].ID)
		assert.Equal(t, 5, chunks[1].Index())
	})

	t.Run("Should terminate when the overlap is more than half the window", func(t *testing.T) {
		p, err := NewProcessor(Settings{Size: 10, Overlap: 8})
		require.NoError(t, err)
		text := "a b c d e f g h i j k l m n o p"
		chunks := p.MakeChunks(text, nil)
		require.NotEmpty(t, chunks)
		_, end := offsets(t, chunks[len(chunks)-1])
		assert.Equal(t, len(text), end)
	})
}
