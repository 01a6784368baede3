package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProcessor(t *testing.T) {
	t.Run("Should default the ceiling and derive size and overlap", func(t *testing.T) {
		p, err := NewProcessor(Settings{})
		require.NoError(t, err)
		s := p.Settings()
		assert.Equal(t, DefaultMaxChars, s.MaxChars)
		assert.Equal(t, DefaultMaxChars, s.Size)
		assert.Equal(t, 50, s.Overlap)
	})
	t.Run("Should derive overlap as a tenth of larger sizes", func(t *testing.T) {
		p, err := NewProcessor(Settings{Size: 1000, MaxChars: 1000})
		require.NoError(t, err)
		assert.Equal(t, 100, p.Settings().Overlap)
	})
	t.Run("Should reject overlap at or above size", func(t *testing.T) {
		_, err := NewProcessor(Settings{Size: 100, Overlap: 100})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "overlap")
	})
	t.Run("Should reject negative overlap", func(t *testing.T) {
		_, err := NewProcessor(Settings{Size: 100, Overlap: -1})
		require.Error(t, err)
	})
	t.Run("Should clamp the derived overlap below small sizes", func(t *testing.T) {
		p, err := NewProcessor(Settings{Size: 40, MaxChars: 40})
		require.NoError(t, err)
		assert.Less(t, p.Settings().Overlap, 40)
	})
}

func TestProcessorProcess(t *testing.T) {
	t.Run("Should return no chunks for empty input", func(t *testing.T) {
		p := mustProcessor(t, Settings{})
		chunks, err := p.Process("kb", nil)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})
	t.Run("Should keep every chunk within the ceiling", func(t *testing.T) {
		p := mustProcessor(t, Settings{MaxChars: 120})
		docs := []Document{
			{ID: "doc-1", Text: strings.Repeat("alpha beta gamma delta. ", 60)},
			{ID: "doc-2", Text: strings.Repeat("x", 900), Metadata: Metadata{FileExtension: ".md"}},
		}
		chunks, err := p.Process("kb", docs)
		require.NoError(t, err)
		require.NotEmpty(t, chunks)
		for i, c := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), 120, "chunk %d over ceiling", i)
		}
	})
	t.Run("Should preserve text of a separator-free run across the re-split", func(t *testing.T) {
		p := mustProcessor(t, Settings{MaxChars: 500})
		text := strings.Repeat("a", 1200)
		chunks, err := p.Process("kb", []Document{{
			ID:       "doc-md",
			Text:     text,
			Metadata: Metadata{FileExtension: ".md"},
		}})
		require.NoError(t, err)
		require.Len(t, chunks, 3)
		assert.Equal(t, 500, utf8.RuneCountInString(chunks[0].Text))
		assert.Equal(t, 500, utf8.RuneCountInString(chunks[1].Text))
		assert.Equal(t, 200, utf8.RuneCountInString(chunks[2].Text))
		assert.Equal(t, text, chunks[0].Text+chunks[1].Text+chunks[2].Text)
	})
	t.Run("Should produce identical output on identical input", func(t *testing.T) {
		p := mustProcessor(t, Settings{MaxChars: 200})
		docs := []Document{
			{ID: "a", Text: strings.Repeat("first section.\n\n", 40)},
			{ID: "b", Text: "## Heading\n" + strings.Repeat("body line\n", 50), Metadata: Metadata{FileExtension: ".md"}},
			{ID: "c", Text: strings.Repeat("plain text words here ", 30)},
		}
		first, err := p.Process("kb", docs)
		require.NoError(t, err)
		second, err := p.Process("kb", docs)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestProcessorSplit(t *testing.T) {
	t.Run("Should require a collection", func(t *testing.T) {
		p := mustProcessor(t, Settings{})
		_, err := p.Split("  ", []Document{{ID: "a", Text: "hello"}})
		require.Error(t, err)
	})
	t.Run("Should skip blank documents", func(t *testing.T) {
		p := mustProcessor(t, Settings{})
		chunks, err := p.Split("kb", []Document{{ID: "a", Text: "  \n\t "}})
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})
	t.Run("Should normalize carriage returns before splitting", func(t *testing.T) {
		p := mustProcessor(t, Settings{})
		chunks, err := p.Split("kb", []Document{{ID: "a", Text: "one\r\ntwo\rthree"}})
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "one\ntwo\nthree", chunks[0].Text)
	})
	t.Run("Should group documents by language in first-seen order", func(t *testing.T) {
		p := mustProcessor(t, Settings{})
		chunks, err := p.Split("kb", []Document{
			{ID: "md-1", Text: "markdown one", Metadata: Metadata{FileExtension: ".md"}},
			{ID: "txt-1", Text: "plain one"},
			{ID: "md-2", Text: "markdown two", Metadata: Metadata{FileExtension: ".md"}},
		})
		require.NoError(t, err)
		require.Len(t, chunks, 3)
		ids := []string{chunks[0].Metadata.DocumentID, chunks[1].Metadata.DocumentID, chunks[2].Metadata.DocumentID}
		assert.Equal(t, []string{"md-1", "md-2", "txt-1"}, ids)
	})
	t.Run("Should stamp document id and chunk index on copied metadata", func(t *testing.T) {
		p := mustProcessor(t, Settings{})
		source := Metadata{
			SourceID: "src",
			Source:   "https://example.com/guide.md",
			Extra:    map[string]any{"branch": "main"},
		}
		chunks, err := p.Split("kb", []Document{{ID: "doc", Text: "hello world", Metadata: source}})
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		got := chunks[0].Metadata
		assert.Equal(t, "doc", got.DocumentID)
		assert.Equal(t, 0, got.ChunkIndex)
		assert.Equal(t, "src", got.SourceID)

		got.Extra["branch"] = "mutated"
		assert.Equal(t, "main", source.Extra["branch"])
		assert.Empty(t, source.DocumentID)
	})
	t.Run("Should derive deterministic chunk ids from collection document and position", func(t *testing.T) {
		p := mustProcessor(t, Settings{})
		a, err := p.Split("kb", []Document{{ID: "doc", Text: "same text"}})
		require.NoError(t, err)
		b, err := p.Split("kb", []Document{{ID: "doc", Text: "same text"}})
		require.NoError(t, err)
		require.Len(t, a, 1)
		require.Len(t, b, 1)
		assert.Equal(t, a[0].ID, b[0].ID)

		other, err := p.Split("other", []Document{{ID: "doc", Text: "same text"}})
		require.NoError(t, err)
		require.Len(t, other, 1)
		assert.NotEqual(t, a[0].ID, other[0].ID)
	})
}

func TestResplitOversize(t *testing.T) {
	t.Run("Should pass compliant chunks through unchanged", func(t *testing.T) {
		in := []Chunk{{ID: "1", Text: "short", Hash: hashText("short")}}
		out := ResplitOversize(in, 100)
		assert.Equal(t, in, out)
	})
	t.Run("Should slice oversize chunks into fixed-width pieces", func(t *testing.T) {
		in := []Chunk{{ID: "1", Text: strings.Repeat("b", 250)}}
		out := ResplitOversize(in, 100)
		require.Len(t, out, 3)
		assert.Equal(t, 100, utf8.RuneCountInString(out[0].Text))
		assert.Equal(t, 100, utf8.RuneCountInString(out[1].Text))
		assert.Equal(t, 50, utf8.RuneCountInString(out[2].Text))
		assert.NotEqual(t, out[0].ID, out[1].ID)
	})
	t.Run("Should count runes rather than bytes", func(t *testing.T) {
		in := []Chunk{{ID: "1", Text: strings.Repeat("é", 150)}}
		out := ResplitOversize(in, 100)
		require.Len(t, out, 2)
		assert.Equal(t, 100, utf8.RuneCountInString(out[0].Text))
		assert.Equal(t, 50, utf8.RuneCountInString(out[1].Text))
	})
	t.Run("Should drop slices that strip to nothing", func(t *testing.T) {
		in := []Chunk{{ID: "1", Text: strings.Repeat("c", 100) + strings.Repeat(" ", 40)}}
		out := ResplitOversize(in, 100)
		require.Len(t, out, 1)
		assert.Equal(t, strings.Repeat("c", 100), out[0].Text)
	})
	t.Run("Should be idempotent", func(t *testing.T) {
		in := []Chunk{{ID: "1", Text: strings.Repeat("d", 333)}}
		once := ResplitOversize(in, 100)
		twice := ResplitOversize(once, 100)
		assert.Equal(t, once, twice)
	})
}

func TestVerifyLimit(t *testing.T) {
	t.Run("Should accept chunks at the ceiling", func(t *testing.T) {
		err := VerifyLimit([]Chunk{{Text: strings.Repeat("a", 100)}}, 100)
		assert.NoError(t, err)
	})
	t.Run("Should report offending indices", func(t *testing.T) {
		chunks := []Chunk{
			{Text: "ok"},
			{Text: strings.Repeat("a", 101)},
			{Text: strings.Repeat("b", 200)},
		}
		err := VerifyLimit(chunks, 100)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "[1 2]")
	})
	t.Run("Should cap the reported sample at five indices", func(t *testing.T) {
		chunks := make([]Chunk, 8)
		for i := range chunks {
			chunks[i] = Chunk{Text: strings.Repeat("x", 101)}
		}
		err := VerifyLimit(chunks, 100)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "8 chunk(s)")
		assert.Contains(t, err.Error(), "[0 1 2 3 4]")
	})
}

func mustProcessor(t *testing.T, settings Settings) *Processor {
	t.Helper()
	p, err := NewProcessor(settings)
	require.NoError(t, err)
	return p
}
