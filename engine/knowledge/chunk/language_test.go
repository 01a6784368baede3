package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectLanguage(t *testing.T) {
	t.Run("Should prefer the explicit file extension", func(t *testing.T) {
		lang := DetectLanguage(Metadata{
			FileExtension: ".md",
			Source:        "https://example.com/page.html",
		})
		assert.Equal(t, LanguageMarkdown, lang)
	})
	t.Run("Should map markdown extensions", func(t *testing.T) {
		assert.Equal(t, LanguageMarkdown, DetectLanguage(Metadata{FileExtension: ".markdown"}))
		assert.Equal(t, LanguageMarkdown, DetectLanguage(Metadata{FileExtension: ".MD"}))
	})
	t.Run("Should map restructuredtext extensions", func(t *testing.T) {
		assert.Equal(t, LanguageRST, DetectLanguage(Metadata{FileExtension: ".rst"}))
	})
	t.Run("Should fall back to the source location", func(t *testing.T) {
		assert.Equal(t, LanguageMarkdown, DetectLanguage(Metadata{Source: "docs/guide.md"}))
		assert.Equal(t, LanguageRST, DetectLanguage(Metadata{Source: "https://docs.example.com/index.rst"}))
	})
	t.Run("Should default unknown extensions", func(t *testing.T) {
		assert.Equal(t, LanguageDefault, DetectLanguage(Metadata{FileExtension: ".txt"}))
		assert.Equal(t, LanguageDefault, DetectLanguage(Metadata{Source: "https://example.com/page"}))
		assert.Equal(t, LanguageDefault, DetectLanguage(Metadata{}))
	})
}

func TestExtensionFromSource(t *testing.T) {
	t.Run("Should extract a trailing extension", func(t *testing.T) {
		assert.Equal(t, ".md", extensionFromSource("docs/readme.md"))
	})
	t.Run("Should ignore query strings", func(t *testing.T) {
		assert.Equal(t, ".rst", extensionFromSource("https://example.com/a.rst?ref=main"))
	})
	t.Run("Should truncate at the next path segment", func(t *testing.T) {
		assert.Equal(t, ".2", extensionFromSource("https://example.com/v1.2/guide"))
	})
	t.Run("Should return empty for sources without a dot", func(t *testing.T) {
		assert.Empty(t, extensionFromSource("plain-source"))
	})
}

func TestSeparatorsFor(t *testing.T) {
	t.Run("Should keep a universal fallback for plain text", func(t *testing.T) {
		seps := separatorsFor(LanguageDefault)
		assert.Equal(t, "", seps[len(seps)-1])
	})
	t.Run("Should omit the universal fallback for structured text", func(t *testing.T) {
		for _, lang := range []Language{LanguageMarkdown, LanguageRST} {
			for _, sep := range separatorsFor(lang) {
				assert.NotEmpty(t, sep, "language %s", lang)
			}
		}
	})
	t.Run("Should lead markdown separators with headings", func(t *testing.T) {
		seps := separatorsFor(LanguageMarkdown)
		assert.Equal(t, "\n# ", seps[0])
	})
}
