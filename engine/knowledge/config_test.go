package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc_sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSources(t *testing.T) {
	t.Run("Should load a mixed manifest", func(t *testing.T) {
		path := writeManifest(t, `
sources:
  - id: readme
    type: url
    url: https://example.com/readme.md
  - id: handbook
    type: pdf_urls
    urls:
      - https://example.com/a.pdf
      - https://example.com/b.pdf
  - id: docs-repo
    type: github_repo
    repo: acme/docs
    include_paths:
      - docs/
`)
		sources, err := LoadSources(path)
		require.NoError(t, err)
		require.Len(t, sources, 3)
		assert.Equal(t, SourceTypeURL, sources[0].Type)
		assert.Equal(t, SourceTypePDFURLs, sources[1].Type)
		assert.Equal(t, "main", sources[2].Branch)
		assert.Equal(t, []string{".md", ".rst", ".txt"}, sources[2].FileExtensions)
	})
	t.Run("Should fail on the first invalid source", func(t *testing.T) {
		path := writeManifest(t, `
sources:
  - id: ok
    type: url
    url: https://example.com
  - id: bad
    type: github_repo
    repo: not-a-repo
`)
		_, err := LoadSources(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "owner/name")
	})
	t.Run("Should reject duplicate ids", func(t *testing.T) {
		path := writeManifest(t, `
sources:
  - id: same
    type: url
    url: https://example.com/a
  - id: same
    type: url
    url: https://example.com/b
`)
		_, err := LoadSources(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate source id")
	})
	t.Run("Should reject an empty manifest", func(t *testing.T) {
		path := writeManifest(t, "sources: []\n")
		_, err := LoadSources(path)
		require.Error(t, err)
	})
	t.Run("Should reject a missing file", func(t *testing.T) {
		_, err := LoadSources(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})
}

func TestSourceConfigValidate(t *testing.T) {
	t.Run("Should require an id", func(t *testing.T) {
		src := SourceConfig{Type: SourceTypeURL, URL: "https://example.com"}
		require.Error(t, src.Validate())
	})
	t.Run("Should reject unknown types", func(t *testing.T) {
		src := SourceConfig{ID: "x", Type: "rss"}
		err := src.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported source type")
	})
	t.Run("Should reject empty url list entries", func(t *testing.T) {
		src := SourceConfig{ID: "x", Type: SourceTypeURLs, URLs: []string{"https://a", " "}}
		require.Error(t, src.Validate())
	})
	t.Run("Should keep explicit repo extensions", func(t *testing.T) {
		src := SourceConfig{ID: "x", Type: SourceTypeGitHubRepo, Repo: "acme/docs", FileExtensions: []string{".md"}}
		require.NoError(t, src.Validate())
		assert.Equal(t, []string{".md"}, src.FileExtensions)
	})
	t.Run("Should require paths for glob sources", func(t *testing.T) {
		src := SourceConfig{ID: "x", Type: SourceTypeMarkdownGlob}
		require.Error(t, src.Validate())
	})
}
