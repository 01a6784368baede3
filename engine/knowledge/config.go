package knowledge

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// SourceType identifies how a configured source is loaded.
type SourceType string

const (
	SourceTypeURL          SourceType = "url"
	SourceTypeURLs         SourceType = "urls"
	SourceTypePDFURL       SourceType = "pdf_url"
	SourceTypePDFURLs      SourceType = "pdf_urls"
	SourceTypeGitHubRepo   SourceType = "github_repo"
	SourceTypeMarkdownGlob SourceType = "markdown_glob"
)

// defaultRepoExtensions are the file suffixes loaded from a repository when
// a source does not list its own.
var defaultRepoExtensions = []string{".md", ".rst", ".txt"}

// SourceConfig describes one entry of the document source manifest.
type SourceConfig struct {
	ID   string     `yaml:"id"`
	Type SourceType `yaml:"type"`

	// url, pdf_url
	URL string `yaml:"url,omitempty"`
	// urls, pdf_urls
	URLs []string `yaml:"urls,omitempty"`

	// github_repo
	Repo           string   `yaml:"repo,omitempty"`
	Branch         string   `yaml:"branch,omitempty"`
	IncludePaths   []string `yaml:"include_paths,omitempty"`
	FileExtensions []string `yaml:"file_extensions,omitempty"`
	AccessToken    string   `yaml:"access_token,omitempty"`

	// markdown_glob
	Paths []string `yaml:"paths,omitempty"`
}

// Manifest is the root of a doc_sources.yaml file.
type Manifest struct {
	Sources []SourceConfig `yaml:"sources"`
}

// LoadSources reads and validates a source manifest. Validation is
// fail-fast: the first invalid entry aborts the load so a bad manifest
// never starts a partial ingestion.
func LoadSources(path string) ([]SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("knowledge: read source manifest: %w", err)
	}
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("knowledge: parse source manifest %s: %w", path, err)
	}
	if len(manifest.Sources) == 0 {
		return nil, fmt.Errorf("knowledge: source manifest %s lists no sources", path)
	}
	seen := make(map[string]struct{}, len(manifest.Sources))
	for i := range manifest.Sources {
		src := &manifest.Sources[i]
		if err := src.Validate(); err != nil {
			return nil, fmt.Errorf("knowledge: source %d: %w", i, err)
		}
		if _, dup := seen[src.ID]; dup {
			return nil, fmt.Errorf("knowledge: duplicate source id %q", src.ID)
		}
		seen[src.ID] = struct{}{}
	}
	return manifest.Sources, nil
}

// Validate checks the fields required by the source type and fills
// type-specific defaults.
func (s *SourceConfig) Validate() error {
	s.ID = strings.TrimSpace(s.ID)
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	switch s.Type {
	case SourceTypeURL, SourceTypePDFURL:
		if strings.TrimSpace(s.URL) == "" {
			return fmt.Errorf("%s: type %s requires url", s.ID, s.Type)
		}
	case SourceTypeURLs, SourceTypePDFURLs:
		if len(s.URLs) == 0 {
			return fmt.Errorf("%s: type %s requires a non-empty urls list", s.ID, s.Type)
		}
		for _, u := range s.URLs {
			if strings.TrimSpace(u) == "" {
				return fmt.Errorf("%s: urls list contains an empty entry", s.ID)
			}
		}
	case SourceTypeGitHubRepo:
		repo := strings.TrimSpace(s.Repo)
		if repo == "" {
			return fmt.Errorf("%s: type github_repo requires repo", s.ID)
		}
		if parts := strings.Split(repo, "/"); len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return fmt.Errorf("%s: repo must be owner/name, got %q", s.ID, repo)
		}
		if s.Branch == "" {
			s.Branch = "main"
		}
		if len(s.FileExtensions) == 0 {
			s.FileExtensions = append([]string(nil), defaultRepoExtensions...)
		}
	case SourceTypeMarkdownGlob:
		if len(s.Paths) == 0 {
			return fmt.Errorf("%s: type markdown_glob requires a non-empty paths list", s.ID)
		}
	default:
		return fmt.Errorf("%s: unsupported source type %q", s.ID, s.Type)
	}
	return nil
}
