package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/cesarhb/kb-engine-playground/engine/knowledge"
	"github.com/cesarhb/kb-engine-playground/engine/knowledge/chunk"
	"github.com/cesarhb/kb-engine-playground/pkg/logger"
)

// Options controls how sources are resolved and fetched.
type Options struct {
	// CWD anchors markdown_glob patterns. Required when such sources exist.
	CWD string
	// HTTPClient overrides the default client used for url and pdf sources.
	HTTPClient *http.Client
	// GitHubToken authenticates github_repo sources when a source does not
	// carry its own access token.
	GitHubToken string
}

type documentList struct {
	items []chunk.Document
	seen  map[string]struct{}
}

func enumerateSources(ctx context.Context, sources []knowledge.SourceConfig, opts *Options) ([]chunk.Document, error) {
	if opts == nil {
		return nil, errors.New("ingest: options are required")
	}
	list := documentList{items: make([]chunk.Document, 0), seen: make(map[string]struct{})}
	for i := range sources {
		src := &sources[i]
		var err error
		switch src.Type {
		case knowledge.SourceTypeURL:
			err = list.appendURLs(ctx, opts.HTTPClient, src, []string{src.URL})
		case knowledge.SourceTypeURLs:
			err = list.appendURLs(ctx, opts.HTTPClient, src, src.URLs)
		case knowledge.SourceTypePDFURL:
			err = list.appendURLs(ctx, opts.HTTPClient, src, []string{src.URL})
		case knowledge.SourceTypePDFURLs:
			err = list.appendURLs(ctx, opts.HTTPClient, src, src.URLs)
		case knowledge.SourceTypeGitHubRepo:
			err = list.appendGitHubRepo(ctx, src, opts.GitHubToken)
		case knowledge.SourceTypeMarkdownGlob:
			err = list.appendGlob(ctx, src, opts.CWD)
		default:
			err = fmt.Errorf("ingest: source type %q not supported", src.Type)
		}
		if err != nil {
			return nil, err
		}
	}
	return list.items, nil
}

func (l *documentList) appendDocument(docID string, text string, meta chunk.Metadata) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}
	hash := hashContent(trimmed)
	if _, exists := l.seen[hash]; exists {
		return
	}
	l.seen[hash] = struct{}{}
	if meta.Extra == nil {
		meta.Extra = make(map[string]any, 2)
	}
	meta.Extra["content_hash"] = hash
	l.items = append(l.items, chunk.Document{ID: docID, Text: trimmed, Metadata: meta})
}

func (l *documentList) appendURLs(ctx context.Context, client *http.Client, src *knowledge.SourceConfig, urls []string) error {
	log := logger.FromContext(ctx)
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		result, err := fetchRemoteDocument(ctx, client, raw)
		if err != nil {
			return err
		}
		if result.text == "" {
			log.Warn("document source returned no text", "source_id", src.ID, "url", raw)
			continue
		}
		meta := chunk.Metadata{
			SourceID:      src.ID,
			Source:        raw,
			SourceURL:     raw,
			ContentType:   result.contentType,
			FileExtension: extensionForContentType(result.contentType, result.filename),
			Extra:         map[string]any{"source_type": string(src.Type), "bytes": result.size},
		}
		if result.filename != "" {
			meta.Extra["filename"] = result.filename
		}
		l.appendDocument(raw, result.text, meta)
	}
	return nil
}

func (l *documentList) appendGitHubRepo(ctx context.Context, src *knowledge.SourceConfig, fallbackToken string) error {
	token := src.AccessToken
	if token == "" {
		token = fallbackToken
	}
	files, err := fetchRepositoryFiles(ctx, src, token)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logger.FromContext(ctx).Warn("repository source matched no files", "source_id", src.ID, "repo", src.Repo)
		return nil
	}
	for _, file := range files {
		docID := src.Repo + "/" + file.path
		meta := chunk.Metadata{
			SourceID:      src.ID,
			Source:        file.path,
			SourceURL:     file.htmlURL,
			FileExtension: strings.ToLower(filepath.Ext(file.path)),
			Extra: map[string]any{
				"source_type": string(knowledge.SourceTypeGitHubRepo),
				"repo":        src.Repo,
				"branch":      src.Branch,
				"sha":         file.sha,
			},
		}
		l.appendDocument(docID, file.text, meta)
	}
	return nil
}

func (l *documentList) appendGlob(ctx context.Context, src *knowledge.SourceConfig, cwd string) error {
	if strings.TrimSpace(cwd) == "" {
		return errors.New("ingest: markdown_glob requires a working directory")
	}
	root := filepath.Clean(cwd)
	for _, pattern := range src.Paths {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		matches, err := doublestar.FilepathGlob(filepath.Clean(filepath.Join(root, pattern)))
		if err != nil {
			return fmt.Errorf("ingest: glob %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			logger.FromContext(ctx).Warn("glob pattern matched no files", "source_id", src.ID, "pattern", pattern)
			continue
		}
		for _, abs := range matches {
			within, err := pathInside(root, abs)
			if err != nil {
				return err
			}
			if !within {
				return fmt.Errorf("ingest: glob match %q escapes working directory", abs)
			}
			rel, err := filepath.Rel(root, abs)
			if err != nil {
				return fmt.Errorf("ingest: resolve relative path for %q: %w", abs, err)
			}
			text, err := readLocalFile(abs)
			if err != nil {
				return err
			}
			docID := filepath.ToSlash(rel)
			meta := chunk.Metadata{
				SourceID:      src.ID,
				Source:        docID,
				FileExtension: strings.ToLower(filepath.Ext(abs)),
				Extra:         map[string]any{"source_type": string(knowledge.SourceTypeMarkdownGlob)},
			}
			l.appendDocument(docID, text, meta)
		}
	}
	return nil
}

func pathInside(root, target string) (bool, error) {
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return false, fmt.Errorf("ingest: resolve root %q: %w", root, err)
	}
	resolvedTarget, err := filepath.EvalSymlinks(target)
	if err != nil {
		if os.IsNotExist(err) {
			return false, fmt.Errorf("ingest: target path does not exist: %s", target)
		}
		return false, fmt.Errorf("ingest: resolve target %q: %w", target, err)
	}
	rel, err := filepath.Rel(resolvedRoot, resolvedTarget)
	if err != nil {
		return false, fmt.Errorf("ingest: compute relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return false, nil
	}
	return true, nil
}

func extensionForContentType(contentType string, filename string) string {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" {
		return ext
	}
	switch {
	case strings.HasPrefix(contentType, "text/markdown"):
		return ".md"
	case strings.HasPrefix(contentType, "application/pdf"):
		return ".pdf"
	case strings.HasPrefix(contentType, "text/html"):
		return ".html"
	default:
		return ""
	}
}

func hashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:16])
}
