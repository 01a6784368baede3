package ingest

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	gh "github.com/google/go-github/v74/github"
	"golang.org/x/oauth2"

	"github.com/cesarhb/kb-engine-playground/engine/knowledge"
	"github.com/cesarhb/kb-engine-playground/pkg/logger"
)

const maxRepoFileBytes = 1024 * 1024

type repositoryFile struct {
	path    string
	sha     string
	htmlURL string
	text    string
}

// repoTreeFetcher is swapped in tests to avoid the network.
var repoTreeFetcher = fetchRepositoryFilesAPI

func fetchRepositoryFiles(ctx context.Context, src *knowledge.SourceConfig, token string) ([]repositoryFile, error) {
	return repoTreeFetcher(ctx, src, token)
}

func fetchRepositoryFilesAPI(ctx context.Context, src *knowledge.SourceConfig, token string) ([]repositoryFile, error) {
	owner, name, ok := strings.Cut(src.Repo, "/")
	if !ok {
		return nil, fmt.Errorf("ingest: repo must be owner/name, got %q", src.Repo)
	}
	client := newGitHubClient(ctx, token)
	tree, _, err := client.Git.GetTree(ctx, owner, name, src.Branch, true)
	if err != nil {
		return nil, fmt.Errorf("ingest: list tree for %s@%s: %w", src.Repo, src.Branch, err)
	}
	log := logger.FromContext(ctx)
	files := make([]repositoryFile, 0, 64)
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		path := entry.GetPath()
		if !repoFileIncluded(path, src.IncludePaths, src.FileExtensions) {
			continue
		}
		if entry.GetSize() > maxRepoFileBytes {
			log.Warn("skipping oversized repository file", "repo", src.Repo, "path", path, "bytes", entry.GetSize())
			continue
		}
		content, err := fetchBlobText(ctx, client, owner, name, entry.GetSHA())
		if err != nil {
			log.Warn("skipping unreadable repository file", "repo", src.Repo, "path", path, "error", err)
			continue
		}
		files = append(files, repositoryFile{
			path:    path,
			sha:     entry.GetSHA(),
			htmlURL: fmt.Sprintf("https://github.com/%s/blob/%s/%s", src.Repo, src.Branch, path),
			text:    content,
		})
	}
	return files, nil
}

func newGitHubClient(ctx context.Context, token string) *gh.Client {
	if token == "" {
		return gh.NewClient(nil)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return gh.NewClient(oauth2.NewClient(ctx, ts))
}

func fetchBlobText(ctx context.Context, client *gh.Client, owner, repo, sha string) (string, error) {
	blob, _, err := client.Git.GetBlob(ctx, owner, repo, sha)
	if err != nil {
		return "", fmt.Errorf("get blob %s: %w", sha, err)
	}
	raw := blob.GetContent()
	if blob.GetEncoding() == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(raw, "\n", ""))
		if err != nil {
			return "", fmt.Errorf("decode blob %s: %w", sha, err)
		}
		return normalizeRemoteText(string(decoded)), nil
	}
	return normalizeRemoteText(raw), nil
}

// repoFileIncluded applies the include path prefixes and extension list.
// An empty prefix list includes the whole tree.
func repoFileIncluded(path string, includePaths []string, extensions []string) bool {
	if len(includePaths) > 0 {
		matched := false
		for _, prefix := range includePaths {
			prefix = strings.TrimSpace(prefix)
			if prefix == "" {
				continue
			}
			if strings.HasPrefix(path, prefix) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if len(extensions) == 0 {
		return true
	}
	lowered := strings.ToLower(path)
	for _, ext := range extensions {
		if strings.HasSuffix(lowered, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}
