package ingest

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// MaxDocumentSizeBytes bounds a single fetched document.
const MaxDocumentSizeBytes = 4 * 1024 * 1024

const fetchTimeout = 60 * time.Second

type remoteFetchResult struct {
	text        string
	contentType string
	size        int64
	filename    string
}

func fetchRemoteDocument(ctx context.Context, client *http.Client, rawURL string) (remoteFetchResult, error) {
	data, contentType, err := downloadURL(ctx, client, rawURL)
	if err != nil {
		return remoteFetchResult{}, err
	}
	mime := normalizeContentType(data, contentType)
	filename := filenameFromURL(rawURL)
	if isPDFContentType(mime) {
		text, pdfErr := extractPDFText(data)
		if pdfErr != nil {
			return remoteFetchResult{}, fmt.Errorf("ingest: extract pdf %q: %w", rawURL, pdfErr)
		}
		return remoteFetchResult{
			text:        strings.TrimSpace(normalizeRemoteText(text)),
			contentType: mime,
			size:        int64(len(data)),
			filename:    filename,
		}, nil
	}
	text, decodeErr := decodeRemoteText(data, mime)
	if decodeErr != nil {
		return remoteFetchResult{}, fmt.Errorf("ingest: decode url %q: %w", rawURL, decodeErr)
	}
	if isHTMLContentType(mime) {
		text = stripHTML(text)
	}
	return remoteFetchResult{
		text:        strings.TrimSpace(text),
		contentType: mime,
		size:        int64(len(data)),
		filename:    filename,
	}, nil
}

func downloadURL(ctx context.Context, client *http.Client, rawURL string) ([]byte, string, error) {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, "", fmt.Errorf("ingest: build request for %q: %w", rawURL, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("ingest: download url %q: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("ingest: download url %q: unexpected status %s", rawURL, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDocumentSizeBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("ingest: read url %q: %w", rawURL, err)
	}
	if len(data) > MaxDocumentSizeBytes {
		return nil, "", fmt.Errorf("ingest: url %q exceeds maximum size of %d bytes", rawURL, MaxDocumentSizeBytes)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// extractPDFText parses a PDF from memory and concatenates its plain text.
func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return sb.String(), nil
}

func decodeRemoteText(data []byte, mime string) (string, error) {
	if utf8.Valid(data) {
		return normalizeRemoteText(string(data)), nil
	}
	enc, name, _ := charset.DetermineEncoding(data, mime)
	reader := transform.NewReader(bytes.NewReader(data), enc.NewDecoder())
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("transcode from %s: %w", name, err)
	}
	if !utf8.Valid(decoded) {
		return "", fmt.Errorf("transcoded result invalid utf-8")
	}
	return normalizeRemoteText(string(decoded)), nil
}

func normalizeRemoteText(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return s
}

func normalizeContentType(data []byte, raw string) string {
	value := strings.TrimSpace(raw)
	if idx := strings.Index(value, ";"); idx != -1 {
		value = strings.TrimSpace(value[:idx])
	}
	if value == "" || strings.EqualFold(value, "application/octet-stream") {
		if detected := mimetype.Detect(data); detected != nil {
			value = detected.String()
			if idx := strings.Index(value, ";"); idx != -1 {
				value = strings.TrimSpace(value[:idx])
			}
		}
	}
	return value
}

func isPDFContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "application/pdf")
}

func isHTMLContentType(contentType string) bool {
	lowered := strings.ToLower(contentType)
	return strings.HasPrefix(lowered, "text/html") || strings.HasPrefix(lowered, "application/xhtml")
}

func filenameFromURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	name := path.Base(parsed.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

var (
	scriptTag     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag   = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTag       = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	htmlComments  = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockClose    = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	blockOpen     = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)[^>]*>`)
	brTags        = regexp.MustCompile(`(?i)<(br|hr)\s*/?>`)
	allTags       = regexp.MustCompile(`<[^>]+>`)
	multiSpaces   = regexp.MustCompile(`[ \t]+`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// stripHTML removes markup and extracts readable text content.
func stripHTML(content string) string {
	content = scriptTag.ReplaceAllString(content, "")
	content = styleTag.ReplaceAllString(content, "")
	content = noscriptTag.ReplaceAllString(content, "")
	content = headTag.ReplaceAllString(content, "")
	content = htmlComments.ReplaceAllString(content, "")
	content = blockOpen.ReplaceAllString(content, "\n")
	content = blockClose.ReplaceAllString(content, "\n")
	content = brTags.ReplaceAllString(content, "\n")
	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	content = multiSpaces.ReplaceAllString(content, " ")
	content = multiNewlines.ReplaceAllString(content, "\n\n")
	lines := strings.Split(content, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, "\n")
}

// readLocalFile reads a file with the same size cap applied to remote
// documents.
func readLocalFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("ingest: open file %q: %w", path, err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("ingest: stat file %q: %w", path, err)
	}
	if info.Size() > MaxDocumentSizeBytes {
		return "", fmt.Errorf("ingest: file %q exceeds maximum size of %d bytes", path, MaxDocumentSizeBytes)
	}
	data, err := io.ReadAll(io.LimitReader(file, MaxDocumentSizeBytes+1))
	if err != nil {
		return "", fmt.Errorf("ingest: read file %q: %w", path, err)
	}
	if len(data) > MaxDocumentSizeBytes {
		return "", fmt.Errorf("ingest: file %q changed during ingestion and exceeded %d bytes", path, MaxDocumentSizeBytes)
	}
	return strings.TrimSpace(normalizeRemoteText(string(data))), nil
}
