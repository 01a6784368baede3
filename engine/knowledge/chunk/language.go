package chunk

import "strings"

// Language keys the splitting strategy for a group of documents. It is a
// classification, not stored state: documents with the same inferred
// extension always land in the same group.
type Language string

const (
	LanguageDefault  Language = "default"
	LanguageMarkdown Language = "markdown"
	LanguageRST      Language = "rst"
)

var extLanguages = map[string]Language{
	".md":       LanguageMarkdown,
	".markdown": LanguageMarkdown,
	".rst":      LanguageRST,
}

// .txt and unknown extensions use the default splitter.

// DetectLanguage maps document metadata to a splitting language. It prefers
// an explicit FileExtension and otherwise derives one from the source path
// or URL. It never fails; anything unmapped is LanguageDefault.
func DetectLanguage(meta Metadata) Language {
	ext := strings.ToLower(strings.TrimSpace(meta.FileExtension))
	if ext == "" {
		ext = extensionFromSource(meta.Source)
	}
	if lang, ok := extLanguages[ext]; ok {
		return lang
	}
	return LanguageDefault
}

// extensionFromSource takes the substring after the last dot, dropping any
// trailing path segment or query string, lower-cased with a leading dot.
func extensionFromSource(source string) string {
	source = strings.TrimSpace(source)
	idx := strings.LastIndex(source, ".")
	if idx < 0 || idx == len(source)-1 {
		return ""
	}
	ext := source[idx+1:]
	ext, _, _ = strings.Cut(ext, "/")
	ext, _, _ = strings.Cut(ext, "?")
	if ext == "" {
		return ""
	}
	return "." + strings.ToLower(ext)
}

// separatorsFor returns the separator priority list for a language. The
// default list ends with the empty string so generic text always falls back
// to a character-level split. The structured lists stop at single spaces:
// a separator-free run then surfaces as one oversize chunk, which the
// re-split stage slices without losing content.
func separatorsFor(lang Language) []string {
	switch lang {
	case LanguageMarkdown:
		return []string{
			"\n# ", "\n## ", "\n### ", "\n#### ",
			"\n```",
			"\n\n", "\n", " ",
		}
	case LanguageRST:
		return []string{
			"\n===", "\n---", "\n~~~",
			"\n\n", "\n", " ",
		}
	default:
		return []string{"\n\n", "\n", " ", ""}
	}
}
