package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

// DefaultMaxChars is the hard per-chunk ceiling used when the caller does
// not supply one. It matches the mxbai-embed-large input limit (512 tokens)
// with headroom at roughly one character per token.
const DefaultMaxChars = 500

var newlinePattern = regexp.MustCompile(`\r\n|\r`)

// Processor splits documents into chunks that never exceed the configured
// character ceiling.
type Processor struct {
	settings Settings
}

// NewProcessor builds a processor with sanitized defaults.
func NewProcessor(settings Settings) (*Processor, error) {
	if settings.MaxChars <= 0 {
		settings.MaxChars = DefaultMaxChars
	}
	if settings.Size < 0 {
		return nil, errors.New("chunk: size cannot be negative")
	}
	if settings.Size == 0 {
		settings.Size = settings.MaxChars
	}
	if settings.Overlap < 0 {
		return nil, errors.New("chunk: overlap cannot be negative")
	}
	if settings.Overlap == 0 {
		settings.Overlap = defaultOverlap(settings.Size)
	}
	if settings.Overlap >= settings.Size {
		return nil, fmt.Errorf("chunk: overlap %d must be smaller than size %d", settings.Overlap, settings.Size)
	}
	return &Processor{settings: settings}, nil
}

// Settings returns the sanitized settings in effect.
func (p *Processor) Settings() Settings {
	return p.settings
}

func defaultOverlap(size int) int {
	overlap := size / 10
	if overlap < 50 {
		overlap = 50
	}
	if overlap >= size {
		if size <= 4 {
			return 0
		}
		overlap = size / 4
	}
	return overlap
}

// Process runs the full chunking pipeline: group by language, split each
// group with its splitter, re-split anything still over the ceiling, then
// verify the ceiling holds. A VerifyLimit failure here is a logic error in
// the re-split step, never an input problem.
func (p *Processor) Process(collection string, docs []Document) ([]Chunk, error) {
	chunks, err := p.Split(collection, docs)
	if err != nil {
		return nil, err
	}
	chunks = ResplitOversize(chunks, p.settings.MaxChars)
	if err := VerifyLimit(chunks, p.settings.MaxChars); err != nil {
		return nil, err
	}
	return chunks, nil
}

// Split partitions documents by detected language and splits each group
// with a language-aware recursive splitter. Order within a group follows
// the input; group order follows first appearance of each language.
// Splitting is greedy and separator-driven, so a long separator-free run
// can legitimately produce a chunk above the ceiling; callers follow up
// with ResplitOversize.
func (p *Processor) Split(collection string, docs []Document) ([]Chunk, error) {
	if strings.TrimSpace(collection) == "" {
		return nil, errors.New("chunk: collection is required")
	}
	if len(docs) == 0 {
		return nil, nil
	}
	groups, order := groupByLanguage(docs)
	chunks := make([]Chunk, 0, len(docs))
	for _, lang := range order {
		splitter := p.splitterFor(lang)
		for _, doc := range groups[lang] {
			text := strings.TrimSpace(newlinePattern.ReplaceAllString(doc.Text, "\n"))
			if text == "" {
				continue
			}
			segments, err := splitter.SplitText(text)
			if err != nil {
				return nil, fmt.Errorf("chunk: split document %s: %w", doc.ID, err)
			}
			for idx, segment := range segments {
				chunkText := strings.TrimSpace(segment)
				if chunkText == "" {
					continue
				}
				hash := hashText(chunkText)
				meta := doc.Metadata.Clone()
				meta.DocumentID = doc.ID
				meta.ChunkIndex = idx
				chunkID := hashText(collection + "::" + doc.ID + "::" + fmt.Sprint(idx) + "::" + hash)
				chunks = append(chunks, Chunk{
					ID:       chunkID,
					Text:     chunkText,
					Hash:     hash,
					Metadata: meta,
				})
			}
		}
	}
	return chunks, nil
}

func groupByLanguage(docs []Document) (map[Language][]Document, []Language) {
	groups := make(map[Language][]Document, 3)
	order := make([]Language, 0, 3)
	for i := range docs {
		lang := DetectLanguage(docs[i].Metadata)
		if _, seen := groups[lang]; !seen {
			order = append(order, lang)
		}
		groups[lang] = append(groups[lang], docs[i])
	}
	return groups, order
}

func (p *Processor) splitterFor(lang Language) textsplitter.RecursiveCharacter {
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(p.settings.Size),
		textsplitter.WithChunkOverlap(p.settings.Overlap),
		textsplitter.WithSeparators(separatorsFor(lang)),
	)
}

// ResplitOversize replaces every chunk longer than maxChars (counted in
// runes) with consecutive fixed-width slices of exactly maxChars runes, the
// last possibly shorter. Nothing is truncated: the only slices dropped are
// those that strip to the empty string. Compliant chunks pass through
// unchanged, so running the step twice is a no-op.
func ResplitOversize(chunks []Chunk, maxChars int) []Chunk {
	if maxChars <= 0 {
		return chunks
	}
	result := make([]Chunk, 0, len(chunks))
	for i := range chunks {
		c := chunks[i]
		if utf8.RuneCountInString(c.Text) <= maxChars {
			result = append(result, c)
			continue
		}
		runes := []rune(c.Text)
		for start := 0; start < len(runes); start += maxChars {
			end := start + maxChars
			if end > len(runes) {
				end = len(runes)
			}
			piece := string(runes[start:end])
			if strings.TrimSpace(piece) == "" {
				continue
			}
			result = append(result, Chunk{
				ID:       hashText(c.ID + "::" + fmt.Sprint(start)),
				Text:     piece,
				Hash:     hashText(piece),
				Metadata: c.Metadata.Clone(),
			})
		}
	}
	return result
}

// VerifyLimit confirms that every chunk respects the ceiling. A failure
// after ResplitOversize means the re-split step itself is broken and the
// run must abort rather than hand overlength input to the embedder.
func VerifyLimit(chunks []Chunk, maxChars int) error {
	var oversize []int
	for i := range chunks {
		if utf8.RuneCountInString(chunks[i].Text) > maxChars {
			oversize = append(oversize, i)
		}
	}
	if len(oversize) == 0 {
		return nil
	}
	sample := oversize
	if len(sample) > 5 {
		sample = sample[:5]
	}
	return fmt.Errorf(
		"chunk: %d chunk(s) exceed %d chars after re-split (indices %v); re-split must keep every chunk within the embedding input limit",
		len(oversize), maxChars, sample,
	)
}

func hashText(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:16])
}
