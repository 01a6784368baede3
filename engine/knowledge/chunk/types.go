package chunk

// Metadata carries provenance for a document and every chunk derived from
// it. The named fields are the ones the pipeline itself depends on; Extra
// passes arbitrary loader-specific fields through untouched.
type Metadata struct {
	SourceID      string
	DocumentID    string
	Source        string
	SourceURL     string
	FileExtension string
	ContentType   string
	ChunkIndex    int
	Extra         map[string]any
}

// Clone returns a value copy with its own Extra map, so mutating one
// chunk's metadata never affects a sibling or the parent document.
func (m Metadata) Clone() Metadata {
	out := m
	if m.Extra != nil {
		out.Extra = make(map[string]any, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// ToMap flattens the metadata for storage alongside a vector record.
func (m Metadata) ToMap() map[string]any {
	out := make(map[string]any, len(m.Extra)+8)
	for k, v := range m.Extra {
		out[k] = v
	}
	out["source_id"] = m.SourceID
	out["document_id"] = m.DocumentID
	out["chunk_index"] = m.ChunkIndex
	if m.Source != "" {
		out["source"] = m.Source
	}
	if m.SourceURL != "" {
		out["source_url"] = m.SourceURL
	}
	if m.FileExtension != "" {
		out["file_extension"] = m.FileExtension
	}
	if m.ContentType != "" {
		out["content_type"] = m.ContentType
	}
	return out
}

// Document represents raw content prior to chunking.
type Document struct {
	ID       string
	Text     string
	Metadata Metadata
}

// Chunk represents a processed slice ready for embedding.
type Chunk struct {
	ID       string
	Text     string
	Hash     string
	Metadata Metadata
}

// Settings configures splitting behavior. Size and Overlap are derived
// from MaxChars when left at zero: Size defaults to MaxChars, Overlap to
// max(50, Size/10) clamped below Size.
type Settings struct {
	Size     int
	Overlap  int
	MaxChars int
}
