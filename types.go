package ragserve

import "fmt"

// DocumentType identifies the format of a document being ingested.
type DocumentType string

const (
	TypePDF      DocumentType = "pdf"
	TypeText     DocumentType = "text"
	TypeHTML     DocumentType = "html"
	TypeMarkdown DocumentType = "markdown"
)

// Valid reports whether t is one of the supported document types.
func (t DocumentType) Valid() bool {
	switch t {
	case TypePDF, TypeText, TypeHTML, TypeMarkdown:
		return true
	}
	return false
}

// Source type values carried in Metadata.SourceType.
const (
	SourceURL     = "url"
	SourceContent = "content"
)

// Metadata describes where a document (or a chunk derived from it) came from.
// Identifier is the dedup key: the normalized URL for URL-sourced documents,
// the hex SHA-256 of the content for inline submissions.
type Metadata struct {
	Identifier   string       `json:"identifier"`
	SourceType   string       `json:"source_type"` // "url" or "content"
	DocumentType DocumentType `json:"document_type"`
	SourceURL    string       `json:"source_url,omitempty"`
	Page         *int         `json:"page,omitempty"` // 1-based, PDF pages only
}

// Document is one normalized text unit produced by the loader: a web page,
// a PDF page, or an entire text/markdown body. Documents are transient;
// only their chunks are persisted.
type Document struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// Chunk is a bounded slice of a Document, the unit stored in and retrieved
// from the vector store. It inherits its parent document's metadata.
type Chunk struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
	Metadata  Metadata  `json:"metadata"`
}

// ScoredChunk is a chunk with its similarity score from a vector search.
// Score is in [0, 1]; higher means more similar.
type ScoredChunk struct {
	Chunk
	Score float32 `json:"score"`
}

// IngestRequest asks the service to ingest one document, from either inline
// content or a URL. Exactly one of Content/URL must be set.
type IngestRequest struct {
	Content      string       `json:"content,omitempty"`
	URL          string       `json:"url,omitempty"`
	DocumentType DocumentType `json:"document_type"`
}

// Validate enforces the exactly-one-of-content/url invariant and checks the
// document type. Called eagerly at the request boundary.
func (r IngestRequest) Validate() error {
	if r.Content == "" && r.URL == "" {
		return fmt.Errorf("either url or content must be provided")
	}
	if r.Content != "" && r.URL != "" {
		return fmt.Errorf("provide either url or content, not both")
	}
	if !r.DocumentType.Valid() {
		return fmt.Errorf("unsupported document type %q", r.DocumentType)
	}
	return nil
}

// IngestResponse is the terminal result of one ingest request. Errors are
// reported in the body with Status "error"; the HTTP status stays 200.
type IngestResponse struct {
	Status        string `json:"status"` // "success" or "error"
	Message       string `json:"message"`
	ChunksCreated int    `json:"chunks_created"`
}

// QueryRequest asks a natural-language question against the store.
type QueryRequest struct {
	Question string `json:"question"`
}

// Source is one retrieved chunk surfaced alongside an answer,
// in retrieval rank order.
type Source struct {
	Page   *int   `json:"page,omitempty"`
	Source string `json:"source,omitempty"`
	Text   string `json:"text"`
}

// QueryResponse carries the generated answer and the chunks it was
// grounded in.
type QueryResponse struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// SourceFromChunk converts a stored chunk into a response Source.
func SourceFromChunk(c Chunk) Source {
	src := c.Metadata.SourceURL
	if src == "" {
		src = c.Metadata.SourceType
	}
	return Source{
		Page:   c.Metadata.Page,
		Source: src,
		Text:   c.Text,
	}
}
