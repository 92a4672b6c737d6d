package ragserve

import "fmt"

// LoadError reports a failure fetching or parsing a document, wrapping the
// underlying transport or parse error.
type LoadError struct {
	Source string // URL or "content"
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// DuplicateDocumentError reports that a document with the same identifier
// was already ingested. Callers branch on this to distinguish "already
// ingested" from "broken".
type DuplicateDocumentError struct {
	Key string
}

func (e *DuplicateDocumentError) Error() string {
	return fmt.Sprintf("document already exists in vector store: %s", e.Key)
}

// DedupCheckError reports that the store could not be reached during the
// duplicate existence check. Deliberately distinct from "not a duplicate".
type DedupCheckError struct {
	Key string
	Err error
}

func (e *DedupCheckError) Error() string {
	return fmt.Sprintf("duplicate check for %s: %v", e.Key, e.Err)
}

func (e *DedupCheckError) Unwrap() error { return e.Err }

// EmbeddingError reports a failure computing embeddings or writing chunks
// to the store.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embed and store chunks: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// GenerationError reports a failure during the retrieve or generate stage
// of a query.
type GenerationError struct {
	Stage string // "retrieve" or "generate"
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ErrHTTP reports a non-2xx response from an upstream HTTP API.
type ErrHTTP struct {
	Status int
	Body   string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// ErrLLM reports a provider-level LLM failure.
type ErrLLM struct {
	Provider string
	Message  string
}

func (e *ErrLLM) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}
