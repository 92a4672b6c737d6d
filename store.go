package ragserve

import "context"

// VectorStore abstracts chunk persistence with vector similarity search.
//
// Implementations are shared across concurrent requests and must be safe for
// concurrent use. No uniqueness constraint on Metadata.Identifier is assumed:
// two concurrent ingests of the same identifier can both pass the existence
// check before either write lands. The pipeline does not resolve that race.
type VectorStore interface {
	// AddChunks persists chunks (text, embedding, metadata) as one logical
	// batch. Partial writes must not be reported as success.
	AddChunks(ctx context.Context, chunks []Chunk) error

	// SearchChunks returns the topK stored chunks most similar to the given
	// embedding, ordered by decreasing similarity. An empty store yields an
	// empty result, not an error.
	SearchChunks(ctx context.Context, embedding []float32, topK int) ([]ScoredChunk, error)

	// GetByIdentifier returns up to limit chunks whose metadata identifier
	// equals the given key. Used as an existence check during dedup.
	GetByIdentifier(ctx context.Context, identifier string, limit int) ([]Chunk, error)

	// Init creates any required schema. Safe to call multiple times.
	Init(ctx context.Context) error

	// Close releases the underlying connection(s).
	Close() error
}
