// Package ragserve implements a retrieval-augmented generation service:
// documents are ingested from inline content or URLs, deduplicated by a
// stable fingerprint, split into overlapping chunks, embedded, and stored
// in a vector store; questions are answered by retrieving the most similar
// chunks and asking a chat model to compose a grounded answer.
//
// The root package holds the domain types and the capability interfaces
// (ChatProvider, EmbeddingProvider, VectorStore). Concrete implementations
// live in subpackages: ingest for the loading/chunking pipeline, rag for
// the retrieve→generate graph, provider/* for LLM backends, store/* for
// vector store backends, and observer for OpenTelemetry instrumentation.
package ragserve
