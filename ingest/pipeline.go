package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	ragserve "github.com/nholden/ragserve"
)

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineLogger sets a structured logger.
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logger }
}

// WithPipelineTracer sets the tracer used for ingestion spans.
func WithPipelineTracer(t trace.Tracer) PipelineOption {
	return func(p *Pipeline) { p.tracer = t }
}

// Pipeline orchestrates one ingest request: dedup check, load, split,
// embed + store. Each step's failure short-circuits the rest; the pipeline
// carries no state of its own beyond sequencing.
type Pipeline struct {
	loader   *Loader
	splitter *Splitter
	dedup    *DedupGuard
	embedder ragserve.EmbeddingProvider
	store    ragserve.VectorStore
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewPipeline wires the four ingestion components together. The embedding
// provider and store are injected so tests can substitute fakes.
func NewPipeline(loader *Loader, splitter *Splitter, embedder ragserve.EmbeddingProvider, store ragserve.VectorStore, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		loader:   loader,
		splitter: splitter,
		embedder: embedder,
		store:    store,
		logger:   slog.New(discardHandler{}),
		tracer:   otel.Tracer("github.com/nholden/ragserve/ingest"),
	}
	for _, o := range opts {
		o(p)
	}
	p.dedup = NewDedupGuard(store, p.logger)
	return p
}

// Ingest runs the full pipeline for one request and returns the number of
// chunks created. Duplicates are rejected with *ragserve.DuplicateDocumentError
// before any loading or embedding work happens.
func (p *Pipeline) Ingest(ctx context.Context, req ragserve.IngestRequest) (created int, err error) {
	ctx, span := p.tracer.Start(ctx, "document_ingestion", trace.WithAttributes(
		attribute.String("document.type", string(req.DocumentType)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("document.chunks_created", created))
		}
		span.End()
	}()

	if err := req.Validate(); err != nil {
		return 0, err
	}

	isDup, key, err := p.dedup.Check(ctx, req)
	if err != nil {
		return 0, err
	}
	if isDup {
		p.logger.Warn("duplicate_document_rejected", "identifier", key)
		return 0, &ragserve.DuplicateDocumentError{Key: key}
	}

	docs, err := p.loader.Load(ctx, req)
	if err != nil {
		return 0, err
	}

	chunks := p.split(ctx, docs)

	if err := p.embedAndStore(ctx, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// split chunks the loaded documents under its own span. Splitting is pure
// computation; the span exists so ingestion traces show where the request's
// time went.
func (p *Pipeline) split(ctx context.Context, docs []ragserve.Document) []ragserve.Chunk {
	_, span := p.tracer.Start(ctx, "document_splitting", trace.WithAttributes(
		attribute.Int("document.count", len(docs)),
	))
	defer span.End()

	p.logger.Debug("splitting_documents", "document_count", len(docs))
	chunks := p.splitter.Split(docs)
	p.logger.Info("documents_split", "chunks_created", len(chunks))

	span.SetAttributes(attribute.Int("document.chunks", len(chunks)))
	return chunks
}

// embedAndStore computes one embedding per chunk and writes all chunks to
// the store as one logical batch. Embedding and the store write are one
// traced unit of work: some backends compute embeddings inside the write
// path, so the two must not be assumed separable.
func (p *Pipeline) embedAndStore(ctx context.Context, chunks []ragserve.Chunk) (err error) {
	ctx, span := p.tracer.Start(ctx, "embedding_computation", trace.WithAttributes(
		attribute.Int("document.chunks", len(chunks)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if len(chunks) == 0 {
		return nil
	}

	p.logger.Debug("computing_embeddings", "chunks_count", len(chunks))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return &ragserve.EmbeddingError{Err: err}
	}
	if len(vectors) != len(chunks) {
		return &ragserve.EmbeddingError{Err: fmt.Errorf("embedding count mismatch: got %d vectors for %d chunks", len(vectors), len(chunks))}
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	if err := p.store.AddChunks(ctx, chunks); err != nil {
		return &ragserve.EmbeddingError{Err: err}
	}

	p.logger.Info("embeddings_computed_and_stored", "chunks_processed", len(chunks))
	return nil
}
