package rag

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

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 4

// State is the transient execution record of one query. It exists only for
// the lifetime of one graph run and is never persisted.
type State struct {
	Question string
	Context  []ragserve.ScoredChunk
	Answer   string
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithTopK sets how many chunks the retrieve stage requests.
func WithTopK(k int) GraphOption {
	return func(g *Graph) { g.topK = k }
}

// WithGraphLogger sets a structured logger.
func WithGraphLogger(logger *slog.Logger) GraphOption {
	return func(g *Graph) { g.logger = logger }
}

// WithGraphTracer sets the tracer used for stage spans.
func WithGraphTracer(t trace.Tracer) GraphOption {
	return func(g *Graph) { g.tracer = t }
}

// Graph is the fixed two-node query pipeline: retrieve similar chunks, then
// generate an answer grounded in them. The two stages always execute in
// order; there is no early exit on empty context, no branching, no cycles.
// Any stage failure fails the whole query; there is no partial fallback.
type Graph struct {
	embedder ragserve.EmbeddingProvider
	store    ragserve.VectorStore
	chat     ragserve.ChatProvider
	topK     int
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewGraph wires the retrieval and generation dependencies.
func NewGraph(embedder ragserve.EmbeddingProvider, store ragserve.VectorStore, chat ragserve.ChatProvider, opts ...GraphOption) *Graph {
	g := &Graph{
		embedder: embedder,
		store:    store,
		chat:     chat,
		topK:     DefaultTopK,
		logger:   slog.New(discardHandler{}),
		tracer:   otel.Tracer("github.com/nholden/ragserve/rag"),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Run executes the graph for one question and returns the terminal state.
// Execution is strictly linear: retrieve must complete before generate
// starts, because generation consumes the retrieved context.
func (g *Graph) Run(ctx context.Context, question string) (State, error) {
	state := State{Question: question}

	if err := g.retrieve(ctx, &state); err != nil {
		return state, &ragserve.GenerationError{Stage: "retrieve", Err: err}
	}

	if err := g.generate(ctx, &state); err != nil {
		return state, &ragserve.GenerationError{Stage: "generate", Err: err}
	}

	return state, nil
}

// retrieve embeds the question and fills state.Context with the most similar
// stored chunks, in decreasing similarity order. An empty result is not an
// error; generation handles "no context" on its own.
func (g *Graph) retrieve(ctx context.Context, state *State) (err error) {
	ctx, span := g.tracer.Start(ctx, "rag.retrieve", trace.WithAttributes(
		attribute.Int("rag.top_k", g.topK),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("rag.context_chunks", len(state.Context)))
		}
		span.End()
	}()

	g.logger.Debug("retrieving_relevant_documents")

	vectors, err := g.embedder.Embed(ctx, []string{state.Question})
	if err != nil {
		return err
	}
	if len(vectors) == 0 {
		return fmt.Errorf("embedder returned no vector for question")
	}

	hits, err := g.store.SearchChunks(ctx, vectors[0], g.topK)
	if err != nil {
		return err
	}
	state.Context = hits

	g.logger.Debug("documents_retrieved", "count", len(hits))
	return nil
}

// generate invokes the chat model once with the fixed prompt and stores the
// verbatim completion as the answer. No post-processing, truncation, or
// citation insertion happens here; sources are surfaced from state.Context
// by the caller, not derived from the model's text.
func (g *Graph) generate(ctx context.Context, state *State) (err error) {
	ctx, span := g.tracer.Start(ctx, "rag.generate", trace.WithAttributes(
		attribute.Int("rag.context_chunks", len(state.Context)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	resp, err := g.chat.Chat(ctx, ragserve.ChatRequest{
		Messages: BuildPrompt(state.Question, state.Context),
	})
	if err != nil {
		return err
	}
	state.Answer = resp.Content
	return nil
}

// Sources converts the terminal state's context into response sources,
// preserving retrieval rank order.
func (s State) Sources() []ragserve.Source {
	sources := make([]ragserve.Source, len(s.Context))
	for i, c := range s.Context {
		sources[i] = ragserve.SourceFromChunk(c.Chunk)
	}
	return sources
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
