package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	ragserve "github.com/nholden/ragserve"
)

type fakeEmbedder struct {
	fail  bool
	empty bool
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.fail {
		return nil, errors.New("embed failed")
	}
	if f.empty {
		return nil, nil
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{1, 0, 0}
	}
	return vecs, nil
}

func (f *fakeEmbedder) Dimensions() int { return 3 }
func (f *fakeEmbedder) Name() string    { return "fake" }

type fakeStore struct {
	hits []ragserve.ScoredChunk
	fail bool
	topK int
}

func (f *fakeStore) AddChunks(context.Context, []ragserve.Chunk) error { return nil }

func (f *fakeStore) SearchChunks(_ context.Context, _ []float32, topK int) ([]ragserve.ScoredChunk, error) {
	f.topK = topK
	if f.fail {
		return nil, errors.New("search failed")
	}
	return f.hits, nil
}

func (f *fakeStore) GetByIdentifier(context.Context, string, int) ([]ragserve.Chunk, error) {
	return nil, nil
}

func (f *fakeStore) Init(context.Context) error { return nil }
func (f *fakeStore) Close() error               { return nil }

type fakeChat struct {
	lastReq ragserve.ChatRequest
	answer  string
	fail    bool
	calls   int
}

func (f *fakeChat) Chat(_ context.Context, req ragserve.ChatRequest) (ragserve.ChatResponse, error) {
	f.calls++
	f.lastReq = req
	if f.fail {
		return ragserve.ChatResponse{}, errors.New("model unavailable")
	}
	return ragserve.ChatResponse{Content: f.answer}, nil
}

func (f *fakeChat) Name() string { return "fake" }

func scored(text, source string) ragserve.ScoredChunk {
	return ragserve.ScoredChunk{
		Chunk: ragserve.Chunk{
			Text:     text,
			Metadata: ragserve.Metadata{Identifier: source, SourceType: ragserve.SourceURL, SourceURL: source},
		},
		Score: 0.9,
	}
}

func TestGraphRunHappyPath(t *testing.T) {
	store := &fakeStore{hits: []ragserve.ScoredChunk{
		scored("Python is dynamically typed.", "https://example.com/a"),
		scored("Go is statically typed.", "https://example.com/b"),
	}}
	chat := &fakeChat{answer: "Python is dynamically typed."}
	g := NewGraph(&fakeEmbedder{}, store, chat)

	state, err := g.Run(context.Background(), "Is Python statically typed?")
	if err != nil {
		t.Fatal(err)
	}
	if state.Answer != "Python is dynamically typed." {
		t.Errorf("answer = %q", state.Answer)
	}
	if len(state.Context) != 2 {
		t.Fatalf("context size = %d", len(state.Context))
	}
	if store.topK != DefaultTopK {
		t.Errorf("topK = %d", store.topK)
	}

	sources := state.Sources()
	if len(sources) != 2 {
		t.Fatalf("sources = %d", len(sources))
	}
	// Retrieval rank order preserved.
	if sources[0].Text != "Python is dynamically typed." || sources[1].Text != "Go is statically typed." {
		t.Errorf("sources out of order: %+v", sources)
	}
}

func TestGraphPromptCarriesContextInOrder(t *testing.T) {
	store := &fakeStore{hits: []ragserve.ScoredChunk{
		scored("first chunk", "a"),
		scored("second chunk", "b"),
	}}
	chat := &fakeChat{answer: "ok"}
	g := NewGraph(&fakeEmbedder{}, store, chat)

	if _, err := g.Run(context.Background(), "anything?"); err != nil {
		t.Fatal(err)
	}
	msgs := chat.lastReq.Messages
	if len(msgs) != 2 || msgs[0].Role != "system" || msgs[1].Role != "user" {
		t.Fatalf("messages = %+v", msgs)
	}
	system := msgs[0].Content
	i := strings.Index(system, "first chunk")
	j := strings.Index(system, "second chunk")
	if i < 0 || j < 0 || i > j {
		t.Errorf("context missing or out of order in system turn: %q", system)
	}
	if !strings.Contains(system, "first chunk\n\nsecond chunk") {
		t.Errorf("chunks not separated by a blank line: %q", system)
	}
	if !strings.Contains(msgs[1].Content, "anything?") {
		t.Errorf("question missing from user turn: %q", msgs[1].Content)
	}
}

func TestGraphEmptyContextStillGenerates(t *testing.T) {
	store := &fakeStore{} // empty store, no hits
	chat := &fakeChat{answer: "I don't have enough information to answer the question."}
	g := NewGraph(&fakeEmbedder{}, store, chat)

	state, err := g.Run(context.Background(), "Who wrote this?")
	if err != nil {
		t.Fatal(err)
	}
	if chat.calls != 1 {
		t.Error("model must be invoked even with empty context")
	}
	if state.Answer == "" {
		t.Error("expected an answer")
	}
	if sources := state.Sources(); len(sources) != 0 {
		t.Errorf("sources = %v, want empty", sources)
	}
}

func TestGraphRetrieveFailureFailsQuery(t *testing.T) {
	chat := &fakeChat{answer: "never"}
	g := NewGraph(&fakeEmbedder{}, &fakeStore{fail: true}, chat)

	_, err := g.Run(context.Background(), "q")
	var genErr *ragserve.GenerationError
	if !errors.As(err, &genErr) || genErr.Stage != "retrieve" {
		t.Fatalf("expected retrieve-stage GenerationError, got %v", err)
	}
	if chat.calls != 0 {
		t.Error("generate must not run after retrieve failure")
	}
}

func TestGraphEmbedFailureFailsQuery(t *testing.T) {
	g := NewGraph(&fakeEmbedder{fail: true}, &fakeStore{}, &fakeChat{})
	_, err := g.Run(context.Background(), "q")
	var genErr *ragserve.GenerationError
	if !errors.As(err, &genErr) || genErr.Stage != "retrieve" {
		t.Fatalf("expected retrieve-stage GenerationError, got %v", err)
	}
}

func TestGraphEmptyEmbeddingFailsQuery(t *testing.T) {
	// A provider returning no vector with a nil error must surface as a
	// retrieve failure, not a panic.
	store := &fakeStore{}
	chat := &fakeChat{answer: "never"}
	g := NewGraph(&fakeEmbedder{empty: true}, store, chat)

	_, err := g.Run(context.Background(), "q")
	var genErr *ragserve.GenerationError
	if !errors.As(err, &genErr) || genErr.Stage != "retrieve" {
		t.Fatalf("expected retrieve-stage GenerationError, got %v", err)
	}
	if chat.calls != 0 {
		t.Error("generate must not run after retrieve failure")
	}
}

func TestGraphGenerateFailureFailsQuery(t *testing.T) {
	g := NewGraph(&fakeEmbedder{}, &fakeStore{}, &fakeChat{fail: true})
	_, err := g.Run(context.Background(), "q")
	var genErr *ragserve.GenerationError
	if !errors.As(err, &genErr) || genErr.Stage != "generate" {
		t.Fatalf("expected generate-stage GenerationError, got %v", err)
	}
}

func TestGraphTopKOption(t *testing.T) {
	store := &fakeStore{}
	g := NewGraph(&fakeEmbedder{}, store, &fakeChat{answer: "ok"}, WithTopK(7))
	if _, err := g.Run(context.Background(), "q"); err != nil {
		t.Fatal(err)
	}
	if store.topK != 7 {
		t.Errorf("topK = %d, want 7", store.topK)
	}
}
