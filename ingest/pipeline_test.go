package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	ragserve "github.com/nholden/ragserve"
)

// fakeEmbedder returns fixed-size vectors and records calls.
type fakeEmbedder struct {
	calls int
	fail  bool
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("embedding backend down")
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{float32(len(texts[i])), 1, 0}
	}
	return vecs, nil
}

func (f *fakeEmbedder) Dimensions() int { return 3 }
func (f *fakeEmbedder) Name() string    { return "fake" }

// fakeStore keeps chunks in memory, keyed by nothing; lookup scans metadata.
type fakeStore struct {
	chunks     []ragserve.Chunk
	addCalls   int
	getFail    bool
	addFail    bool
	searchHits []ragserve.ScoredChunk
}

func (f *fakeStore) AddChunks(_ context.Context, chunks []ragserve.Chunk) error {
	f.addCalls++
	if f.addFail {
		return errors.New("write failed")
	}
	f.chunks = append(f.chunks, chunks...)
	return nil
}

func (f *fakeStore) SearchChunks(_ context.Context, _ []float32, topK int) ([]ragserve.ScoredChunk, error) {
	if topK < len(f.searchHits) {
		return f.searchHits[:topK], nil
	}
	return f.searchHits, nil
}

func (f *fakeStore) GetByIdentifier(_ context.Context, identifier string, limit int) ([]ragserve.Chunk, error) {
	if f.getFail {
		return nil, errors.New("store unreachable")
	}
	var out []ragserve.Chunk
	for _, c := range f.chunks {
		if c.Metadata.Identifier == identifier {
			out = append(out, c)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) Init(context.Context) error { return nil }
func (f *fakeStore) Close() error               { return nil }

func newTestPipeline(store *fakeStore, emb *fakeEmbedder) *Pipeline {
	return NewPipeline(NewLoader(), NewSplitter(), emb, store)
}

func TestIngestContentSuccess(t *testing.T) {
	store := &fakeStore{}
	emb := &fakeEmbedder{}
	p := newTestPipeline(store, emb)

	created, err := p.Ingest(context.Background(), ragserve.IngestRequest{
		Content:      "Python is dynamically typed.",
		DocumentType: ragserve.TypeText,
	})
	if err != nil {
		t.Fatal(err)
	}
	if created != 1 {
		t.Errorf("chunks created = %d, want 1", created)
	}
	if len(store.chunks) != 1 {
		t.Fatalf("stored chunks = %d", len(store.chunks))
	}
	c := store.chunks[0]
	if len(c.Embedding) != 3 {
		t.Error("chunk stored without embedding")
	}
	if c.Metadata.Identifier != ragserve.HashContent("Python is dynamically typed.") {
		t.Error("identifier mismatch")
	}
}

func TestIngestDuplicateShortCircuits(t *testing.T) {
	store := &fakeStore{}
	emb := &fakeEmbedder{}
	p := newTestPipeline(store, emb)

	req := ragserve.IngestRequest{Content: "Python is dynamically typed.", DocumentType: ragserve.TypeText}
	if _, err := p.Ingest(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	embedCallsAfterFirst := emb.calls
	addCallsAfterFirst := store.addCalls

	created, err := p.Ingest(context.Background(), req)
	var dup *ragserve.DuplicateDocumentError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateDocumentError, got %v", err)
	}
	if dup.Key != ragserve.HashContent(req.Content) {
		t.Errorf("dup key = %q", dup.Key)
	}
	if created != 0 {
		t.Errorf("created = %d on duplicate", created)
	}
	// Loader/Chunker/Writer must not run the second time.
	if emb.calls != embedCallsAfterFirst || store.addCalls != addCallsAfterFirst {
		t.Error("duplicate ingest still invoked embedding or store write")
	}
}

func TestIngestDedupCheckFailureIsDistinct(t *testing.T) {
	store := &fakeStore{getFail: true}
	p := newTestPipeline(store, &fakeEmbedder{})

	_, err := p.Ingest(context.Background(), ragserve.IngestRequest{
		Content:      "anything",
		DocumentType: ragserve.TypeText,
	})
	var checkErr *ragserve.DedupCheckError
	if !errors.As(err, &checkErr) {
		t.Fatalf("expected DedupCheckError, got %v", err)
	}
	var dup *ragserve.DuplicateDocumentError
	if errors.As(err, &dup) {
		t.Error("store failure must not look like a duplicate")
	}
}

func TestIngestEmbeddingFailure(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(store, &fakeEmbedder{fail: true})

	created, err := p.Ingest(context.Background(), ragserve.IngestRequest{
		Content:      "some content",
		DocumentType: ragserve.TypeText,
	})
	var embErr *ragserve.EmbeddingError
	if !errors.As(err, &embErr) {
		t.Fatalf("expected EmbeddingError, got %v", err)
	}
	if created != 0 || len(store.chunks) != 0 {
		t.Error("failed embed must not report or persist chunks")
	}
}

func TestIngestStoreWriteFailure(t *testing.T) {
	store := &fakeStore{addFail: true}
	p := newTestPipeline(store, &fakeEmbedder{})

	created, err := p.Ingest(context.Background(), ragserve.IngestRequest{
		Content:      "some content",
		DocumentType: ragserve.TypeText,
	})
	var embErr *ragserve.EmbeddingError
	if !errors.As(err, &embErr) {
		t.Fatalf("expected EmbeddingError, got %v", err)
	}
	if created != 0 {
		t.Errorf("created = %d after failed write", created)
	}
}

func TestIngestInvalidRequest(t *testing.T) {
	p := newTestPipeline(&fakeStore{}, &fakeEmbedder{})
	if _, err := p.Ingest(context.Background(), ragserve.IngestRequest{DocumentType: ragserve.TypeText}); err == nil {
		t.Error("expected validation error")
	}
}

func TestIngestLongContentCreatesMultipleChunks(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(store, &fakeEmbedder{})

	long := ""
	for i := 0; i < 100; i++ {
		long += fmt.Sprintf("Sentence number %d about typed languages and their tradeoffs. ", i)
	}
	created, err := p.Ingest(context.Background(), ragserve.IngestRequest{
		Content:      long,
		DocumentType: ragserve.TypeText,
	})
	if err != nil {
		t.Fatal(err)
	}
	if created < 2 {
		t.Errorf("created = %d, want several chunks", created)
	}
	if created != len(store.chunks) {
		t.Errorf("reported %d but stored %d", created, len(store.chunks))
	}
}
