package ingest

import (
	"strings"
	"testing"

	ragserve "github.com/nholden/ragserve"
)

func TestSplitTextEmpty(t *testing.T) {
	s := NewSplitter()
	if chunks := s.SplitText(""); len(chunks) != 0 {
		t.Error("expected no chunks")
	}
}

func TestSplitTextShort(t *testing.T) {
	s := NewSplitter()
	chunks := s.SplitText("Hello, world!")
	if len(chunks) != 1 || chunks[0] != "Hello, world!" {
		t.Errorf("expected single chunk, got %v", chunks)
	}
}

func TestSplitTextBound(t *testing.T) {
	s := NewSplitter(WithChunkSize(100), WithOverlap(20))
	text := strings.Repeat("This is a sentence about nothing in particular. ", 40)
	chunks := s.SplitText(text)
	if len(chunks) <= 1 {
		t.Fatal("expected multiple chunks")
	}
	for i, c := range chunks {
		if len(c) > 100 {
			t.Errorf("chunk %d length %d exceeds bound 100", i, len(c))
		}
	}
}

func TestSplitTextOverlap(t *testing.T) {
	s := NewSplitter(WithChunkSize(100), WithOverlap(20))
	text := strings.Repeat("alpha beta gamma delta epsilon zeta eta theta. ", 30)
	chunks := s.SplitText(text)
	if len(chunks) < 2 {
		t.Fatal("expected multiple chunks")
	}
	for i := 1; i < len(chunks); i++ {
		// Adjacent chunks share text: some suffix of the previous chunk is a
		// prefix of the current one.
		if overlapLen(chunks[i-1], chunks[i]) == 0 {
			t.Errorf("chunks %d and %d share no overlap", i-1, i)
		}
	}
}

func TestSplitTextRoundTrip(t *testing.T) {
	s := NewSplitter(WithChunkSize(80), WithOverlap(16))
	text := "The quick brown fox jumps over the lazy dog. " +
		"Pack my box with five dozen liquor jugs. " +
		"Sphinx of black quartz, judge my vow. " +
		"How vexingly quick daft zebras jump. " +
		"Bright vixens jump; dozy fowl quack. " +
		"Jived fox nymph grabs quick waltz."
	chunks := s.SplitText(text)
	if len(chunks) < 2 {
		t.Fatal("expected multiple chunks")
	}

	// Concatenating chunks with overlaps removed reconstructs the original.
	rebuilt := chunks[0]
	for _, c := range chunks[1:] {
		rebuilt += c[overlapLen(rebuilt, c):]
	}
	if rebuilt != text {
		t.Errorf("round trip mismatch:\n got %q\nwant %q", rebuilt, text)
	}
}

func TestSplitTextAtomicTokenNoInfiniteLoop(t *testing.T) {
	s := NewSplitter(WithChunkSize(50), WithOverlap(10))
	text := strings.Repeat("x", 500) // one token, no whitespace at all
	chunks := s.SplitText(text)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for _, c := range chunks {
		if len(c) > 50 {
			t.Errorf("chunk length %d exceeds bound", len(c))
		}
	}
}

func TestSplitTextDeterministic(t *testing.T) {
	s := NewSplitter(WithChunkSize(120), WithOverlap(30))
	text := strings.Repeat("Determinism matters for dedup and for tests. ", 25)
	a := s.SplitText(text)
	b := s.SplitText(text)
	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestSplitTextUTF8Boundaries(t *testing.T) {
	s := NewSplitter(WithChunkSize(40), WithOverlap(8))
	text := strings.Repeat("héllø wörld ünïcode tèxt ", 20)
	for _, c := range s.SplitText(text) {
		if !strings.Contains(text, c) {
			t.Errorf("chunk %q is not a substring of the input (broken rune?)", c)
		}
	}
}

func TestSplitPreservesOrderAndMetadata(t *testing.T) {
	s := NewSplitter(WithChunkSize(60), WithOverlap(10))
	page2 := 2
	docs := []ragserve.Document{
		{
			Text:     strings.Repeat("first document sentence here. ", 10),
			Metadata: ragserve.Metadata{Identifier: "doc-a", SourceType: ragserve.SourceContent, DocumentType: ragserve.TypeText},
		},
		{
			Text:     strings.Repeat("second document sentence here. ", 10),
			Metadata: ragserve.Metadata{Identifier: "doc-b", SourceType: ragserve.SourceURL, DocumentType: ragserve.TypePDF, Page: &page2},
		},
	}
	chunks := s.Split(docs)
	if len(chunks) < 4 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}

	sawB := false
	for _, c := range chunks {
		switch c.Metadata.Identifier {
		case "doc-a":
			if sawB {
				t.Fatal("chunks interleaved: doc-a after doc-b")
			}
		case "doc-b":
			sawB = true
			if c.Metadata.Page == nil || *c.Metadata.Page != 2 {
				t.Error("page metadata not inherited")
			}
		default:
			t.Fatalf("unexpected identifier %q", c.Metadata.Identifier)
		}
		if c.ID == "" {
			t.Error("chunk missing ID")
		}
	}
	if !sawB {
		t.Fatal("doc-b produced no chunks")
	}
}

func TestSplitEmptyInput(t *testing.T) {
	s := NewSplitter()
	if chunks := s.Split(nil); len(chunks) != 0 {
		t.Error("zero documents must yield zero chunks")
	}
}

// overlapLen returns the length of the longest suffix of a that is a
// prefix of b.
func overlapLen(a, b string) int {
	max := len(a)
	if len(b) < max {
		max = len(b)
	}
	for k := max; k > 0; k-- {
		if strings.HasSuffix(a, b[:k]) {
			return k
		}
	}
	return 0
}
