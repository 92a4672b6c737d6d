package ingest

import (
	"unicode"
	"unicode/utf8"

	ragserve "github.com/nholden/ragserve"
)

const (
	// DefaultChunkSize bounds chunk length in characters.
	DefaultChunkSize = 1000
	// DefaultOverlap is the character overlap between adjacent chunks.
	DefaultOverlap = 200
)

// SplitterOption configures a Splitter.
type SplitterOption func(*Splitter)

// WithChunkSize sets the maximum chunk length in characters.
func WithChunkSize(n int) SplitterOption {
	return func(s *Splitter) { s.chunkSize = n }
}

// WithOverlap sets the character overlap between adjacent chunks.
func WithOverlap(n int) SplitterOption {
	return func(s *Splitter) { s.overlap = n }
}

// Splitter cuts documents into bounded, overlapping windows of the original
// text. Every chunk is a contiguous substring of its source document; the
// overlap region appears verbatim at the end of one chunk and the start of
// the next so that a fact spanning a boundary keeps its prior context.
// Splitting is deterministic for a fixed (chunkSize, overlap) configuration.
type Splitter struct {
	chunkSize int
	overlap   int
}

// NewSplitter creates a Splitter with the given options.
// Defaults: 1000-character chunks with 200-character overlap.
func NewSplitter(opts ...SplitterOption) *Splitter {
	s := &Splitter{chunkSize: DefaultChunkSize, overlap: DefaultOverlap}
	for _, o := range opts {
		o(s)
	}
	if s.chunkSize < 1 {
		s.chunkSize = DefaultChunkSize
	}
	if s.overlap < 0 || s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 5
	}
	return s
}

// Split chunks each document in order. Each document's chunks are contiguous
// and rank-ordered left to right, and inherit the document's metadata
// unchanged. Zero input documents yields zero chunks.
func (s *Splitter) Split(docs []ragserve.Document) []ragserve.Chunk {
	var chunks []ragserve.Chunk
	for _, doc := range docs {
		for _, text := range s.SplitText(doc.Text) {
			chunks = append(chunks, ragserve.Chunk{
				ID:       ragserve.NewID(),
				Text:     text,
				Metadata: doc.Metadata,
			})
		}
	}
	return chunks
}

// SplitText cuts text into overlapping windows of at most chunkSize bytes.
// Window boundaries prefer whitespace so words are not cut mid-token; when a
// window contains no whitespace in its back half (a single atomic token
// longer than the bound), the cut falls on the nearest rune boundary instead,
// which guarantees forward progress.
func (s *Splitter) SplitText(text string) []string {
	if text == "" {
		return nil
	}
	if len(text) <= s.chunkSize {
		return []string{text}
	}

	var out []string
	pos := 0
	for pos < len(text) {
		if len(text)-pos <= s.chunkSize {
			out = append(out, text[pos:])
			break
		}

		cut := cutPoint(text, pos, pos+s.chunkSize)
		out = append(out, text[pos:cut])

		next := cut - s.overlap
		if next <= pos {
			next = pos + 1
		}
		// Never start a chunk mid-rune.
		for next < len(text) && !utf8.RuneStart(text[next]) {
			next++
		}
		pos = next
	}
	return out
}

// cutPoint picks the end of the window starting at start with hard limit
// limit. It scans backward for whitespace, but no further than halfway into
// the window, so pathological inputs cannot shrink chunks to nothing.
func cutPoint(text string, start, limit int) int {
	floor := start + (limit-start)/2
	for i := limit; i > floor; i-- {
		r, _ := utf8.DecodeLastRuneInString(text[:i])
		if unicode.IsSpace(r) {
			return i
		}
	}
	// No usable whitespace: hard cut on a rune boundary.
	cut := limit
	for cut > floor && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return cut
}
