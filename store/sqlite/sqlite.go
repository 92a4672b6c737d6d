// Package sqlite implements ragserve.VectorStore using pure-Go SQLite with
// in-process brute-force cosine similarity search. Zero CGO required.
// Suitable for dev deployments and tests; prod uses store/postgres.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	ragserve "github.com/nholden/ragserve"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// StoreOption configures a SQLite Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger. When set, the store emits debug logs
// for every operation including timing and row counts.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store implements ragserve.VectorStore backed by a local SQLite file.
// Embeddings are stored as JSON text and similarity search runs in-process.
//
// The chunk identifier column is indexed but not unique: concurrent ingests
// of the same identifier can both pass the dedup existence check and both
// land. Resolving that race would take a uniqueness constraint here plus
// upsert semantics in AddChunks; deliberately left open.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ ragserve.VectorStore = (*Store)(nil)

// nopLogger discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New creates a Store using a local SQLite file at dbPath.
// A single shared connection serializes all access, eliminating SQLITE_BUSY
// errors from concurrent writers.
func New(dbPath string, opts ...StoreOption) *Store {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: store opened", "path", dbPath)
	return s
}

// Init creates the chunks table and identifier index. Safe to call multiple
// times.
func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			identifier TEXT NOT NULL,
			source_type TEXT NOT NULL,
			document_type TEXT NOT NULL,
			source_url TEXT,
			page INTEGER,
			content TEXT NOT NULL,
			embedding TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS chunks_identifier_idx ON chunks(identifier)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	s.logger.Debug("sqlite: init ok")
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddChunks inserts all chunks in a single transaction, so a failed write
// never surfaces a partial batch as success.
func (s *Store) AddChunks(ctx context.Context, chunks []ragserve.Chunk) error {
	start := time.Now()
	s.logger.Debug("sqlite: add chunks", "count", len(chunks))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := ragserve.NowUnix()
	for _, c := range chunks {
		var embJSON *string
		if len(c.Embedding) > 0 {
			v := serializeEmbedding(c.Embedding)
			embJSON = &v
		}
		var sourceURL *string
		if c.Metadata.SourceURL != "" {
			sourceURL = &c.Metadata.SourceURL
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (id, identifier, source_type, document_type, source_url, page, content, embedding, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Metadata.Identifier, c.Metadata.SourceType, string(c.Metadata.DocumentType),
			sourceURL, c.Metadata.Page, c.Text, embJSON, now,
		)
		if err != nil {
			s.logger.Error("sqlite: insert chunk failed", "chunk_id", c.ID, "error", err)
			return fmt.Errorf("insert chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("sqlite: add chunks commit failed", "error", err)
		return fmt.Errorf("commit tx: %w", err)
	}
	s.logger.Debug("sqlite: add chunks ok", "count", len(chunks), "duration", time.Since(start))
	return nil
}

// SearchChunks performs brute-force cosine similarity search over all stored
// chunks and returns the topK best matches, best first.
func (s *Store) SearchChunks(ctx context.Context, embedding []float32, topK int) ([]ragserve.ScoredChunk, error) {
	start := time.Now()
	s.logger.Debug("sqlite: search chunks", "top_k", topK, "embedding_dim", len(embedding))

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, identifier, source_type, document_type, source_url, page, content, embedding
		 FROM chunks WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var results []ragserve.ScoredChunk
	scanned := 0
	for rows.Next() {
		c, embJSON, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		scanned++
		stored, err := deserializeEmbedding(embJSON)
		if err != nil {
			continue
		}
		results = append(results, ragserve.ScoredChunk{Chunk: c, Score: cosineSimilarity(embedding, stored)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	s.logger.Debug("sqlite: search chunks ok", "scanned", scanned, "returned", len(results), "duration", time.Since(start))
	return results, nil
}

// GetByIdentifier returns up to limit chunks with the given identifier.
// Used by the ingestion pipeline as a dedup existence check.
func (s *Store) GetByIdentifier(ctx context.Context, identifier string, limit int) ([]ragserve.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, identifier, source_type, document_type, source_url, page, content, embedding
		 FROM chunks WHERE identifier = ? LIMIT ?`, identifier, limit)
	if err != nil {
		return nil, fmt.Errorf("get by identifier: %w", err)
	}
	defer rows.Close()

	var out []ragserve.Chunk
	for rows.Next() {
		c, _, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// scanChunk reads one chunk row. The embedding JSON is returned separately
// so search can deserialize it and lookups can skip it.
func scanChunk(rows *sql.Rows) (ragserve.Chunk, string, error) {
	var c ragserve.Chunk
	var docType string
	var sourceURL sql.NullString
	var page sql.NullInt64
	var embJSON sql.NullString
	if err := rows.Scan(&c.ID, &c.Metadata.Identifier, &c.Metadata.SourceType, &docType,
		&sourceURL, &page, &c.Text, &embJSON); err != nil {
		return ragserve.Chunk{}, "", fmt.Errorf("scan chunk: %w", err)
	}
	c.Metadata.DocumentType = ragserve.DocumentType(docType)
	if sourceURL.Valid {
		c.Metadata.SourceURL = sourceURL.String
	}
	if page.Valid {
		p := int(page.Int64)
		c.Metadata.Page = &p
	}
	return c, embJSON.String, nil
}

// serializeEmbedding encodes a vector as compact JSON.
func serializeEmbedding(v []float32) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(float64(f), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// deserializeEmbedding decodes a JSON-encoded vector.
func deserializeEmbedding(s string) ([]float32, error) {
	var v []float32
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// cosineSimilarity returns the cosine of the angle between a and b,
// or 0 when dimensions mismatch or either vector is zero.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
