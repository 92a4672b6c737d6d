// Package postgres implements ragserve.VectorStore using PostgreSQL with
// pgvector for native cosine similarity search over chunk embeddings.
//
// The Store accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	ragserve "github.com/nholden/ragserve"
)

// Store implements ragserve.VectorStore backed by PostgreSQL with pgvector.
// Vector search uses an HNSW index with cosine distance.
//
// chunks.identifier is indexed but not unique, so two concurrent ingests of
// the same document can race past the existence check. Fixing that needs a
// uniqueness constraint and upsert-by-identifier in AddChunks; left open.
type Store struct {
	pool *pgxpool.Pool
	cfg  pgConfig
}

// pgConfig holds store configuration set via Option functions.
type pgConfig struct {
	embeddingDimension int // 0 = untyped vector column
	hnswM              int // 0 = pgvector default (16)
	hnswEFConstruction int // 0 = pgvector default (64)
	hnswEFSearch       int // 0 = pgvector default (40)
}

// Option configures a PostgreSQL Store.
type Option func(*pgConfig)

// WithEmbeddingDimension sets the vector column dimension (e.g. 1536, 768).
// When set, CREATE TABLE uses vector(N) instead of untyped vector, enabling
// better index optimization and catching dimension mismatches at insert time.
// Only affects new table creation (no ALTER on existing tables).
func WithEmbeddingDimension(dim int) Option {
	return func(c *pgConfig) { c.embeddingDimension = dim }
}

// WithHNSWM sets the HNSW m parameter (max connections per node).
// Higher values improve recall at the cost of memory. Default: pgvector's 16.
func WithHNSWM(m int) Option {
	return func(c *pgConfig) { c.hnswM = m }
}

// WithEFConstruction sets the HNSW ef_construction parameter (build-time
// candidate list size). Higher values improve index quality at the cost of
// slower builds. Default: pgvector's 64.
func WithEFConstruction(ef int) Option {
	return func(c *pgConfig) { c.hnswEFConstruction = ef }
}

// WithEFSearch sets the HNSW ef_search parameter (query-time candidate list
// size). Higher values improve recall at the cost of latency. Default:
// pgvector's 40. Applied during Init().
func WithEFSearch(ef int) Option {
	return func(c *pgConfig) { c.hnswEFSearch = ef }
}

var _ ragserve.VectorStore = (*Store)(nil)

// New creates a Store using an existing pgxpool.Pool.
// The caller owns the pool and is responsible for closing it.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	var cfg pgConfig
	for _, o := range opts {
		o(&cfg)
	}
	return &Store{pool: pool, cfg: cfg}
}

// vectorType returns "vector" or "vector(N)" depending on config.
func (s *Store) vectorType() string {
	if s.cfg.embeddingDimension > 0 {
		return fmt.Sprintf("vector(%d)", s.cfg.embeddingDimension)
	}
	return "vector"
}

// hnswWithClause returns the WITH (...) clause for HNSW index creation,
// or an empty string if no tuning params are set.
func (s *Store) hnswWithClause() string {
	var parts []string
	if s.cfg.hnswM > 0 {
		parts = append(parts, fmt.Sprintf("m = %d", s.cfg.hnswM))
	}
	if s.cfg.hnswEFConstruction > 0 {
		parts = append(parts, fmt.Sprintf("ef_construction = %d", s.cfg.hnswEFConstruction))
	}
	if len(parts) == 0 {
		return ""
	}
	return " WITH (" + strings.Join(parts, ", ") + ")"
}

// Init creates the pgvector extension, the chunks table, and its indexes.
// Safe to call multiple times (all statements are idempotent).
func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			identifier TEXT NOT NULL,
			source_type TEXT NOT NULL,
			document_type TEXT NOT NULL,
			source_url TEXT,
			page INTEGER,
			content TEXT NOT NULL,
			embedding %s,
			created_at BIGINT NOT NULL
		)`, s.vectorType()),
		`CREATE INDEX IF NOT EXISTS chunks_identifier_idx ON chunks(identifier)`,
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS chunks_embedding_idx ON chunks USING hnsw (embedding vector_cosine_ops)%s`, s.hnswWithClause()),
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: init: %w", err)
		}
	}

	if s.cfg.hnswEFSearch > 0 {
		if _, err := s.pool.Exec(ctx, fmt.Sprintf("SET hnsw.ef_search = %d", s.cfg.hnswEFSearch)); err != nil {
			return fmt.Errorf("postgres: set ef_search: %w", err)
		}
	}

	return nil
}

// AddChunks inserts all chunks in a single transaction.
func (s *Store) AddChunks(ctx context.Context, chunks []ragserve.Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := ragserve.NowUnix()
	for _, c := range chunks {
		var sourceURL *string
		if c.Metadata.SourceURL != "" {
			sourceURL = &c.Metadata.SourceURL
		}

		if len(c.Embedding) > 0 {
			embStr := serializeEmbedding(c.Embedding)
			_, err = tx.Exec(ctx,
				`INSERT INTO chunks (id, identifier, source_type, document_type, source_url, page, content, embedding, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::vector, $9)`,
				c.ID, c.Metadata.Identifier, c.Metadata.SourceType, string(c.Metadata.DocumentType),
				sourceURL, c.Metadata.Page, c.Text, embStr, now)
		} else {
			_, err = tx.Exec(ctx,
				`INSERT INTO chunks (id, identifier, source_type, document_type, source_url, page, content, embedding, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, $8)`,
				c.ID, c.Metadata.Identifier, c.Metadata.SourceType, string(c.Metadata.DocumentType),
				sourceURL, c.Metadata.Page, c.Text, now)
		}
		if err != nil {
			return fmt.Errorf("postgres: insert chunk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

// SearchChunks performs vector similarity search over chunks using
// pgvector's cosine distance operator with the HNSW index.
func (s *Store) SearchChunks(ctx context.Context, embedding []float32, topK int) ([]ragserve.ScoredChunk, error) {
	embStr := serializeEmbedding(embedding)
	rows, err := s.pool.Query(ctx,
		`SELECT id, identifier, source_type, document_type, source_url, page, content,
		        1 - (embedding <=> $1::vector) AS score
		 FROM chunks
		 WHERE embedding IS NOT NULL
		 ORDER BY embedding <=> $1::vector
		 LIMIT $2`,
		embStr, topK)
	if err != nil {
		return nil, fmt.Errorf("postgres: search chunks: %w", err)
	}
	defer rows.Close()

	var results []ragserve.ScoredChunk
	for rows.Next() {
		var c ragserve.Chunk
		var docType string
		var sourceURL *string
		var page *int
		var score float32
		if err := rows.Scan(&c.ID, &c.Metadata.Identifier, &c.Metadata.SourceType, &docType,
			&sourceURL, &page, &c.Text, &score); err != nil {
			return nil, fmt.Errorf("postgres: scan chunk: %w", err)
		}
		c.Metadata.DocumentType = ragserve.DocumentType(docType)
		if sourceURL != nil {
			c.Metadata.SourceURL = *sourceURL
		}
		c.Metadata.Page = page
		results = append(results, ragserve.ScoredChunk{Chunk: c, Score: score})
	}
	return results, rows.Err()
}

// GetByIdentifier returns up to limit chunks with the given identifier.
// Used by the ingestion pipeline as a dedup existence check.
func (s *Store) GetByIdentifier(ctx context.Context, identifier string, limit int) ([]ragserve.Chunk, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, identifier, source_type, document_type, source_url, page, content
		 FROM chunks WHERE identifier = $1 LIMIT $2`,
		identifier, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: get by identifier: %w", err)
	}
	defer rows.Close()

	var out []ragserve.Chunk
	for rows.Next() {
		var c ragserve.Chunk
		var docType string
		var sourceURL *string
		var page *int
		if err := rows.Scan(&c.ID, &c.Metadata.Identifier, &c.Metadata.SourceType, &docType,
			&sourceURL, &page, &c.Text); err != nil {
			return nil, fmt.Errorf("postgres: scan chunk: %w", err)
		}
		c.Metadata.DocumentType = ragserve.DocumentType(docType)
		if sourceURL != nil {
			c.Metadata.SourceURL = *sourceURL
		}
		c.Metadata.Page = page
		out = append(out, c)
	}
	return out, rows.Err()
}

// Close is a no-op. The caller owns the pool and manages its lifecycle.
func (s *Store) Close() error {
	return nil
}

// serializeEmbedding converts []float32 to a string like "[0.1,0.2,0.3]"
// suitable for pgvector's text input format.
func serializeEmbedding(embedding []float32) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
