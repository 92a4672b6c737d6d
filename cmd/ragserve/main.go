// Command ragserve runs the retrieval-augmented generation HTTP service.
//
// It ingests documents (PDF, HTML, markdown, plain text) into a vector
// store and answers questions against them via a retrieve-then-generate
// pipeline. Configuration comes from ragserve.toml (path via
// RAGSERVE_CONFIG) with RAGSERVE_* env overrides.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	ragserve "github.com/nholden/ragserve"
	"github.com/nholden/ragserve/ingest"
	"github.com/nholden/ragserve/internal/config"
	"github.com/nholden/ragserve/internal/server"
	"github.com/nholden/ragserve/observer"
	"github.com/nholden/ragserve/provider/gemini"
	"github.com/nholden/ragserve/provider/openaicompat"
	"github.com/nholden/ragserve/rag"
	"github.com/nholden/ragserve/store/postgres"
	"github.com/nholden/ragserve/store/sqlite"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg := config.Load(os.Getenv("RAGSERVE_CONFIG"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Observability
	inst, shutdownObserver, err := observer.Init(ctx)
	if err != nil {
		return err
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownObserver(shutCtx)
	}()

	// Providers
	chat, embedder, err := buildProviders(cfg)
	if err != nil {
		return err
	}

	// Vector store: SQLite for dev, Postgres with pgvector for prod.
	store, closeStore, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	if err := store.Init(ctx); err != nil {
		return err
	}

	// Ingestion pipeline
	loader := ingest.NewLoader(
		ingest.WithLoaderLogger(logger),
		ingest.WithLoaderTracer(inst.Tracer),
	)
	splitter := ingest.NewSplitter(
		ingest.WithChunkSize(cfg.Ingest.ChunkSize),
		ingest.WithOverlap(cfg.Ingest.ChunkOverlap),
	)
	pipeline := ingest.NewPipeline(loader, splitter, embedder, store,
		ingest.WithPipelineLogger(logger),
		ingest.WithPipelineTracer(inst.Tracer),
	)

	// Query graph
	graph := rag.NewGraph(embedder, store, chat,
		rag.WithTopK(cfg.Retrieval.TopK),
		rag.WithGraphLogger(logger),
		rag.WithGraphTracer(inst.Tracer),
	)

	// Seed documents ingest in the background so startup is not blocked on
	// remote fetches.
	go seedDocuments(ctx, cfg.Seeds, pipeline, logger)

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: server.New(pipeline, graph,
			server.WithLogger(logger),
			server.WithInstruments(inst),
		).Handler(),
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_started", "addr", cfg.Server.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting_down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// buildProviders selects chat and embedding providers from config.
// "gemini" uses the native API; anything else goes through the
// OpenAI-compatible endpoints at the configured base URL.
func buildProviders(cfg config.Config) (ragserve.ChatProvider, ragserve.EmbeddingProvider, error) {
	var chat ragserve.ChatProvider
	switch cfg.LLM.Provider {
	case "gemini":
		chat = gemini.New(cfg.LLM.APIKey, cfg.LLM.Model)
	default:
		if cfg.LLM.BaseURL == "" {
			return nil, nil, errors.New("llm.base_url is required for openai-compatible providers")
		}
		chat = openaicompat.NewProvider(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL,
			openaicompat.WithName(cfg.LLM.Provider),
			openaicompat.WithTemperature(0.1),
		)
	}

	var embedder ragserve.EmbeddingProvider
	switch cfg.Embedding.Provider {
	case "gemini":
		embedder = gemini.NewEmbedding(cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.Dimensions)
	default:
		if cfg.Embedding.BaseURL == "" {
			return nil, nil, errors.New("embedding.base_url is required for openai-compatible providers")
		}
		embedder = openaicompat.NewEmbedding(cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.BaseURL, cfg.Embedding.Dimensions)
	}

	return chat, embedder, nil
}

// buildStore returns the vector store for the configured environment plus a
// cleanup func that releases its connections.
func buildStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (ragserve.VectorStore, func(), error) {
	if cfg.Env == "prod" {
		if cfg.Database.PostgresURL == "" {
			return nil, nil, errors.New("database.postgres_url is required when env=prod")
		}
		pool, err := pgxpool.New(ctx, cfg.Database.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		store := postgres.New(pool, postgres.WithEmbeddingDimension(cfg.Embedding.Dimensions))
		return store, pool.Close, nil
	}

	store := sqlite.New(cfg.Database.Path, sqlite.WithLogger(logger))
	return store, func() { _ = store.Close() }, nil
}

// seedDocuments ingests the configured seed list. Duplicates are expected on
// restart and logged at info level; real failures are logged and skipped so
// one bad seed does not abort the rest.
func seedDocuments(ctx context.Context, seeds []config.SeedConfig, pipeline *ingest.Pipeline, logger *slog.Logger) {
	if len(seeds) == 0 {
		return
	}
	logger.Info("auto_ingest_started", "count", len(seeds))

	for _, seed := range seeds {
		req := ragserve.IngestRequest{
			URL:          seed.URL,
			DocumentType: ragserve.DocumentType(seed.DocumentType),
		}
		created, err := pipeline.Ingest(ctx, req)
		if err != nil {
			var dup *ragserve.DuplicateDocumentError
			if errors.As(err, &dup) {
				logger.Info("auto_ingest_found_duplicate", "url", seed.URL)
				continue
			}
			logger.Error("auto_ingest_failed", "url", seed.URL, "error", err)
			continue
		}
		logger.Info("auto_ingest_document_completed", "url", seed.URL, "chunks_created", created)
	}

	logger.Info("auto_ingest_completed")
}
