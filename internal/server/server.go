// Package server exposes the ingestion pipeline and query graph over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	ragserve "github.com/nholden/ragserve"
	"github.com/nholden/ragserve/observer"
	"github.com/nholden/ragserve/rag"
)

// Ingestor runs the document ingestion pipeline.
type Ingestor interface {
	Ingest(ctx context.Context, req ragserve.IngestRequest) (int, error)
}

// Querier answers a question against the vector store.
type Querier interface {
	Run(ctx context.Context, question string) (rag.State, error)
}

// Server wires HTTP routes to the pipeline and graph.
type Server struct {
	pipeline       Ingestor
	graph          Querier
	logger         *slog.Logger
	instruments    *observer.Instruments
	metricsHandler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a structured logger for request events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithInstruments enables request counting and duration metrics,
// and serves the Prometheus exposition on /metrics.
func WithInstruments(inst *observer.Instruments) Option {
	return func(s *Server) {
		s.instruments = inst
		s.metricsHandler = inst.MetricsHandler()
	}
}

// New creates a Server. The default logger discards output.
func New(pipeline Ingestor, graph Querier, opts ...Option) *Server {
	s := &Server{
		pipeline: pipeline,
		graph:    graph,
		logger:   slog.New(discardHandler{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the routed HTTP handler with metrics middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ingest", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleIngest(w, r)
	})
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleQuery(w, r)
	})
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		if s.metricsHandler == nil {
			http.NotFound(w, r)
			return
		}
		s.metricsHandler.ServeHTTP(w, r)
	})
	return s.withMetrics(mux)
}

// handleIngest runs the pipeline for one document. Outcomes are reported in
// the body with HTTP 200: clients branch on the status field. A duplicate
// submission reports status "error" with an explanatory message.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ragserve.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	source := req.URL
	if source == "" {
		source = "content"
	}
	s.logger.Info("request_ingest_started", "source", source, "document_type", req.DocumentType)

	created, err := s.pipeline.Ingest(r.Context(), req)
	if err != nil {
		var dup *ragserve.DuplicateDocumentError
		if errors.As(err, &dup) {
			s.logger.Info("duplicate_document_rejected", "identifier", dup.Key)
			writeJSON(w, http.StatusOK, ragserve.IngestResponse{
				Status:        "error",
				Message:       "Document already exists",
				ChunksCreated: 0,
			})
			return
		}
		s.logger.Error("request_ingest_failed", "source", source, "error", err)
		writeJSON(w, http.StatusOK, ragserve.IngestResponse{
			Status:  "error",
			Message: err.Error(),
		})
		return
	}

	s.logger.Info("request_ingest_completed", "source", source, "chunks_created", created)
	if s.instruments != nil {
		s.instruments.ChunksIngested.Add(r.Context(), int64(created))
	}
	writeJSON(w, http.StatusOK, ragserve.IngestResponse{
		Status:        "success",
		Message:       "Document ingested successfully",
		ChunksCreated: created,
	})
}

// handleQuery answers a question. Unlike ingest, failures here are server
// errors and surface as HTTP 500.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req ragserve.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question must not be empty")
		return
	}

	s.logger.Info("request_query_started", "question", req.Question)

	state, err := s.graph.Run(r.Context(), req.Question)
	if err != nil {
		s.logger.Error("request_query_failed", "question", req.Question, "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	if s.instruments != nil {
		s.instruments.QueryCount.Add(r.Context(), 1)
	}

	sources := state.Sources()
	if sources == nil {
		sources = []ragserve.Source{}
	}
	s.logger.Info("request_query_completed", "question", req.Question, "sources", len(sources))
	writeJSON(w, http.StatusOK, ragserve.QueryResponse{
		Answer:  state.Answer,
		Sources: sources,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
