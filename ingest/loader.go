package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	ragserve "github.com/nholden/ragserve"
)

const (
	fetchTimeout = 10 * time.Second
	maxFetchSize = 32 << 20 // 32MB
	userAgent    = "Mozilla/5.0 (compatible; ragserve/1.0)"
)

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithHTTPClient replaces the fetch client (tests use httptest servers).
func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *Loader) { l.client = c }
}

// WithLoaderLogger sets a structured logger.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

// WithLoaderTracer sets the tracer used for load spans.
func WithLoaderTracer(t trace.Tracer) LoaderOption {
	return func(l *Loader) { l.tracer = t }
}

// Loader fetches and parses raw bytes into normalized text documents,
// dispatched by declared document type. It does not retry: any transport
// failure, non-2xx status, or parse failure surfaces as a *ragserve.LoadError.
type Loader struct {
	client *http.Client
	logger *slog.Logger
	tracer trace.Tracer
}

// NewLoader creates a Loader with a 10-second fetch timeout.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		client: &http.Client{Timeout: fetchTimeout},
		logger: slog.New(discardHandler{}),
		tracer: otel.Tracer("github.com/nholden/ragserve/ingest"),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load dispatches on the request's source: URL-sourced documents are fetched
// and parsed per type, inline content is wrapped as exactly one document.
func (l *Loader) Load(ctx context.Context, req ragserve.IngestRequest) ([]ragserve.Document, error) {
	if req.URL != "" {
		return l.LoadURL(ctx, req.URL, req.DocumentType)
	}
	return l.LoadContent(ctx, req.Content, req.DocumentType)
}

// LoadContent wraps inline content as one document with source type
// "content". Markdown content is reduced to plain text first.
func (l *Loader) LoadContent(ctx context.Context, content string, docType ragserve.DocumentType) ([]ragserve.Document, error) {
	_, span := l.tracer.Start(ctx, "load_document_from_content", trace.WithAttributes(
		attribute.String("document.type", string(docType)),
		attribute.Int("document.content_length", len(content)),
	))
	defer span.End()

	l.logger.Debug("loading_document_from_content",
		"document_type", docType, "content_length", len(content))

	text := NormalizeText(content)
	if docType == ragserve.TypeMarkdown {
		text = ExtractMarkdown([]byte(content))
	}

	return []ragserve.Document{{
		Text: text,
		Metadata: ragserve.Metadata{
			Identifier:   ragserve.HashContent(content),
			SourceType:   ragserve.SourceContent,
			DocumentType: docType,
		},
	}}, nil
}

// LoadURL fetches a document over HTTP and parses it per type:
// html → readability-extracted page text; pdf → one document per page,
// parsed from a temporary file that is removed on every exit path;
// text/markdown → the entire body as one document.
func (l *Loader) LoadURL(ctx context.Context, rawURL string, docType ragserve.DocumentType) (docs []ragserve.Document, err error) {
	ctx, span := l.tracer.Start(ctx, "load_document_from_url", trace.WithAttributes(
		attribute.String("document.type", string(docType)),
		attribute.String("document.url", rawURL),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	l.logger.Info("loading_document_from_url", "url", rawURL, "document_type", docType)

	body, err := l.fetch(ctx, rawURL)
	if err != nil {
		l.logger.Error("document_loading_from_url_failed", "url", rawURL, "error", err)
		return nil, &ragserve.LoadError{Source: rawURL, Err: err}
	}

	meta := ragserve.Metadata{
		Identifier:   rawURL,
		SourceType:   ragserve.SourceURL,
		DocumentType: docType,
		SourceURL:    rawURL,
	}

	switch docType {
	case ragserve.TypeHTML:
		docs, err = extractHTMLDocuments(body, rawURL, meta)
	case ragserve.TypePDF:
		docs, err = extractPDFDocuments(body, meta)
	case ragserve.TypeText:
		docs = []ragserve.Document{{Text: NormalizeText(string(body)), Metadata: meta}}
	case ragserve.TypeMarkdown:
		docs = []ragserve.Document{{Text: ExtractMarkdown(body), Metadata: meta}}
	default:
		err = fmt.Errorf("unsupported document type %q", docType)
	}
	if err != nil {
		l.logger.Error("document_loading_from_url_failed", "url", rawURL, "error", err)
		return nil, &ragserve.LoadError{Source: rawURL, Err: err}
	}

	l.logger.Info("url_documents_loaded", "url", rawURL, "documents_count", len(docs))
	return docs, nil
}

// fetch downloads a URL, failing on transport errors and non-2xx statuses.
func (l *Loader) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ragserve.ErrHTTP{Status: resp.StatusCode, Body: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// extractHTMLDocuments extracts the visible text of a fetched page.
// Readability extraction is preferred; plain tag stripping is the fallback
// for pages readability cannot parse (fragments, frames, bare markup).
func extractHTMLDocuments(body []byte, rawURL string, meta ragserve.Metadata) ([]ragserve.Document, error) {
	html := string(body)

	parsedURL, _ := url.Parse(rawURL)
	article, err := readability.FromReader(strings.NewReader(html), parsedURL)
	text := ""
	if err == nil {
		text = strings.TrimSpace(article.TextContent)
	}
	if text == "" {
		text = StripHTML(html)
	}
	if text == "" {
		return nil, fmt.Errorf("no extractable text in page")
	}
	return []ragserve.Document{{Text: NormalizeText(text), Metadata: meta}}, nil
}

// extractPDFDocuments writes the fetched PDF to a scoped temporary file,
// parses it page by page, and removes the file before returning regardless
// of outcome.
func extractPDFDocuments(body []byte, meta ragserve.Metadata) ([]ragserve.Document, error) {
	tmp, err := os.CreateTemp("", "ragserve-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	pages, err := ExtractPDFPages(tmpPath)
	if err != nil {
		return nil, err
	}

	docs := make([]ragserve.Document, len(pages))
	for i, p := range pages {
		pageMeta := meta
		page := p.Number
		pageMeta.Page = &page
		docs[i] = ragserve.Document{Text: p.Text, Metadata: pageMeta}
	}
	return docs, nil
}

// discardHandler drops all log records. Components default to it so callers
// that don't care about logging stay quiet.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
