// Package openaicompat implements chat and embedding providers for any
// OpenAI-compatible API.
//
// Works with OpenAI, OpenRouter, Groq, Together, Fireworks, DeepSeek,
// Mistral, Ollama, vLLM, LM Studio, Azure OpenAI, and any other server that
// implements the OpenAI chat completions and embeddings APIs.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	ragserve "github.com/nholden/ragserve"
)

// Provider implements ragserve.ChatProvider for any OpenAI-compatible API.
type Provider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	name    string

	temperature *float64
	maxTokens   *int
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithName overrides the provider name reported by Name().
// Useful when pointing at OpenRouter, Groq, Ollama, etc.
func WithName(name string) ProviderOption {
	return func(p *Provider) { p.name = name }
}

// WithTemperature sets the sampling temperature for every request.
func WithTemperature(t float64) ProviderOption {
	return func(p *Provider) { p.temperature = &t }
}

// WithMaxTokens caps the completion length for every request.
func WithMaxTokens(n int) ProviderOption {
	return func(p *Provider) { p.maxTokens = &n }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *Provider) { p.client = c }
}

// NewProvider creates an OpenAI-compatible chat provider.
//
// baseURL is the API base (e.g. "https://api.openai.com/v1",
// "http://localhost:11434/v1"). The /chat/completions path is appended
// automatically.
func NewProvider(apiKey, model, baseURL string, opts ...ProviderOption) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{},
		name:    "openai",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider name (default "openai", configurable via WithName).
func (p *Provider) Name() string { return p.name }

// Chat sends a non-streaming chat request and returns the complete response.
func (p *Provider) Chat(ctx context.Context, req ragserve.ChatRequest) (ragserve.ChatResponse, error) {
	body := chatBody{
		Model:       p.model,
		Messages:    make([]chatMessage, 0, len(req.Messages)),
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := p.sendHTTP(ctx, p.baseURL+"/chat/completions", body)
	if err != nil {
		return ragserve.ChatResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ragserve.ChatResponse{}, p.httpErr(resp)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ragserve.ChatResponse{}, &ragserve.ErrLLM{Provider: p.name, Message: fmt.Sprintf("decode response: %v", err)}
	}
	if len(parsed.Choices) == 0 {
		return ragserve.ChatResponse{}, &ragserve.ErrLLM{Provider: p.name, Message: "no choices in response"}
	}

	return ragserve.ChatResponse{Content: parsed.Choices[0].Message.Content}, nil
}

// sendHTTP marshals the request body and POSTs it with auth headers.
func (p *Provider) sendHTTP(ctx context.Context, url string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &ragserve.ErrLLM{Provider: p.name, Message: fmt.Sprintf("marshal request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &ragserve.ErrLLM{Provider: p.name, Message: fmt.Sprintf("create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	return p.client.Do(httpReq)
}

// httpErr reads the response body and returns an ErrHTTP.
func (p *Provider) httpErr(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return &ragserve.ErrHTTP{Status: resp.StatusCode, Body: string(body)}
}

// ---- Embedding provider ----

// EmbeddingProvider implements ragserve.EmbeddingProvider against the
// OpenAI embeddings API.
type EmbeddingProvider struct {
	apiKey  string
	model   string
	baseURL string
	dims    int
	client  *http.Client
	name    string
}

// NewEmbedding creates an OpenAI-compatible embedding provider.
// The /embeddings path is appended to baseURL automatically.
func NewEmbedding(apiKey, model, baseURL string, dims int) *EmbeddingProvider {
	return &EmbeddingProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		dims:    dims,
		client:  &http.Client{},
		name:    "openai",
	}
}

// Name returns the provider name.
func (e *EmbeddingProvider) Name() string { return e.name }

// Dimensions returns the configured embedding dimensionality.
func (e *EmbeddingProvider) Dimensions() int { return e.dims }

// Embed embeds all texts in a single batched request. Vectors come back in
// input order per the API's index field.
func (e *EmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body := embedBody{Model: e.model, Input: texts}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &ragserve.ErrLLM{Provider: e.name, Message: fmt.Sprintf("marshal embed request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, &ragserve.ErrLLM{Provider: e.name, Message: fmt.Sprintf("create embed request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, &ragserve.ErrLLM{Provider: e.name, Message: fmt.Sprintf("embed request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, &ragserve.ErrHTTP{Status: resp.StatusCode, Body: string(b)}
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &ragserve.ErrLLM{Provider: e.name, Message: fmt.Sprintf("decode embed response: %v", err)}
	}
	if len(parsed.Data) != len(texts) {
		return nil, &ragserve.ErrLLM{Provider: e.name, Message: fmt.Sprintf("got %d embeddings for %d inputs", len(parsed.Data), len(texts))}
	}

	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, &ragserve.ErrLLM{Provider: e.name, Message: fmt.Sprintf("embedding index %d out of range", d.Index)}
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// ---- Wire types ----

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatBody struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type embedBody struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Compile-time interface checks.
var (
	_ ragserve.ChatProvider      = (*Provider)(nil)
	_ ragserve.EmbeddingProvider = (*EmbeddingProvider)(nil)
)
