package ragserve

import "context"

// ChatMessage is a single turn in a chat request.
type ChatMessage struct {
	Role    string `json:"role"` // "system" or "user"
	Content string `json:"content"`
}

// ChatRequest carries the messages for one completion call.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

// ChatResponse is the model's completion.
type ChatResponse struct {
	Content string `json:"content"`
}

// ChatProvider abstracts the chat/completion LLM backend.
type ChatProvider interface {
	// Chat sends a request and returns the complete response.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	// Name returns the provider name (e.g. "gemini", "openai").
	Name() string
}

// EmbeddingProvider abstracts text embedding.
type EmbeddingProvider interface {
	// Embed returns one embedding vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the embedding vector size.
	Dimensions() int
	// Name returns the provider name.
	Name() string
}
