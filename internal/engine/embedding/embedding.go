// Package embedding produces dense vectors for transcript chunks and
// retrieval queries. Two backends are supported: a local Ollama server
// and the Gemini API via google.golang.org/genai. One engine instance
// serves the whole process and is safe for concurrent use.
package embedding

import (
	"context"
	"fmt"
)

// Engine turns text into fixed-dimension vectors. Document and query
// embedding are separate operations because some backends encode an
// asymmetric retrieval task into the request.
type Engine interface {
	// EmbedDocs embeds passages for storage in a vector index.
	EmbedDocs(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a retrieval query against stored passages.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimensions returns the vector width the engine produces.
	Dimensions() int
	// Name identifies the backend and model, e.g. "ollama:embeddinggemma".
	Name() string
}

// Config selects and configures the embedding backend.
type Config struct {
	Provider    string // "ollama" (default) or "genai"
	OllamaURL   string // default http://localhost:11434
	OllamaModel string // default embeddinggemma
	GenAIAPIKey string
	GenAIModel  string // default gemini-embedding-001
}

// NewEngine builds the backend named by cfg.Provider.
func NewEngine(cfg Config) (Engine, error) {
	switch cfg.Provider {
	case "", "ollama":
		return NewOllama(cfg.OllamaURL, cfg.OllamaModel), nil
	case "genai":
		return NewGenAI(cfg.GenAIAPIKey, cfg.GenAIModel)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (want ollama or genai)", cfg.Provider)
	}
}
