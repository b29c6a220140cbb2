package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/anatolykoptev/go_tube/internal/engine"
)

// Ollama embeds through a local Ollama server. The API has no batch
// endpoint and no notion of retrieval task, so documents and queries go
// through the same call.
type Ollama struct {
	url    string
	model  string
	client *http.Client
	retry  engine.RetryConfig
}

// NewOllama returns an engine talking to the given Ollama server.
// Empty arguments fall back to localhost and embeddinggemma.
func NewOllama(url, model string) *Ollama {
	if url == "" {
		url = "http://localhost:11434"
	}
	if model == "" {
		model = "embeddinggemma"
	}
	return &Ollama{
		url:    url,
		model:  model,
		client: &http.Client{Timeout: 30 * time.Second},
		retry:  engine.DefaultRetryConfig,
	}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (o *Ollama) embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaRequest{Model: o.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	// The request is rebuilt per attempt so the body reader is fresh.
	resp, err := engine.RetryHTTP(ctx, o.retry, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url+"/api/embeddings", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		return o.client.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ollama status %d: %s", resp.StatusCode, msg)
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned empty embedding for model %s", o.model)
	}
	return out.Embedding, nil
}

// EmbedDocs embeds each passage with one request per text.
func (o *Ollama) EmbedDocs(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := o.embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embed doc %d: %w", i, err)
		}
		vecs[i] = v
	}
	return vecs, nil
}

// EmbedQuery embeds a retrieval query.
func (o *Ollama) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return o.embed(ctx, text)
}

// Dimensions returns the embeddinggemma vector width.
func (o *Ollama) Dimensions() int { return 768 }

// Name identifies the backend and model.
func (o *Ollama) Name() string { return "ollama:" + o.model }
