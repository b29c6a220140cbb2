package embedding

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/anatolykoptev/go_tube/internal/engine"
)

// GenAI embeds through the Gemini API. Documents and queries carry
// distinct retrieval task types, which measurably improves ranking for
// asymmetric search.
type GenAI struct {
	client *genai.Client
	model  string
	retry  engine.RetryConfig
}

// NewGenAI returns a Gemini-backed engine. The API key is required;
// an empty model falls back to gemini-embedding-001.
func NewGenAI(apiKey, model string) (*GenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai embedding: API key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &GenAI{client: client, model: model, retry: engine.DefaultRetryConfig}, nil
}

// classifyEmbedErr rewraps rate-limit and server errors from the SDK so
// the retry layer recognizes them as transient. Everything else (bad
// key, invalid model) passes through and fails immediately.
func classifyEmbedErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if rerr := engine.RetryableStatusError(apiErr.Code); rerr != nil {
			return fmt.Errorf("genai status %d: %w", apiErr.Code, rerr)
		}
	}
	return err
}

func (g *GenAI) embed(ctx context.Context, texts []string, task string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	vecs, err := engine.RetryDo(ctx, g.retry, func() ([][]float32, error) {
		result, err := g.client.Models.EmbedContent(ctx, g.model, contents, &genai.EmbedContentConfig{
			TaskType: task,
		})
		if err != nil {
			return nil, classifyEmbedErr(err)
		}
		if len(result.Embeddings) != len(texts) {
			return nil, fmt.Errorf("got %d embeddings for %d texts", len(result.Embeddings), len(texts))
		}
		out := make([][]float32, len(result.Embeddings))
		for i, e := range result.Embeddings {
			out[i] = e.Values
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("genai embed: %w", err)
	}
	return vecs, nil
}

// EmbedDocs embeds passages as retrieval documents in one batch call.
func (g *GenAI) EmbedDocs(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return g.embed(ctx, texts, "RETRIEVAL_DOCUMENT")
}

// EmbedQuery embeds a retrieval query.
func (g *GenAI) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.embed(ctx, []string{text}, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Dimensions returns the gemini-embedding-001 vector width.
func (g *GenAI) Dimensions() int { return 768 }

// Name identifies the backend and model.
func (g *GenAI) Name() string { return "genai:" + g.model }
