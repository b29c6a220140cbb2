package engine

import (
	"context"
	"strings"

	"github.com/anatolykoptev/go-kit/llm"
)

// StripFences removes markdown code fences from LLM output. Models
// keep wrapping JSON contracts in fences no matter what the prompt
// says, so every response passes through here before parsing.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// CallLLM sends a prompt with an explicit max_tokens budget and
// returns the fence-stripped response. Temperature comes from config.
func CallLLM(ctx context.Context, prompt string, maxTokens int) (string, error) {
	IncrLLMCalls()
	var (
		resp string
		err  error
	)
	if maxTokens > 0 {
		resp, err = cfg.LLMClient.Complete(ctx, "", prompt, llm.WithChatMaxTokens(maxTokens))
	} else {
		resp, err = cfg.LLMClient.Complete(ctx, "", prompt)
	}
	if err != nil {
		IncrLLMErrors()
		return "", err
	}
	return StripFences(resp), nil
}

// modelSession adapts the configured LLM client to the narrow
// prompt/response interface the research package consumes.
type modelSession struct{}

// Send implements research.ModelSession.
func (modelSession) Send(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return CallLLM(ctx, prompt, maxTokens)
}

// ModelSession returns the engine-backed model session.
func ModelSession() interface {
	Send(ctx context.Context, prompt string, maxTokens int) (string, error)
} {
	return modelSession{}
}
