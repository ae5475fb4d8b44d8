// Package llm provides streaming answer generation and embeddings
// behind a provider-neutral interface.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/nicozefrench/diveteacher/internal/config"
)

// Request is a single completion request.
type Request struct {
	// Prompt is the user prompt.
	Prompt string

	// System is the system prompt. Empty means provider default.
	System string

	// Temperature controls sampling. Zero is allowed.
	Temperature float64

	// MaxTokens bounds the response length.
	MaxTokens int
}

// LLM generates completions.
type LLM interface {
	// Name returns the provider identifier.
	Name() string

	// Model returns the configured model name.
	Model() string

	// Stream starts a completion and returns a token channel and an
	// error channel. The token channel is closed when the completion
	// ends; at most one error is sent.
	Stream(ctx context.Context, req Request) (<-chan string, <-chan error)

	// Complete runs a completion to the end and returns the full text.
	Complete(ctx context.Context, req Request) (string, error)
}

// New creates the configured provider.
func New(cfg config.LLMConfig) (LLM, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllama(cfg.Endpoint, cfg.Model), nil
	case "openai":
		return NewOpenAI(cfg.ResolveAPIKey(), cfg.Model), nil
	case "anthropic":
		return NewAnthropic(cfg.ResolveAPIKey(), cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// collect drains a stream into a single string. Shared by the
// providers' Complete implementations.
func collect(ctx context.Context, l LLM, req Request) (string, error) {
	tokens, errs := l.Stream(ctx, req)

	var b strings.Builder
	for tok := range tokens {
		b.WriteString(tok)
	}

	if err := <-errs; err != nil {
		return "", err
	}
	return b.String(), nil
}
