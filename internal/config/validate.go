package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a config validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation failures.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var b strings.Builder
	b.WriteString("config validation failed:\n")
	for _, err := range e {
		b.WriteString("  - ")
		b.WriteString(err.Error())
		b.WriteString("\n")
	}
	return b.String()
}

// validChunkingStrategies lists recognized chunking strategies.
var validChunkingStrategies = map[string]bool{
	"recursive": true,
	"hybrid":    true,
}

// validLLMProviders lists recognized answer-generation providers.
var validLLMProviders = map[string]bool{
	"ollama":    true,
	"openai":    true,
	"anthropic": true,
}

// Validate checks the configuration for errors.
// Returns ValidationErrors if validation fails.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("must be between 1 and 65535, got %d", cfg.Server.Port),
		})
	}

	if cfg.Server.Bind == "" {
		errs = append(errs, ValidationError{
			Field:   "server.bind",
			Message: "must not be empty",
		})
	}

	if cfg.Uploads.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "uploads.max_size_mb",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Uploads.MaxSizeMB),
		})
	}

	if len(cfg.Uploads.Extensions) == 0 {
		errs = append(errs, ValidationError{
			Field:   "uploads.extensions",
			Message: "must list at least one extension",
		})
	}

	if !validChunkingStrategies[cfg.Chunking.Strategy] {
		errs = append(errs, ValidationError{
			Field:   "chunking.strategy",
			Message: fmt.Sprintf("must be one of recursive, hybrid; got %q", cfg.Chunking.Strategy),
		})
	}

	if cfg.Chunking.MaxTokens < 1 {
		errs = append(errs, ValidationError{
			Field:   "chunking.max_tokens",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Chunking.MaxTokens),
		})
	}

	if cfg.Chunking.OverlapChars < 0 {
		errs = append(errs, ValidationError{
			Field:   "chunking.overlap_chars",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Chunking.OverlapChars),
		})
	}

	if cfg.Ingestion.TokensPerMin < 1 {
		errs = append(errs, ValidationError{
			Field:   "ingestion.tokens_per_min",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Ingestion.TokensPerMin),
		})
	}

	if cfg.Ingestion.SafetyBuffer <= 0 || cfg.Ingestion.SafetyBuffer > 1 {
		errs = append(errs, ValidationError{
			Field:   "ingestion.safety_buffer",
			Message: fmt.Sprintf("must be in (0, 1], got %g", cfg.Ingestion.SafetyBuffer),
		})
	}

	if cfg.Conversion.Workers < 1 {
		errs = append(errs, ValidationError{
			Field:   "conversion.workers",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Conversion.Workers),
		})
	}

	if cfg.Graph.Port < 1 || cfg.Graph.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "graph.port",
			Message: fmt.Sprintf("must be between 1 and 65535, got %d", cfg.Graph.Port),
		})
	}

	if cfg.Graph.Name == "" {
		errs = append(errs, ValidationError{
			Field:   "graph.name",
			Message: "must not be empty",
		})
	}

	if !validLLMProviders[cfg.LLM.Provider] {
		errs = append(errs, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("must be one of ollama, openai, anthropic; got %q", cfg.LLM.Provider),
		})
	}

	if cfg.Reranker.Multiplier < 1 {
		errs = append(errs, ValidationError{
			Field:   "reranker.multiplier",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Reranker.Multiplier),
		})
	}

	if cfg.RAG.TopK < 1 {
		errs = append(errs, ValidationError{
			Field:   "rag.top_k",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.RAG.TopK),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
