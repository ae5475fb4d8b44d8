package graphstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nicozefrench/diveteacher/internal/llm"
)

// Extractor pulls entities and relations out of episode text.
type Extractor interface {
	Extract(ctx context.Context, text string) (*Extraction, error)
}

// extractionSystemPrompt instructs the model to emit strict JSON.
const extractionSystemPrompt = `You extract knowledge from scuba diving instruction material.
Given a passage, identify the named entities (equipment, procedures, conditions, organisms, physiological effects, certifications, depths and limits) and the factual relationships between them.

Respond with JSON only, no prose, in exactly this shape:
{"entities": [{"name": "...", "type": "..."}], "relations": [{"source": "...", "target": "...", "fact": "..."}]}

Rules:
- "fact" is one complete sentence stating the relationship, grounded in the passage.
- "source" and "target" must appear in "entities".
- Prefer specific entities over generic ones.
- At most 15 entities and 20 relations per passage.`

// LLMExtractor implements Extractor over a completion provider.
type LLMExtractor struct {
	llm llm.LLM
}

// NewLLMExtractor creates an extractor over the given provider.
func NewLLMExtractor(provider llm.LLM) *LLMExtractor {
	return &LLMExtractor{llm: provider}
}

// Extract runs one extraction completion and parses the JSON result.
func (x *LLMExtractor) Extract(ctx context.Context, text string) (*Extraction, error) {
	out, err := x.llm.Complete(ctx, llm.Request{
		System:      extractionSystemPrompt,
		Prompt:      text,
		Temperature: 0.1,
		MaxTokens:   2000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed extraction completion; %w", err)
	}

	extraction, err := parseExtraction(out)
	if err != nil {
		return nil, fmt.Errorf("failed to parse extraction output; %w", err)
	}
	return extraction, nil
}

// parseExtraction decodes the model output, tolerating code fences and
// leading prose around the JSON object.
func parseExtraction(out string) (*Extraction, error) {
	out = strings.TrimSpace(out)

	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in output")
	}

	var extraction Extraction
	if err := json.Unmarshal([]byte(out[start:end+1]), &extraction); err != nil {
		return nil, err
	}

	// Drop relations that reference entities the model never declared;
	// they cannot be merged onto nodes.
	names := make(map[string]bool, len(extraction.Entities))
	for _, e := range extraction.Entities {
		names[normalizeName(e.Name)] = true
	}

	kept := extraction.Relations[:0]
	for _, r := range extraction.Relations {
		if names[normalizeName(r.Source)] && names[normalizeName(r.Target)] && r.Fact != "" {
			kept = append(kept, r)
		}
	}
	extraction.Relations = kept

	return &extraction, nil
}

var _ Extractor = (*LLMExtractor)(nil)
