package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const ollamaProviderName = "ollama"

// Ollama streams completions from a local Ollama instance.
type Ollama struct {
	endpoint   string
	model      string
	httpClient *http.Client
}

// NewOllama creates an Ollama provider for the given endpoint
// (e.g. "http://ollama:11434") and model.
func NewOllama(endpoint, model string) *Ollama {
	return &Ollama{
		endpoint: endpoint,
		model:    model,
		httpClient: &http.Client{
			// Generation can be slow on CPU; deadlines come from the
			// caller's context.
			Timeout: 10 * time.Minute,
		},
	}
}

// Name returns the provider identifier.
func (o *Ollama) Name() string {
	return ollamaProviderName
}

// Model returns the configured model name.
func (o *Ollama) Model() string {
	return o.model
}

// ollamaRequest is the /api/generate wire format.
type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// ollamaChunk is one NDJSON line of a streamed response.
type ollamaChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// Stream generates tokens over Ollama's NDJSON streaming protocol.
func (o *Ollama) Stream(ctx context.Context, req Request) (<-chan string, <-chan error) {
	tokens := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(tokens)
		defer close(errs)

		payload, err := json.Marshal(ollamaRequest{
			Model:  o.model,
			Prompt: req.Prompt,
			System: req.System,
			Stream: true,
			Options: ollamaOptions{
				Temperature: req.Temperature,
				NumPredict:  req.MaxTokens,
			},
		})
		if err != nil {
			errs <- fmt.Errorf("failed to encode generate request; %w", err)
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint+"/api/generate", bytes.NewReader(payload))
		if err != nil {
			errs <- fmt.Errorf("failed to create generate request; %w", err)
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := o.httpClient.Do(httpReq)
		if err != nil {
			errs <- fmt.Errorf("failed to reach ollama; %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			errs <- fmt.Errorf("ollama returned %d: %s", resp.StatusCode, string(data))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}

			var chunk ollamaChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				errs <- fmt.Errorf("failed to decode ollama response line; %w", err)
				return
			}
			if chunk.Error != "" {
				errs <- fmt.Errorf("ollama error: %s", chunk.Error)
				return
			}

			if chunk.Response != "" {
				select {
				case tokens <- chunk.Response:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}

			if chunk.Done {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			errs <- fmt.Errorf("failed to read ollama stream; %w", err)
		}
	}()

	return tokens, errs
}

// Complete runs a completion to the end and returns the full text.
func (o *Ollama) Complete(ctx context.Context, req Request) (string, error) {
	return collect(ctx, o, req)
}

// Healthy checks Ollama reachability.
func (o *Ollama) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.endpoint+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request; %w", err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable; %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health returned %d", resp.StatusCode)
	}
	return nil
}

var _ LLM = (*Ollama)(nil)
