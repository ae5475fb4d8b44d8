package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicProviderName = "anthropic"
	anthropicEndpoint     = "https://api.anthropic.com/v1/messages"
	anthropicVersion      = "2023-06-01"
)

// Anthropic streams completions from the Anthropic messages API.
type Anthropic struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

// NewAnthropic creates an Anthropic provider.
func NewAnthropic(apiKey, model string) *Anthropic {
	return &Anthropic{
		apiKey:   apiKey,
		model:    model,
		endpoint: anthropicEndpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}
}

// Name returns the provider identifier.
func (a *Anthropic) Name() string {
	return anthropicProviderName
}

// Model returns the configured model name.
func (a *Anthropic) Model() string {
	return a.model
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Stream      bool               `json:"stream"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicEvent is the subset of SSE event payloads we read.
type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Stream generates tokens over the Anthropic SSE protocol.
func (a *Anthropic) Stream(ctx context.Context, req Request) (<-chan string, <-chan error) {
	tokens := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(tokens)
		defer close(errs)

		maxTokens := req.MaxTokens
		if maxTokens == 0 {
			maxTokens = 2000
		}

		payload, err := json.Marshal(anthropicRequest{
			Model:       a.model,
			MaxTokens:   maxTokens,
			Temperature: req.Temperature,
			System:      req.System,
			Stream:      true,
			Messages: []anthropicMessage{
				{Role: "user", Content: req.Prompt},
			},
		})
		if err != nil {
			errs <- fmt.Errorf("failed to encode messages request; %w", err)
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
		if err != nil {
			errs <- fmt.Errorf("failed to create messages request; %w", err)
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("X-Api-Key", a.apiKey)
		httpReq.Header.Set("Anthropic-Version", anthropicVersion)

		resp, err := a.httpClient.Do(httpReq)
		if err != nil {
			errs <- fmt.Errorf("failed to reach anthropic; %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			errs <- fmt.Errorf("anthropic returned %d: %s", resp.StatusCode, string(data))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}

			var event anthropicEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
				continue
			}

			switch event.Type {
			case "content_block_delta":
				if event.Delta.Text == "" {
					continue
				}
				select {
				case tokens <- event.Delta.Text:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			case "error":
				errs <- fmt.Errorf("anthropic error: %s", event.Error.Message)
				return
			case "message_stop":
				return
			}
		}

		if err := scanner.Err(); err != nil {
			errs <- fmt.Errorf("failed to read anthropic stream; %w", err)
		}
	}()

	return tokens, errs
}

// Complete runs a completion to the end and returns the full text.
func (a *Anthropic) Complete(ctx context.Context, req Request) (string, error) {
	return collect(ctx, a, req)
}

var _ LLM = (*Anthropic)(nil)
