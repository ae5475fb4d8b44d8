package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nicozefrench/diveteacher/internal/config"
)

func TestOllamaStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = w.Write([]byte(
			`{"response":"No","done":false}` + "\n" +
				`{"response":" decompression","done":false}` + "\n" +
				`{"response":" limits.","done":true}` + "\n"))
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "qwen2.5:7b-instruct-q8_0")
	tokens, errs := o.Stream(context.Background(), Request{Prompt: "test"})

	var got []string
	for tok := range tokens {
		got = append(got, tok)
	}
	if err := <-errs; err != nil {
		t.Fatalf("stream error: %v", err)
	}

	if strings.Join(got, "") != "No decompression limits." {
		t.Errorf("tokens = %q", got)
	}
}

func TestOllamaStreamReportsModelError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"model not found"}` + "\n"))
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "missing")
	tokens, errs := o.Stream(context.Background(), Request{Prompt: "test"})

	for range tokens {
	}
	err := <-errs
	if err == nil || !strings.Contains(err.Error(), "model not found") {
		t.Errorf("err = %v, want model not found", err)
	}
}

func TestOllamaComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(
			`{"response":"4","done":false}` + "\n" +
				`{"response":"","done":true}` + "\n"))
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "qwen2.5:7b-instruct-q8_0")
	got, err := o.Complete(context.Background(), Request{Prompt: "2+2?"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "4" {
		t.Errorf("Complete = %q, want 4", got)
	}
}

func TestAnthropicStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Anthropic-Version"); got != anthropicVersion {
			t.Errorf("version header = %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(
			"event: content_block_delta\n" +
				`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"Stay"}}` + "\n\n" +
				"event: content_block_delta\n" +
				`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":" calm"}}` + "\n\n" +
				"event: message_stop\n" +
				`data: {"type":"message_stop"}` + "\n\n"))
	}))
	defer srv.Close()

	a := NewAnthropic("key", "claude-sonnet-4-5")
	a.endpoint = srv.URL

	tokens, errs := a.Stream(context.Background(), Request{Prompt: "test", MaxTokens: 100})

	var got []string
	for tok := range tokens {
		got = append(got, tok)
	}
	if err := <-errs; err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if strings.Join(got, "") != "Stay calm" {
		t.Errorf("tokens = %q", got)
	}
}

func TestNewFactory(t *testing.T) {
	tests := []struct {
		provider string
		wantErr  bool
	}{
		{"ollama", false},
		{"openai", false},
		{"anthropic", false},
		{"gemini", true},
	}

	for _, tt := range tests {
		_, err := New(config.LLMConfig{Provider: tt.provider, Model: "m", Endpoint: "http://x"})
		if (err != nil) != tt.wantErr {
			t.Errorf("New(%s) err = %v, wantErr %v", tt.provider, err, tt.wantErr)
		}
	}
}
