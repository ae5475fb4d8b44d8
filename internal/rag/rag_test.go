package rag

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nicozefrench/diveteacher/internal/graphstore"
	"github.com/nicozefrench/diveteacher/internal/llm"
)

type fakeSearcher struct {
	facts     []graphstore.Fact
	err       error
	lastLimit int
}

func (f *fakeSearcher) SearchFacts(ctx context.Context, question string, limit int, groupIDs []string) ([]graphstore.Fact, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit > len(f.facts) {
		limit = len(f.facts)
	}
	return f.facts[:limit], nil
}

type fakeReranker struct {
	called bool
}

func (f *fakeReranker) Rerank(ctx context.Context, question string, candidates []graphstore.Fact, k int) []graphstore.Fact {
	f.called = true
	// Reverse order so callers can observe the rerank happened.
	out := make([]graphstore.Fact, len(candidates))
	for i, c := range candidates {
		out[len(candidates)-1-i] = c
	}
	if k > len(out) {
		k = len(out)
	}
	return out[:k]
}

type fakeLLM struct {
	response   string
	err        error
	lastPrompt string
	lastSystem string
}

func (f *fakeLLM) Name() string  { return "fake" }
func (f *fakeLLM) Model() string { return "fake-model" }

func (f *fakeLLM) Stream(ctx context.Context, req llm.Request) (<-chan string, <-chan error) {
	f.lastPrompt = req.Prompt
	f.lastSystem = req.System

	tokens := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(tokens)
		defer close(errs)
		if f.err != nil {
			errs <- f.err
			return
		}
		for _, word := range strings.SplitAfter(f.response, " ") {
			tokens <- word
		}
	}()
	return tokens, errs
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.lastPrompt = req.Prompt
	f.lastSystem = req.System
	return f.response, f.err
}

func nFacts(n int) []graphstore.Fact {
	facts := make([]graphstore.Fact, n)
	for i := range facts {
		facts[i] = graphstore.Fact{
			UUID:     fmt.Sprintf("f%d", i),
			Fact:     fmt.Sprintf("Fact number %d.", i),
			Filename: "owd-manual.pdf",
			ValidAt:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		}
	}
	return facts
}

func TestRetrieveWithoutReranker(t *testing.T) {
	s := &fakeSearcher{facts: nFacts(10)}
	e := New(s, &fakeLLM{}, WithTopK(5))

	facts, reranked, err := e.Retrieve(context.Background(), "q", Params{})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if s.lastLimit != 5 {
		t.Errorf("search limit = %d, want 5 (no over-fetch without reranker)", s.lastLimit)
	}
	if len(facts) != 5 {
		t.Errorf("facts = %d, want 5", len(facts))
	}
	if reranked {
		t.Error("reranked = true without a reranker")
	}
}

func TestRetrieveOverFetchesForReranker(t *testing.T) {
	s := &fakeSearcher{facts: nFacts(20)}
	r := &fakeReranker{}
	e := New(s, &fakeLLM{}, WithTopK(5), WithMultiplier(3), WithReranker(r))

	facts, reranked, err := e.Retrieve(context.Background(), "q", Params{})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if s.lastLimit != 15 {
		t.Errorf("search limit = %d, want 15 (topK x multiplier)", s.lastLimit)
	}
	if !r.called {
		t.Error("reranker was not invoked")
	}
	if !reranked {
		t.Error("reranked = false after a rerank")
	}
	if len(facts) != 5 {
		t.Errorf("facts = %d, want 5 after rerank", len(facts))
	}
	// Reversal puts the last candidate first.
	if facts[0].UUID != "f14" {
		t.Errorf("first fact = %s, want f14 (rerank order)", facts[0].UUID)
	}
}

func TestRetrieveDefaultOverFetch(t *testing.T) {
	s := &fakeSearcher{facts: nFacts(30)}
	e := New(s, &fakeLLM{}, WithReranker(&fakeReranker{}))

	if _, _, err := e.Retrieve(context.Background(), "q", Params{}); err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if s.lastLimit != DefaultTopK*DefaultMultiplier {
		t.Errorf("search limit = %d, want %d", s.lastLimit, DefaultTopK*DefaultMultiplier)
	}
	if DefaultMultiplier != 4 {
		t.Errorf("default multiplier = %d, want 4", DefaultMultiplier)
	}
}

func TestRetrieveSkipsRerankWhenFewCandidates(t *testing.T) {
	s := &fakeSearcher{facts: nFacts(3)}
	r := &fakeReranker{}
	e := New(s, &fakeLLM{}, WithTopK(5), WithReranker(r))

	facts, reranked, err := e.Retrieve(context.Background(), "q", Params{})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if r.called {
		t.Error("reranker should be skipped when candidates fit topK")
	}
	if reranked {
		t.Error("reranked = true for a skipped rerank")
	}
	if len(facts) != 3 || facts[0].UUID != "f0" {
		t.Errorf("expected graph order preserved, got %v", facts)
	}
}

func TestRetrieveRerankingOptOut(t *testing.T) {
	s := &fakeSearcher{facts: nFacts(20)}
	r := &fakeReranker{}
	e := New(s, &fakeLLM{}, WithTopK(5), WithReranker(r))

	off := false
	facts, reranked, err := e.Retrieve(context.Background(), "q", Params{UseReranking: &off})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if s.lastLimit != 5 {
		t.Errorf("search limit = %d, want 5 (no over-fetch when opted out)", s.lastLimit)
	}
	if r.called || reranked {
		t.Error("reranker ran despite use_reranking=false")
	}
	if len(facts) != 5 || facts[0].UUID != "f0" {
		t.Errorf("expected graph order preserved, got %v", facts)
	}
}

func TestFormatContext(t *testing.T) {
	got := formatContext(nFacts(2))

	if !strings.Contains(got, "[Fact 1] Fact number 0.") {
		t.Errorf("missing first fact line:\n%s", got)
	}
	if !strings.Contains(got, "[Fact 2] Fact number 1.") {
		t.Errorf("missing second fact line:\n%s", got)
	}
	if !strings.Contains(got, "owd-manual.pdf") {
		t.Errorf("missing source provenance:\n%s", got)
	}
	if !strings.Contains(got, "2026-03-01") {
		t.Errorf("missing validity date:\n%s", got)
	}

	if formatContext(nil) != "" {
		t.Error("empty facts should produce empty context")
	}
}

func TestQueryAssemblesPrompt(t *testing.T) {
	s := &fakeSearcher{facts: nFacts(2)}
	provider := &fakeLLM{response: "Fact number 0 answers this [Fact 1]."}
	e := New(s, provider, WithTopK(5))

	ans, err := e.Query(context.Background(), "What is fact zero?", Params{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if ans.NumSources != 2 {
		t.Errorf("num_sources = %d, want 2", ans.NumSources)
	}
	if ans.Reranked {
		t.Error("reranked = true without a reranker")
	}
	if !strings.Contains(provider.lastPrompt, "Question: What is fact zero?") {
		t.Errorf("question missing from prompt:\n%s", provider.lastPrompt)
	}
	if !strings.Contains(provider.lastPrompt, "[Fact 1]") {
		t.Errorf("context missing from prompt:\n%s", provider.lastPrompt)
	}
	if !strings.Contains(provider.lastSystem, "ONLY the facts") {
		t.Errorf("system prompt missing grounding rule:\n%s", provider.lastSystem)
	}
}

func TestQueryEmptyContext(t *testing.T) {
	s := &fakeSearcher{}
	provider := &fakeLLM{response: "I don't have enough information in the knowledge base to answer that question."}
	e := New(s, provider)

	ans, err := e.Query(context.Background(), "What is the gas law?", Params{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if ans.NumSources != 0 {
		t.Errorf("num_sources = %d, want 0", ans.NumSources)
	}
	if !strings.Contains(provider.lastPrompt, "(no relevant facts found)") {
		t.Errorf("empty-context marker missing:\n%s", provider.lastPrompt)
	}
}

func TestStreamDeliversTokens(t *testing.T) {
	s := &fakeSearcher{facts: nFacts(1)}
	provider := &fakeLLM{response: "Equalize early and often."}
	e := New(s, provider)

	res, err := e.Stream(context.Background(), "How do I equalize?", Params{})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if res.NumSources != 1 {
		t.Errorf("num_sources = %d, want 1", res.NumSources)
	}
	if res.Reranked {
		t.Error("reranked = true without a reranker")
	}

	var b strings.Builder
	for tok := range res.Tokens {
		b.WriteString(tok)
	}
	if err := <-res.Errs; err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if b.String() != "Equalize early and often." {
		t.Errorf("streamed = %q", b.String())
	}
}

func TestStreamSurfacesGenerationError(t *testing.T) {
	s := &fakeSearcher{facts: nFacts(1)}
	provider := &fakeLLM{err: fmt.Errorf("model overloaded")}
	e := New(s, provider)

	res, err := e.Stream(context.Background(), "q", Params{})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	for range res.Tokens {
	}
	if err := <-res.Errs; err == nil || !strings.Contains(err.Error(), "overloaded") {
		t.Errorf("expected generation error, got %v", err)
	}
}

func TestStreamRetrievalError(t *testing.T) {
	s := &fakeSearcher{err: fmt.Errorf("graph down")}
	e := New(s, &fakeLLM{})

	if _, err := e.Stream(context.Background(), "q", Params{}); err == nil {
		t.Fatal("expected retrieval error")
	}
}
