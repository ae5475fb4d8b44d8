// Package rag assembles retrieval context and generates grounded,
// citation-bearing answers over the knowledge graph.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nicozefrench/diveteacher/internal/graphstore"
	"github.com/nicozefrench/diveteacher/internal/llm"
	"github.com/nicozefrench/diveteacher/internal/metrics"
)

// DefaultTopK is the number of facts placed in the answer context.
const DefaultTopK = 5

// DefaultMultiplier widens retrieval when a reranker narrows it back.
const DefaultMultiplier = 4

// Searcher is the retrieval side of the graph store.
type Searcher interface {
	SearchFacts(ctx context.Context, question string, limit int, groupIDs []string) ([]graphstore.Fact, error)
}

// Reranker reorders candidates by cross-encoder relevance.
type Reranker interface {
	Rerank(ctx context.Context, question string, candidates []graphstore.Fact, k int) []graphstore.Fact
}

// Engine answers questions over the knowledge graph.
type Engine struct {
	searcher   Searcher
	reranker   Reranker
	llm        llm.LLM
	topK       int
	multiplier int

	defaultTemperature float64
	defaultMaxTokens   int

	logger *slog.Logger
}

// Option configures the Engine.
type Option func(*Engine)

// WithReranker enables cross-encoder reranking.
func WithReranker(r Reranker) Option {
	return func(e *Engine) {
		e.reranker = r
	}
}

// WithTopK sets how many facts feed the answer context.
func WithTopK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithMultiplier sets the retrieval over-fetch factor used when
// reranking is enabled.
func WithMultiplier(m int) Option {
	return func(e *Engine) {
		if m > 0 {
			e.multiplier = m
		}
	}
}

// WithGenerationDefaults sets the temperature and token limit used
// when a query does not override them.
func WithGenerationDefaults(temperature float64, maxTokens int) Option {
	return func(e *Engine) {
		e.defaultTemperature = temperature
		if maxTokens > 0 {
			e.defaultMaxTokens = maxTokens
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an Engine over a searcher and a completion provider.
func New(searcher Searcher, provider llm.LLM, opts ...Option) *Engine {
	e := &Engine{
		searcher:           searcher,
		llm:                provider,
		topK:               DefaultTopK,
		multiplier:         DefaultMultiplier,
		defaultTemperature: 0.7,
		defaultMaxTokens:   2000,
		logger:             slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Answer is a non-streaming query result.
type Answer struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	NumSources int    `json:"num_sources"`
	Context    string `json:"context"`
	Reranked   bool   `json:"reranked"`
}

// Params are per-query generation overrides. Nil fields fall back to
// the engine's configured defaults.
type Params struct {
	Temperature *float64
	MaxTokens   *int
	GroupIDs    []string

	// UseReranking disables the configured reranker for this query when
	// set to false. Nil keeps the engine default.
	UseReranking *bool
}

// Retrieve runs hybrid search and optional reranking, returning the
// topK facts for the question. The bool reports whether the reranker
// actually reordered the candidates: it stays false when reranking is
// off, opted out of, or retrieval returned too few candidates to
// narrow.
func (e *Engine) Retrieve(ctx context.Context, question string, params Params) ([]graphstore.Fact, bool, error) {
	rerank := e.reranker != nil
	if params.UseReranking != nil {
		rerank = rerank && *params.UseReranking
	}

	fetch := e.topK
	if rerank {
		fetch = e.topK * e.multiplier
	}

	facts, err := e.searcher.SearchFacts(ctx, question, fetch, params.GroupIDs)
	if err != nil {
		return nil, false, fmt.Errorf("failed to search facts; %w", err)
	}

	// Nothing to narrow when retrieval already fits the context.
	if !rerank || len(facts) <= e.topK {
		if len(facts) > e.topK {
			facts = facts[:e.topK]
		}
		return facts, false, nil
	}

	return e.reranker.Rerank(ctx, question, facts, e.topK), true, nil
}

// Query retrieves context and generates one complete answer.
func (e *Engine) Query(ctx context.Context, question string, params Params) (*Answer, error) {
	start := time.Now()

	facts, reranked, err := e.Retrieve(ctx, question, params)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("complete", "error").Inc()
		return nil, err
	}

	contextText := formatContext(facts)
	out, err := e.llm.Complete(ctx, e.request(question, contextText, params))
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("complete", "error").Inc()
		return nil, fmt.Errorf("failed to generate answer; %w", err)
	}

	metrics.QueriesTotal.WithLabelValues("complete", "success").Inc()
	metrics.QueryDuration.Observe(time.Since(start).Seconds())

	return &Answer{
		Question:   question,
		Answer:     strings.TrimSpace(out),
		NumSources: len(facts),
		Context:    contextText,
		Reranked:   reranked,
	}, nil
}

// StreamResult carries a running answer stream plus the retrieval
// facts known before the first token.
type StreamResult struct {
	// Tokens closes when generation ends.
	Tokens <-chan string

	// Errs carries at most one error.
	Errs <-chan error

	NumSources int
	Reranked   bool
}

// Stream retrieves context and streams answer tokens.
func (e *Engine) Stream(ctx context.Context, question string, params Params) (*StreamResult, error) {
	start := time.Now()

	facts, reranked, err := e.Retrieve(ctx, question, params)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("stream", "error").Inc()
		return nil, err
	}

	tokens, errs := e.llm.Stream(ctx, e.request(question, formatContext(facts), params))

	out := make(chan string)
	outErrs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(outErrs)

		for tok := range tokens {
			select {
			case out <- tok:
			case <-ctx.Done():
				outErrs <- ctx.Err()
				return
			}
		}

		if err := <-errs; err != nil {
			metrics.QueriesTotal.WithLabelValues("stream", "error").Inc()
			outErrs <- err
			return
		}

		metrics.QueriesTotal.WithLabelValues("stream", "success").Inc()
		metrics.QueryDuration.Observe(time.Since(start).Seconds())
	}()

	return &StreamResult{
		Tokens:     out,
		Errs:       outErrs,
		NumSources: len(facts),
		Reranked:   reranked,
	}, nil
}

// request assembles one completion request, applying generation
// defaults where the query did not override them.
func (e *Engine) request(question, contextText string, params Params) llm.Request {
	req := llm.Request{
		System:      answerSystemPrompt,
		Prompt:      buildPrompt(question, contextText),
		Temperature: e.defaultTemperature,
		MaxTokens:   e.defaultMaxTokens,
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}
	return req
}

// Healthy runs a tiny completion to verify the LLM responds.
func (e *Engine) Healthy(ctx context.Context) error {
	_, err := e.llm.Complete(ctx, llm.Request{
		Prompt:    "Reply with the single word: ok",
		MaxTokens: 5,
	})
	return err
}
