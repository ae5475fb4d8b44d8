// Package reranker scores retrieval candidates with a cross-encoder
// service and reorders them by relevance to the question.
package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/nicozefrench/diveteacher/internal/graphstore"
	"github.com/nicozefrench/diveteacher/internal/metrics"
)

// DefaultTimeout bounds one rerank round trip. Cross-encoder scoring
// of a few dozen candidates completes in well under a second on CPU.
const DefaultTimeout = 10 * time.Second

// Reranker is an HTTP client for a text-embeddings-inference style
// /rerank endpoint.
type Reranker struct {
	endpoint string
	model    string
	client   *http.Client
	logger   *slog.Logger
}

// Option configures the Reranker.
type Option func(*Reranker)

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Reranker) {
		r.client.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reranker) {
		r.logger = logger
	}
}

// New creates a reranker client for the given endpoint and model.
func New(endpoint, model string, opts ...Option) *Reranker {
	r := &Reranker{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: DefaultTimeout},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Rerank scores the candidates against the question and returns the
// top k, best first. On any failure the original order is returned
// truncated to k, so retrieval degrades instead of erroring.
func (r *Reranker) Rerank(ctx context.Context, question string, candidates []graphstore.Fact, k int) []graphstore.Fact {
	if k > len(candidates) {
		k = len(candidates)
	}
	if len(candidates) == 0 {
		return candidates
	}

	scored, err := r.score(ctx, question, candidates)
	if err != nil {
		metrics.RerankerFallbacks.Inc()
		r.logger.Warn("reranker unavailable, keeping retrieval order",
			"model", r.model, "error", err)
		return candidates[:k]
	}

	return scored[:k]
}

func (r *Reranker) score(ctx context.Context, question string, candidates []graphstore.Fact) ([]graphstore.Fact, error) {
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Fact
	}

	body, err := json.Marshal(rerankRequest{Query: question, Texts: texts})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rerank returned %d: %s", resp.StatusCode, msg)
	}

	var results []rerankResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response; %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	out := make([]graphstore.Fact, 0, len(results))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(candidates) {
			return nil, fmt.Errorf("rerank returned out-of-range index %d", res.Index)
		}
		f := candidates[res.Index]
		f.Score = res.Score
		out = append(out, f)
	}

	if len(out) != len(candidates) {
		return nil, fmt.Errorf("rerank returned %d results for %d candidates", len(out), len(candidates))
	}

	return out, nil
}

// Healthy reports whether the reranker service responds.
func (r *Reranker) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
