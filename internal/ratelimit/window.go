// Package ratelimit provides a token-aware sliding window limiter for
// graph ingestion. The extraction provider enforces an input-token
// budget per minute; the limiter keeps the service safely under it.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nicozefrench/diveteacher/internal/metrics"
)

// reEvalMargin is added to every computed delay so the oldest entry has
// actually expired when the window is re-checked.
const reEvalMargin = time.Second

// entry is one recorded token usage with its timestamp.
type entry struct {
	at     time.Time
	tokens int
}

// TokenWindow is a sliding-window token budget limiter.
type TokenWindow struct {
	window       time.Duration
	limit        int // tokens per window, before buffer
	safetyBuffer float64

	mu      sync.Mutex
	history []entry

	ingestions  int64
	totalTokens int64

	logger *slog.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

// Option configures a TokenWindow.
type Option func(*TokenWindow)

// WithLogger sets the logger for the limiter.
func WithLogger(logger *slog.Logger) Option {
	return func(w *TokenWindow) {
		w.logger = logger
	}
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(w *TokenWindow) {
		w.now = now
	}
}

// WithSleeper overrides the wait implementation. Used in tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(w *TokenWindow) {
		w.sleep = sleep
	}
}

// New creates a TokenWindow limiting to tokensPerMin*safetyBuffer
// tokens over the given window.
func New(window time.Duration, tokensPerMin int, safetyBuffer float64, opts ...Option) *TokenWindow {
	w := &TokenWindow{
		window:       window,
		limit:        tokensPerMin,
		safetyBuffer: safetyBuffer,
		logger:       slog.Default(),
		now:          time.Now,
	}
	w.sleep = func(ctx context.Context, d time.Duration) error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// EffectiveLimit returns the usable token budget per window.
func (w *TokenWindow) EffectiveLimit() int {
	return int(float64(w.limit) * w.safetyBuffer)
}

// WaitForBudget blocks until estimate tokens fit in the trailing
// window. Returns early with the context error on cancellation.
func (w *TokenWindow) WaitForBudget(ctx context.Context, estimate int) error {
	start := w.now()

	for {
		w.mu.Lock()
		now := w.now()
		w.prune(now)
		used := w.windowTokens()

		if used+estimate <= w.EffectiveLimit() {
			w.mu.Unlock()
			metrics.RateLimitWait.Observe(w.now().Sub(start).Seconds())
			return nil
		}

		delay := w.requiredDelay(now, used, estimate)
		w.mu.Unlock()

		w.logger.Info("waiting for ingestion token budget",
			"window_tokens", used,
			"estimate", estimate,
			"effective_limit", w.EffectiveLimit(),
			"delay", delay.Round(time.Millisecond))

		if err := w.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// requiredDelay walks the history oldest-first and returns the time
// until enough entries expire to fit estimate, plus a safety margin.
// Callers must hold the mutex.
func (w *TokenWindow) requiredDelay(now time.Time, used, estimate int) time.Duration {
	freed := 0
	for _, e := range w.history {
		freed += e.tokens
		if used-freed+estimate <= w.EffectiveLimit() {
			expiry := e.at.Add(w.window)
			return expiry.Sub(now) + reEvalMargin
		}
	}
	// Even an empty window cannot fit the estimate; wait one full
	// window and let the caller try again.
	return w.window + reEvalMargin
}

// Record adds actual token usage to the window.
func (w *TokenWindow) Record(tokens int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.prune(now)
	w.history = append(w.history, entry{at: now, tokens: tokens})
	w.ingestions++
	w.totalTokens += int64(tokens)

	metrics.TokensRecorded.Add(float64(tokens))
	metrics.WindowUtilization.Set(w.utilization())
}

// prune drops entries older than the window. Callers must hold the mutex.
func (w *TokenWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.history) && !w.history[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		w.history = append(w.history[:0], w.history[i:]...)
	}
}

// windowTokens sums the current window. Callers must hold the mutex.
func (w *TokenWindow) windowTokens() int {
	total := 0
	for _, e := range w.history {
		total += e.tokens
	}
	return total
}

// utilization returns window usage percent. Callers must hold the mutex.
func (w *TokenWindow) utilization() float64 {
	limit := w.EffectiveLimit()
	if limit == 0 {
		return 0
	}
	return float64(w.windowTokens()) / float64(limit) * 100
}

// Stats is a point-in-time snapshot of limiter state.
type Stats struct {
	IngestionCount        int64   `json:"ingestion_count"`
	TotalTokensUsed       int64   `json:"total_tokens_used"`
	CurrentWindowTokens   int     `json:"current_window_tokens"`
	RateLimitTokensPerMin int     `json:"rate_limit_tokens_per_min"`
	EffectiveLimitPerMin  int     `json:"effective_limit_tokens_per_min"`
	SafetyBufferPct       float64 `json:"safety_buffer_pct"`
	WindowUtilizationPct  float64 `json:"window_utilization_pct"`
	RateLimitWindowSec    float64 `json:"rate_limit_window_sec"`
}

// Stats returns a snapshot of limiter state.
func (w *TokenWindow) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(w.now())

	return Stats{
		IngestionCount:        w.ingestions,
		TotalTokensUsed:       w.totalTokens,
		CurrentWindowTokens:   w.windowTokens(),
		RateLimitTokensPerMin: w.limit,
		EffectiveLimitPerMin:  w.EffectiveLimit(),
		SafetyBufferPct:       w.safetyBuffer * 100,
		WindowUtilizationPct:  w.utilization(),
		RateLimitWindowSec:    w.window.Seconds(),
	}
}
