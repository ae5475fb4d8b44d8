// Package converter turns uploaded documents into markdown plus a
// structural element tree via an external docling conversion service.
package converter

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// Converter converts a document file into markdown and structure.
type Converter interface {
	// Name returns the converter's identifier.
	Name() string

	// Convert converts the file at path. The returned Document carries
	// the markdown export and, when available, the element tree.
	Convert(ctx context.Context, path string) (*Document, error)

	// Warmup primes the conversion backend so the first real upload
	// does not absorb model-load latency.
	Warmup(ctx context.Context) error

	// Healthy reports whether the conversion backend is reachable.
	Healthy(ctx context.Context) error
}

// Pool wraps a Converter with bounded concurrency and a per-document
// timeout. Conversion is CPU-bound on the backend; the pool keeps
// concurrent requests from starving it.
type Pool struct {
	inner   Converter
	slots   chan struct{}
	timeout time.Duration
	logger  *slog.Logger
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithTimeout sets the per-document conversion timeout.
func WithTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		p.timeout = d
	}
}

// WithLogger sets the logger for the pool.
func WithLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) {
		p.logger = logger
	}
}

// NewPool creates a conversion pool with the given number of workers.
func NewPool(inner Converter, workers int, opts ...PoolOption) *Pool {
	if workers < 1 {
		workers = 1
	}

	p := &Pool{
		inner:   inner,
		slots:   make(chan struct{}, workers),
		timeout: 15 * time.Minute,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Name returns the converter's identifier.
func (p *Pool) Name() string {
	return p.inner.Name()
}

// Convert acquires a worker slot and converts with the pool timeout.
func (p *Pool) Convert(ctx context.Context, path string) (*Document, error) {
	select {
	case p.slots <- struct{}{}:
		defer func() { <-p.slots }()
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to acquire conversion slot; %w", ctx.Err())
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	doc, err := p.inner.Convert(ctx, path)
	if err != nil {
		return nil, err
	}

	p.logger.Info("document converted",
		"file", filepath.Base(path),
		"pages", doc.Pages,
		"tables", doc.Tables,
		"pictures", doc.Pictures,
		"duration", time.Since(start).Round(time.Millisecond))

	return doc, nil
}

// Warmup primes the backend through the pool.
func (p *Pool) Warmup(ctx context.Context) error {
	return p.inner.Warmup(ctx)
}

// Healthy reports backend reachability.
func (p *Pool) Healthy(ctx context.Context) error {
	return p.inner.Healthy(ctx)
}

var _ Converter = (*Pool)(nil)

// SupportsPreflight reports whether the file format has a local
// preflight check before conversion.
func SupportsPreflight(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
