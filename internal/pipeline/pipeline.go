// Package pipeline orchestrates document processing: validation,
// conversion, chunking, and rate-limited graph ingestion.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nicozefrench/diveteacher/internal/chunker"
	"github.com/nicozefrench/diveteacher/internal/converter"
	"github.com/nicozefrench/diveteacher/internal/graphstore"
	"github.com/nicozefrench/diveteacher/internal/metrics"
	"github.com/nicozefrench/diveteacher/internal/status"
)

// Progress floors per stage. Ingestion fills 75..100 per chunk.
const (
	progressValidation = 0
	progressConversion = 10
	progressChunking   = 50
	progressIngestion  = 75
)

// DefaultEpisodeTimeout bounds one chunk's extraction and writes.
const DefaultEpisodeTimeout = 120 * time.Second

// Validator checks an uploaded file before conversion.
type Validator interface {
	Validate(path string) error
}

// Ingester writes one chunk into the knowledge graph.
type Ingester interface {
	AddEpisode(ctx context.Context, in graphstore.EpisodeInput) (*graphstore.IngestResult, error)
	CountsForUpload(ctx context.Context, uploadID string) (entities, relationships int, err error)
}

// Limiter gates ingestion on the provider token budget.
type Limiter interface {
	WaitForBudget(ctx context.Context, estimate int) error
	Record(tokens int)
}

// Pipeline processes uploaded documents end to end.
type Pipeline struct {
	validator Validator
	converter converter.Converter
	ingester  Ingester
	limiter   Limiter
	registry  *status.Registry

	chunkOpts      chunker.Options
	strategy       string
	tokenEstimate  int
	episodeTimeout time.Duration
	logger         *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithChunking sets the chunking strategy and sizing.
func WithChunking(strategy string, opts chunker.Options) Option {
	return func(p *Pipeline) {
		p.strategy = strategy
		p.chunkOpts = opts
	}
}

// WithTokenEstimate sets the per-chunk token estimate used for budget
// waits when actual usage is unknown.
func WithTokenEstimate(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.tokenEstimate = n
		}
	}
}

// WithEpisodeTimeout bounds each chunk's ingestion.
func WithEpisodeTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.episodeTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a Pipeline.
func New(v Validator, c converter.Converter, ing Ingester, lim Limiter, reg *status.Registry, opts ...Option) *Pipeline {
	p := &Pipeline{
		validator:      v,
		converter:      c,
		ingester:       ing,
		limiter:        lim,
		registry:       reg,
		strategy:       "hybrid",
		tokenEstimate:  3000,
		episodeTimeout: DefaultEpisodeTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs the full pipeline for one upload. Failures mark the
// status failed and return the error; they never panic. The upload
// file is removed on every exit path. groupID scopes the written
// episodes for multi-tenant retrieval and may be empty.
func (p *Pipeline) Process(ctx context.Context, uploadID, path, filename, groupID string) error {
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			p.logger.Warn("failed to remove upload file", "path", path, "error", err)
		}
	}()

	logger := p.logger.With("upload_id", uploadID, "filename", filename)

	// Validation.
	p.registry.EnterStage(uploadID, status.StageValidation, progressValidation)
	stageStart := time.Now()
	if err := p.validator.Validate(path); err != nil {
		return p.fail(uploadID, status.StageValidation, stageStart, err)
	}
	p.endStage(uploadID, status.StageValidation, stageStart)

	// Conversion.
	p.registry.EnterStage(uploadID, status.StageConversion, progressConversion)
	stageStart = time.Now()
	doc, err := p.converter.Convert(ctx, path)
	if err != nil {
		return p.fail(uploadID, status.StageConversion, stageStart, err)
	}
	p.endStage(uploadID, status.StageConversion, stageStart)
	p.registry.SetDocumentInfo(uploadID, doc.Pages, doc.Tables, doc.Pictures)

	// Chunking.
	p.registry.EnterStage(uploadID, status.StageChunking, progressChunking)
	stageStart = time.Now()
	ch, err := chunker.ForStrategy(p.strategy)
	if err != nil {
		return p.fail(uploadID, status.StageChunking, stageStart, err)
	}

	opts := p.chunkOpts
	opts.Filename = filename
	opts.UploadID = uploadID

	chunks, err := ch.Chunk(ctx, doc, opts)
	if err != nil {
		return p.fail(uploadID, status.StageChunking, stageStart, err)
	}
	p.endStage(uploadID, status.StageChunking, stageStart)
	p.registry.SetChunkTotal(uploadID, len(chunks))
	logger.Info("document chunked", "strategy", p.strategy, "chunks", len(chunks))

	// Ingestion.
	p.registry.EnterStage(uploadID, status.StageIngestion, progressIngestion)
	stageStart = time.Now()
	if err := p.ingest(ctx, uploadID, filename, groupID, chunks, logger); err != nil {
		return p.fail(uploadID, status.StageIngestion, stageStart, err)
	}
	p.endStage(uploadID, status.StageIngestion, stageStart)

	if entities, relationships, err := p.ingester.CountsForUpload(ctx, uploadID); err == nil {
		p.registry.SetGraphCounts(uploadID, entities, relationships)
	} else {
		logger.Warn("failed to read graph counts after ingestion", "error", err)
	}

	p.registry.MarkCompleted(uploadID)
	metrics.DocumentsTotal.WithLabelValues("success").Inc()
	logger.Info("document processed", "chunks", len(chunks))
	return nil
}

// ingest writes chunks sequentially under the token budget. A failed
// chunk is logged and skipped so one bad extraction does not lose the
// whole document. Context cancellation stops the loop.
func (p *Pipeline) ingest(ctx context.Context, uploadID, filename, groupID string, chunks []chunker.Chunk, logger *slog.Logger) error {
	validAt := time.Now()

	for _, c := range chunks {
		if err := p.limiter.WaitForBudget(ctx, p.tokenEstimate); err != nil {
			return fmt.Errorf("failed waiting for token budget; %w", err)
		}

		episodeCtx, cancel := context.WithTimeout(ctx, p.episodeTimeout)
		result, err := p.ingester.AddEpisode(episodeCtx, graphstore.EpisodeInput{
			UploadID:   uploadID,
			Filename:   filename,
			ChunkIndex: c.Metadata.ChunkIndex,
			GroupID:    groupID,
			Content:    c.ContextualizedText,
			ValidAt:    validAt,
		})
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.ChunksIngested.WithLabelValues("failed").Inc()
			logger.Warn("chunk ingestion failed, skipping",
				"chunk_index", c.Metadata.ChunkIndex, "error", err)
			p.registry.ChunkIngested(uploadID, false)
			continue
		}

		p.limiter.Record(result.TokensUsed)
		metrics.ChunksIngested.WithLabelValues("success").Inc()
		p.registry.ChunkIngested(uploadID, true)
	}

	return nil
}

// endStage records a finished stage's duration on the status and in
// the metrics.
func (p *Pipeline) endStage(uploadID string, stage status.Stage, start time.Time) {
	elapsed := time.Since(start)
	p.registry.RecordStageDuration(uploadID, stage, elapsed)
	metrics.StageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
}

// fail records the stage duration and marks the status failed.
func (p *Pipeline) fail(uploadID string, stage status.Stage, stageStart time.Time, err error) error {
	p.registry.RecordStageDuration(uploadID, stage, time.Since(stageStart))
	p.registry.MarkFailed(uploadID, stage, err)
	metrics.DocumentsTotal.WithLabelValues("failed").Inc()
	metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(stageStart).Seconds())
	p.logger.Error("pipeline stage failed",
		"upload_id", uploadID, "stage", stage, "error", err)
	return fmt.Errorf("%s failed; %w", stage, err)
}
