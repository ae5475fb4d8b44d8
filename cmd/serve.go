package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nicozefrench/diveteacher/internal/chunker"
	"github.com/nicozefrench/diveteacher/internal/converter"
	"github.com/nicozefrench/diveteacher/internal/export"
	"github.com/nicozefrench/diveteacher/internal/graphstore"
	"github.com/nicozefrench/diveteacher/internal/llm"
	"github.com/nicozefrench/diveteacher/internal/pipeline"
	"github.com/nicozefrench/diveteacher/internal/queue"
	"github.com/nicozefrench/diveteacher/internal/rag"
	"github.com/nicozefrench/diveteacher/internal/ratelimit"
	"github.com/nicozefrench/diveteacher/internal/reranker"
	"github.com/nicozefrench/diveteacher/internal/server"
	"github.com/nicozefrench/diveteacher/internal/status"
	"github.com/nicozefrench/diveteacher/internal/validator"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the DiveTeacher backend service",
	Long: "Run the DiveTeacher backend service.\n\n" +
		"Starts the HTTP API, connects to FalkorDB, and begins accepting " +
		"document uploads and questions. The service shuts down gracefully " +
		"on SIGINT and SIGTERM, draining the document queue first.",
	Example: `  # Run with the default configuration
  diveteacher serve

  # Override the port via environment
  DIVETEACHER_SERVER_PORT=9000 diveteacher serve`,
	RunE: runServe,
}

func init() {
	diveteacherCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := logManager.Logger()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Answer generation and extraction share one provider.
	provider, err := llm.New(cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to create llm provider; %w", err)
	}
	embedder := llm.NewEmbedder(cfg.Embeddings)

	store := graphstore.New(
		graphstore.WithConfig(graphstore.Config{
			Host:           cfg.Graph.Host,
			Port:           cfg.Graph.Port,
			GraphName:      cfg.Graph.Name,
			Password:       cfg.Graph.Password(),
			MaxRetries:     cfg.Graph.MaxRetries,
			RetryDelay:     time.Duration(cfg.Graph.RetryDelayMs) * time.Millisecond,
			CommandTimeout: time.Duration(cfg.Graph.QueryTimeoutS) * time.Second,
		}),
		graphstore.WithExtractor(graphstore.NewLLMExtractor(provider)),
		graphstore.WithEmbedder(embedder),
		graphstore.WithLogger(logger),
	)
	if err := store.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = store.Stop(stopCtx)
	}()

	docling := converter.NewDoclingConverter(cfg.Conversion.Endpoint)
	pool := converter.NewPool(docling, cfg.Conversion.Workers,
		converter.WithTimeout(time.Duration(cfg.Conversion.Timeout)*time.Second),
		converter.WithLogger(logger),
	)

	if cfg.Conversion.Warmup {
		go func() {
			warmCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
			defer cancel()
			if err := pool.Warmup(warmCtx); err != nil {
				logger.Warn("conversion warmup failed", "error", err)
			} else {
				logger.Info("conversion backend warmed up")
			}
		}()
	}

	limiter := ratelimit.New(
		time.Duration(cfg.Ingestion.WindowSeconds)*time.Second,
		cfg.Ingestion.TokensPerMin,
		cfg.Ingestion.SafetyBuffer,
		ratelimit.WithLogger(logger),
	)

	registry := status.NewRegistry(status.WithLogger(logger))

	pipe := pipeline.New(
		validator.New(cfg.Uploads.Extensions, cfg.Uploads.MaxSizeMB),
		pool,
		store,
		limiter,
		registry,
		pipeline.WithChunking(cfg.Chunking.Strategy, chunker.Options{
			MaxTokens:    cfg.Chunking.MaxTokens,
			OverlapChars: cfg.Chunking.OverlapChars,
			MinTokens:    cfg.Chunking.MinTokens,
		}),
		pipeline.WithTokenEstimate(cfg.Ingestion.TokenEstimate),
		pipeline.WithEpisodeTimeout(time.Duration(cfg.Ingestion.EpisodeTimeout)*time.Second),
		pipeline.WithLogger(logger),
	)

	docQueue := queue.New(pipe,
		queue.WithCoolDown(time.Duration(cfg.Queue.InterDocumentDelay)*time.Second),
		queue.WithHistoryLimit(cfg.Queue.HistoryLimit),
		queue.WithLogger(logger),
	)

	engineOpts := []rag.Option{
		rag.WithTopK(cfg.RAG.TopK),
		rag.WithMultiplier(cfg.Reranker.Multiplier),
		rag.WithGenerationDefaults(cfg.LLM.Temperature, cfg.LLM.MaxTokens),
		rag.WithLogger(logger),
	}

	var rr *reranker.Reranker
	if cfg.Reranker.Enabled {
		rr = reranker.New(cfg.Reranker.Endpoint, cfg.Reranker.Model,
			reranker.WithTimeout(time.Duration(cfg.Reranker.Timeout)*time.Second),
			reranker.WithLogger(logger),
		)
		engineOpts = append(engineOpts, rag.WithReranker(rr))
	}

	engine := rag.New(store, provider, engineOpts...)
	exporter := export.New(cfg.Export.Dir, store, logger)

	srvOpts := []server.Option{
		server.WithConfig(cfg.Server, cfg.Uploads),
		server.WithRegistry(registry),
		server.WithQueue(docQueue),
		server.WithGraph(store),
		server.WithAnswerer(engine),
		server.WithExporter(exporter),
		server.WithLimiter(limiter),
		server.WithConverterHealth(pool.Healthy),
		server.WithLogger(logger),
	}
	if rr != nil {
		srvOpts = append(srvOpts, server.WithRerankerHealth(rr.Healthy))
	}
	srv := server.New(srvOpts...)

	if err := srv.Start(ctx); err != nil {
		return err
	}

	// Stale terminal statuses are swept on a timer.
	go func() {
		interval := time.Duration(cfg.Status.CleanupInterval) * time.Minute
		maxAge := time.Duration(cfg.Status.CleanupMaxAge) * time.Hour
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				registry.Cleanup(maxAge)
			case <-ctx.Done():
				return
			}
		}
	}()

	logger.Info("diveteacher started",
		"port", cfg.Server.Port,
		"graph", cfg.Graph.Name,
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model)

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("http server shutdown incomplete", "error", err)
	}
	if err := docQueue.Shutdown(shutdownCtx); err != nil {
		logger.Warn("queue did not drain before deadline", "error", err)
	}

	logger.Info("diveteacher stopped")
	return nil
}
