// Package metrics provides Prometheus metrics for the knowledge service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "diveteacher"
)

// Pipeline metrics track document processing.
var (
	// DocumentsTotal is the total number of documents processed by outcome.
	DocumentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "documents_total",
		Help:      "Total number of documents processed",
	}, []string{"outcome"})

	// StageDuration is a histogram of pipeline stage duration in seconds.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Pipeline stage duration in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 900},
	}, []string{"stage"})

	// ChunksIngested is the total number of chunks ingested by outcome.
	ChunksIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chunks_ingested_total",
		Help:      "Total number of chunks ingested into the graph",
	}, []string{"outcome"})
)

// Rate limiter metrics track ingestion token budget usage.
var (
	// TokensRecorded is the total number of tokens recorded against the window.
	TokensRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingestion_tokens_total",
		Help:      "Total number of tokens recorded by the ingestion rate limiter",
	})

	// RateLimitWait is a histogram of time spent waiting for token budget.
	RateLimitWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rate_limit_wait_seconds",
		Help:      "Time spent waiting for ingestion token budget",
		Buckets:   []float64{0.001, 0.1, 1, 5, 15, 30, 60, 120},
	})

	// WindowUtilization is the current rate limit window utilization percent.
	WindowUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "rate_limit_window_utilization_pct",
		Help:      "Current ingestion rate limit window utilization percent",
	})
)

// Queue metrics track the document queue state.
var (
	// QueueDepth is the number of documents waiting in the queue.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Number of documents waiting in the processing queue",
	})

	// QueueProcessing is 1 while a document is being processed.
	QueueProcessing = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_processing",
		Help:      "Whether a document is currently being processed",
	})
)

// Query metrics track RAG retrieval and answer generation.
var (
	// QueriesTotal is the total number of RAG queries by mode and outcome.
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queries_total",
		Help:      "Total number of RAG queries",
	}, []string{"mode", "outcome"})

	// QueryDuration is a histogram of end-to-end query duration in seconds.
	QueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "query_duration_seconds",
		Help:      "End-to-end RAG query duration in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	// RerankerFallbacks is the total number of rerank failures that fell
	// back to graph order.
	RerankerFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reranker_fallbacks_total",
		Help:      "Total number of rerank failures that fell back to graph order",
	})
)
