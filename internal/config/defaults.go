package config

import "github.com/spf13/viper"

// Default configuration values.
const (
	DefaultLogLevel = "info"
	DefaultLogFile  = "./data/logs/diveteacher.log"

	DefaultServerPort            = 8000
	DefaultServerBind            = "0.0.0.0"
	DefaultServerShutdownTimeout = 30 // seconds

	DefaultUploadsDir       = "./data/uploads"
	DefaultUploadsMaxSizeMB = 50

	DefaultConversionEndpoint = "http://docling:5001"
	DefaultConversionWorkers  = 2
	DefaultConversionTimeout  = 900 // seconds

	DefaultChunkingStrategy     = "hybrid"
	DefaultChunkingMaxTokens    = 3000
	DefaultChunkingOverlapChars = 800
	DefaultChunkingMinTokens    = 64

	DefaultIngestionEpisodeTimeout = 120 // seconds
	DefaultIngestionTokenEstimate  = 3000
	DefaultIngestionWindowSeconds  = 60
	DefaultIngestionTokensPerMin   = 4_000_000
	DefaultIngestionSafetyBuffer   = 0.80

	DefaultQueueInterDocumentDelay = 60 // seconds
	DefaultQueueHistoryLimit       = 50

	DefaultGraphHost          = "falkordb"
	DefaultGraphPort          = 6379
	DefaultGraphName          = "diveteacher"
	DefaultGraphPasswordEnv   = "FALKORDB_PASSWORD"
	DefaultGraphMaxRetries    = 3
	DefaultGraphRetryDelayMs  = 500
	DefaultGraphQueryTimeoutS = 60

	DefaultLLMProvider    = "ollama"
	DefaultLLMModel       = "qwen2.5:7b-instruct-q8_0"
	DefaultLLMEndpoint    = "http://ollama:11434"
	DefaultLLMAPIKeyEnv   = "OPENAI_API_KEY"
	DefaultLLMTemperature = 0.7
	DefaultLLMMaxTokens   = 2000

	DefaultEmbeddingsEndpoint   = "http://ollama:11434/v1"
	DefaultEmbeddingsModel      = "nomic-embed-text"
	DefaultEmbeddingsDimensions = 768
	DefaultEmbeddingsAPIKeyEnv  = "OPENAI_API_KEY"

	DefaultRerankerEnabled    = true
	DefaultRerankerEndpoint   = "http://reranker:8080"
	DefaultRerankerModel      = "cross-encoder/ms-marco-MiniLM-L-6-v2"
	DefaultRerankerMultiplier = 4
	DefaultRerankerTimeout    = 30 // seconds

	DefaultRAGTopK = 5

	DefaultStatusCleanupMaxAge   = 24 // hours
	DefaultStatusCleanupInterval = 60 // minutes

	DefaultExportDir = "./data/exports"
)

// DefaultUploadExtensions lists the document formats accepted for upload.
var DefaultUploadExtensions = []string{".pdf", ".pptx", ".docx", ".ppt", ".doc"}

// DefaultCORSOrigins lists the origins allowed by the HTTP API.
var DefaultCORSOrigins = []string{"http://localhost:3000"}

// NewDefaultConfig returns a Config populated with all default values.
func NewDefaultConfig() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		LogFile:  DefaultLogFile,
		Server: ServerConfig{
			Port:            DefaultServerPort,
			Bind:            DefaultServerBind,
			ShutdownTimeout: DefaultServerShutdownTimeout,
			CORSOrigins:     append([]string(nil), DefaultCORSOrigins...),
		},
		Uploads: UploadsConfig{
			Dir:        DefaultUploadsDir,
			MaxSizeMB:  DefaultUploadsMaxSizeMB,
			Extensions: append([]string(nil), DefaultUploadExtensions...),
		},
		Conversion: ConversionConfig{
			Endpoint: DefaultConversionEndpoint,
			Workers:  DefaultConversionWorkers,
			Timeout:  DefaultConversionTimeout,
			Warmup:   true,
		},
		Chunking: ChunkingConfig{
			Strategy:     DefaultChunkingStrategy,
			MaxTokens:    DefaultChunkingMaxTokens,
			OverlapChars: DefaultChunkingOverlapChars,
			MinTokens:    DefaultChunkingMinTokens,
		},
		Ingestion: IngestionConfig{
			EpisodeTimeout: DefaultIngestionEpisodeTimeout,
			TokenEstimate:  DefaultIngestionTokenEstimate,
			WindowSeconds:  DefaultIngestionWindowSeconds,
			TokensPerMin:   DefaultIngestionTokensPerMin,
			SafetyBuffer:   DefaultIngestionSafetyBuffer,
		},
		Queue: QueueConfig{
			InterDocumentDelay: DefaultQueueInterDocumentDelay,
			HistoryLimit:       DefaultQueueHistoryLimit,
		},
		Graph: GraphConfig{
			Host:          DefaultGraphHost,
			Port:          DefaultGraphPort,
			Name:          DefaultGraphName,
			PasswordEnv:   DefaultGraphPasswordEnv,
			MaxRetries:    DefaultGraphMaxRetries,
			RetryDelayMs:  DefaultGraphRetryDelayMs,
			QueryTimeoutS: DefaultGraphQueryTimeoutS,
		},
		LLM: LLMConfig{
			Provider:    DefaultLLMProvider,
			Model:       DefaultLLMModel,
			Endpoint:    DefaultLLMEndpoint,
			APIKeyEnv:   DefaultLLMAPIKeyEnv,
			Temperature: DefaultLLMTemperature,
			MaxTokens:   DefaultLLMMaxTokens,
		},
		Embeddings: EmbeddingsConfig{
			Endpoint:   DefaultEmbeddingsEndpoint,
			Model:      DefaultEmbeddingsModel,
			Dimensions: DefaultEmbeddingsDimensions,
			APIKeyEnv:  DefaultEmbeddingsAPIKeyEnv,
		},
		Reranker: RerankerConfig{
			Enabled:    DefaultRerankerEnabled,
			Endpoint:   DefaultRerankerEndpoint,
			Model:      DefaultRerankerModel,
			Multiplier: DefaultRerankerMultiplier,
			Timeout:    DefaultRerankerTimeout,
		},
		RAG: RAGConfig{
			TopK: DefaultRAGTopK,
		},
		Status: StatusConfig{
			CleanupMaxAge:   DefaultStatusCleanupMaxAge,
			CleanupInterval: DefaultStatusCleanupInterval,
		},
		Export: ExportConfig{
			Dir: DefaultExportDir,
		},
	}
}

// setViperDefaults registers all default configuration values with a viper instance.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_file", DefaultLogFile)

	// Server defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.bind", DefaultServerBind)
	v.SetDefault("server.shutdown_timeout", DefaultServerShutdownTimeout)
	v.SetDefault("server.cors_origins", DefaultCORSOrigins)

	// Uploads defaults
	v.SetDefault("uploads.dir", DefaultUploadsDir)
	v.SetDefault("uploads.max_size_mb", DefaultUploadsMaxSizeMB)
	v.SetDefault("uploads.extensions", DefaultUploadExtensions)

	// Conversion defaults
	v.SetDefault("conversion.endpoint", DefaultConversionEndpoint)
	v.SetDefault("conversion.workers", DefaultConversionWorkers)
	v.SetDefault("conversion.timeout", DefaultConversionTimeout)
	v.SetDefault("conversion.warmup", true)

	// Chunking defaults
	v.SetDefault("chunking.strategy", DefaultChunkingStrategy)
	v.SetDefault("chunking.max_tokens", DefaultChunkingMaxTokens)
	v.SetDefault("chunking.overlap_chars", DefaultChunkingOverlapChars)
	v.SetDefault("chunking.min_tokens", DefaultChunkingMinTokens)

	// Ingestion defaults
	v.SetDefault("ingestion.episode_timeout", DefaultIngestionEpisodeTimeout)
	v.SetDefault("ingestion.token_estimate", DefaultIngestionTokenEstimate)
	v.SetDefault("ingestion.window_seconds", DefaultIngestionWindowSeconds)
	v.SetDefault("ingestion.tokens_per_min", DefaultIngestionTokensPerMin)
	v.SetDefault("ingestion.safety_buffer", DefaultIngestionSafetyBuffer)

	// Queue defaults
	v.SetDefault("queue.inter_document_delay", DefaultQueueInterDocumentDelay)
	v.SetDefault("queue.history_limit", DefaultQueueHistoryLimit)

	// Graph defaults
	v.SetDefault("graph.host", DefaultGraphHost)
	v.SetDefault("graph.port", DefaultGraphPort)
	v.SetDefault("graph.name", DefaultGraphName)
	v.SetDefault("graph.password_env", DefaultGraphPasswordEnv)
	v.SetDefault("graph.max_retries", DefaultGraphMaxRetries)
	v.SetDefault("graph.retry_delay_ms", DefaultGraphRetryDelayMs)
	v.SetDefault("graph.query_timeout_s", DefaultGraphQueryTimeoutS)

	// LLM defaults
	v.SetDefault("llm.provider", DefaultLLMProvider)
	v.SetDefault("llm.model", DefaultLLMModel)
	v.SetDefault("llm.endpoint", DefaultLLMEndpoint)
	v.SetDefault("llm.api_key_env", DefaultLLMAPIKeyEnv)
	v.SetDefault("llm.temperature", DefaultLLMTemperature)
	v.SetDefault("llm.max_tokens", DefaultLLMMaxTokens)

	// Embeddings defaults
	v.SetDefault("embeddings.endpoint", DefaultEmbeddingsEndpoint)
	v.SetDefault("embeddings.model", DefaultEmbeddingsModel)
	v.SetDefault("embeddings.dimensions", DefaultEmbeddingsDimensions)
	v.SetDefault("embeddings.api_key_env", DefaultEmbeddingsAPIKeyEnv)

	// Reranker defaults
	v.SetDefault("reranker.enabled", DefaultRerankerEnabled)
	v.SetDefault("reranker.endpoint", DefaultRerankerEndpoint)
	v.SetDefault("reranker.model", DefaultRerankerModel)
	v.SetDefault("reranker.multiplier", DefaultRerankerMultiplier)
	v.SetDefault("reranker.timeout", DefaultRerankerTimeout)

	// RAG defaults
	v.SetDefault("rag.top_k", DefaultRAGTopK)

	// Status defaults
	v.SetDefault("status.cleanup_max_age", DefaultStatusCleanupMaxAge)
	v.SetDefault("status.cleanup_interval", DefaultStatusCleanupInterval)

	// Export defaults
	v.SetDefault("export.dir", DefaultExportDir)
}
