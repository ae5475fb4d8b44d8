package config

import "os"

// Config is the root configuration structure for the service.
type Config struct {
	LogLevel   string           `yaml:"log_level" mapstructure:"log_level"`
	LogFile    string           `yaml:"log_file" mapstructure:"log_file"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Uploads    UploadsConfig    `yaml:"uploads" mapstructure:"uploads"`
	Conversion ConversionConfig `yaml:"conversion" mapstructure:"conversion"`
	Chunking   ChunkingConfig   `yaml:"chunking" mapstructure:"chunking"`
	Ingestion  IngestionConfig  `yaml:"ingestion" mapstructure:"ingestion"`
	Queue      QueueConfig      `yaml:"queue" mapstructure:"queue"`
	Graph      GraphConfig      `yaml:"graph" mapstructure:"graph"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" mapstructure:"embeddings"`
	Reranker   RerankerConfig   `yaml:"reranker" mapstructure:"reranker"`
	RAG        RAGConfig        `yaml:"rag" mapstructure:"rag"`
	Status     StatusConfig     `yaml:"status" mapstructure:"status"`
	Export     ExportConfig     `yaml:"export" mapstructure:"export"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	Bind            string   `yaml:"bind" mapstructure:"bind"`
	ShutdownTimeout int      `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"` // seconds
	CORSOrigins     []string `yaml:"cors_origins,flow" mapstructure:"cors_origins"`
}

// UploadsConfig holds document upload configuration.
type UploadsConfig struct {
	Dir        string   `yaml:"dir" mapstructure:"dir"`
	MaxSizeMB  int      `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	Extensions []string `yaml:"extensions,flow" mapstructure:"extensions"`
}

// ConversionConfig holds document conversion configuration.
type ConversionConfig struct {
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	Workers  int    `yaml:"workers" mapstructure:"workers"`
	Timeout  int    `yaml:"timeout" mapstructure:"timeout"` // seconds, per document
	Warmup   bool   `yaml:"warmup" mapstructure:"warmup"`
}

// ChunkingConfig holds chunking strategy configuration.
type ChunkingConfig struct {
	Strategy     string `yaml:"strategy" mapstructure:"strategy"` // recursive | hybrid
	MaxTokens    int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	OverlapChars int    `yaml:"overlap_chars" mapstructure:"overlap_chars"`
	MinTokens    int    `yaml:"min_tokens" mapstructure:"min_tokens"`
}

// IngestionConfig holds graph ingestion and rate limit configuration.
type IngestionConfig struct {
	EpisodeTimeout int     `yaml:"episode_timeout" mapstructure:"episode_timeout"` // seconds, per chunk
	TokenEstimate  int     `yaml:"token_estimate" mapstructure:"token_estimate"`
	WindowSeconds  int     `yaml:"window_seconds" mapstructure:"window_seconds"`
	TokensPerMin   int     `yaml:"tokens_per_min" mapstructure:"tokens_per_min"`
	SafetyBuffer   float64 `yaml:"safety_buffer" mapstructure:"safety_buffer"`
}

// QueueConfig holds document queue configuration.
type QueueConfig struct {
	InterDocumentDelay int `yaml:"inter_document_delay" mapstructure:"inter_document_delay"` // seconds
	HistoryLimit       int `yaml:"history_limit" mapstructure:"history_limit"`
}

// GraphConfig holds FalkorDB graph database configuration.
type GraphConfig struct {
	Host          string `yaml:"host" mapstructure:"host"`
	Port          int    `yaml:"port" mapstructure:"port"`
	Name          string `yaml:"name" mapstructure:"name"`
	PasswordEnv   string `yaml:"password_env" mapstructure:"password_env"`
	MaxRetries    int    `yaml:"max_retries" mapstructure:"max_retries"`
	RetryDelayMs  int    `yaml:"retry_delay_ms" mapstructure:"retry_delay_ms"`
	QueryTimeoutS int    `yaml:"query_timeout_s" mapstructure:"query_timeout_s"`
}

// Password resolves the graph database password from the environment.
func (c *GraphConfig) Password() string {
	return os.Getenv(c.PasswordEnv)
}

// LLMConfig holds answer-generation provider configuration.
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // ollama | openai | anthropic
	Model       string  `yaml:"model" mapstructure:"model"`
	Endpoint    string  `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey      *string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	APIKeyEnv   string  `yaml:"api_key_env" mapstructure:"api_key_env"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ResolveAPIKey returns the API key from config or falls back to environment variable.
func (c *LLMConfig) ResolveAPIKey() string {
	if c.APIKey != nil && *c.APIKey != "" {
		return *c.APIKey
	}
	return os.Getenv(c.APIKeyEnv)
}

// EmbeddingsConfig holds embeddings provider configuration.
type EmbeddingsConfig struct {
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	Model      string  `yaml:"model" mapstructure:"model"`
	Dimensions int     `yaml:"dimensions" mapstructure:"dimensions"`
	APIKey     *string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	APIKeyEnv  string  `yaml:"api_key_env" mapstructure:"api_key_env"`
}

// ResolveAPIKey returns the API key from config or falls back to environment variable.
func (c *EmbeddingsConfig) ResolveAPIKey() string {
	if c.APIKey != nil && *c.APIKey != "" {
		return *c.APIKey
	}
	return os.Getenv(c.APIKeyEnv)
}

// RerankerConfig holds cross-encoder reranker configuration.
type RerankerConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string `yaml:"endpoint" mapstructure:"endpoint"`
	Model      string `yaml:"model" mapstructure:"model"`
	Multiplier int    `yaml:"multiplier" mapstructure:"multiplier"`
	Timeout    int    `yaml:"timeout" mapstructure:"timeout"` // seconds
}

// RAGConfig holds retrieval configuration.
type RAGConfig struct {
	TopK int `yaml:"top_k" mapstructure:"top_k"`
}

// StatusConfig holds processing status registry configuration.
type StatusConfig struct {
	CleanupMaxAge   int `yaml:"cleanup_max_age" mapstructure:"cleanup_max_age"`   // hours
	CleanupInterval int `yaml:"cleanup_interval" mapstructure:"cleanup_interval"` // minutes
}

// ExportConfig holds graph export configuration.
type ExportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}
