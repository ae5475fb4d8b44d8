package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewDefaultConfigValidates(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := Validate(&cfg); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"empty bind", func(c *Config) { c.Server.Bind = "" }, "server.bind"},
		{"zero max size", func(c *Config) { c.Uploads.MaxSizeMB = 0 }, "uploads.max_size_mb"},
		{"no extensions", func(c *Config) { c.Uploads.Extensions = nil }, "uploads.extensions"},
		{"unknown strategy", func(c *Config) { c.Chunking.Strategy = "semantic" }, "chunking.strategy"},
		{"negative overlap", func(c *Config) { c.Chunking.OverlapChars = -1 }, "chunking.overlap_chars"},
		{"buffer above one", func(c *Config) { c.Ingestion.SafetyBuffer = 1.5 }, "ingestion.safety_buffer"},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "bedrock" }, "llm.provider"},
		{"zero top_k", func(c *Config) { c.RAG.TopK = 0 }, "rag.top_k"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(&cfg)

			err := Validate(&cfg)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not mention field %q", err.Error(), tt.field)
			}
		})
	}
}

func TestValidateCollectsMultipleErrors(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Server.Port = 0
	cfg.Graph.Name = ""

	err := Validate(&cfg)
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}

	verrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(verrs) != 2 {
		t.Errorf("expected 2 errors, got %d: %v", len(verrs), verrs)
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
log_level: debug
server:
  port: 9000
chunking:
  strategy: recursive
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q, want debug", cfg.LogLevel)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("server.port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Chunking.Strategy != "recursive" {
		t.Errorf("chunking.strategy = %q, want recursive", cfg.Chunking.Strategy)
	}

	// Values the file does not set keep their defaults.
	if cfg.Graph.Port != DefaultGraphPort {
		t.Errorf("graph.port = %d, want default %d", cfg.Graph.Port, DefaultGraphPort)
	}
	if cfg.Ingestion.TokensPerMin != DefaultIngestionTokensPerMin {
		t.Errorf("ingestion.tokens_per_min = %d, want default %d",
			cfg.Ingestion.TokensPerMin, DefaultIngestionTokensPerMin)
	}
}

func TestLoadFromPathRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
chunking:
  strategy: nosuch
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFromPath(path); err == nil {
		t.Fatal("expected error for invalid strategy, got nil")
	}
}

func TestWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := NewDefaultConfig()
	cfg.Server.Port = 8123
	if err := Write(&cfg, path); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath after Write failed: %v", err)
	}
	if loaded.Server.Port != 8123 {
		t.Errorf("server.port = %d, want 8123", loaded.Server.Port)
	}
	if loaded.Graph.Name != DefaultGraphName {
		t.Errorf("graph.name = %q, want %q", loaded.Graph.Name, DefaultGraphName)
	}
}
