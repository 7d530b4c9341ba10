package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LLMConfig configures one remote model endpoint (embedding or completion).
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // "openai" or "ollama"
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	MaxRetries  int     `yaml:"max_retries"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// Key resolves the API key from the configured environment variable.
func (c *LLMConfig) Key() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// EmbeddingConfig configures the embedding gateway.
type EmbeddingConfig struct {
	LLMConfig     `yaml:",inline"`
	Dimension     int `yaml:"dimension"`
	BatchSize     int `yaml:"batch_size"`
	MaxInputChars int `yaml:"max_input_chars"`
}

// StoreConfig selects the vector store backend.
type StoreConfig struct {
	Type       string `yaml:"type"` // "memory" or "chromem"
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
}

// DatabaseConfig configures the Postgres note repository. Empty DSN means
// the in-memory repository is used instead.
type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

// RAGConfig holds chunking and retrieval parameters.
type RAGConfig struct {
	ChunkSize       int     `yaml:"chunk_size"`
	ChunkOverlap    int     `yaml:"chunk_overlap"`
	ChunkMinSize    int     `yaml:"chunk_min_size"`
	TopK            int     `yaml:"top_k"`
	MinSimilarity   float32 `yaml:"min_similarity"`
	ViolationPolicy string  `yaml:"violation_policy"` // "strip" or "discard"
}

// Config is the root configuration. Loaded once at startup and treated as
// immutable afterwards; components receive it through their constructors.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Store     StoreConfig     `yaml:"store"`
	Database  DatabaseConfig  `yaml:"database"`
	RAG       RAGConfig       `yaml:"rag"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a yaml config from path. A missing file yields defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = 1536
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.Embedding.MaxRetries == 0 {
		cfg.Embedding.MaxRetries = 3
	}
	if cfg.Embedding.TimeoutSecs == 0 {
		cfg.Embedding.TimeoutSecs = 30
	}
	if cfg.Embedding.MaxInputChars == 0 {
		cfg.Embedding.MaxInputChars = 8000
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 2
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 60
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1500
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.3
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = "chromem"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "./data/vectors"
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = "notes"
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 500
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = 50
	}
	if cfg.RAG.ChunkMinSize == 0 {
		cfg.RAG.ChunkMinSize = 100
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 5
	}
	if cfg.RAG.MinSimilarity == 0 {
		cfg.RAG.MinSimilarity = 0.2
	}
	if cfg.RAG.ViolationPolicy == "" {
		cfg.RAG.ViolationPolicy = "strip"
	}
}

func validate(cfg *Config) error {
	if cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)",
			cfg.RAG.ChunkOverlap, cfg.RAG.ChunkSize)
	}
	if cfg.RAG.ViolationPolicy != "strip" && cfg.RAG.ViolationPolicy != "discard" {
		return fmt.Errorf("violation_policy must be strip or discard, got %q", cfg.RAG.ViolationPolicy)
	}
	switch cfg.Store.Type {
	case "memory", "chromem":
	default:
		return fmt.Errorf("store type must be memory or chromem, got %q", cfg.Store.Type)
	}
	return nil
}
