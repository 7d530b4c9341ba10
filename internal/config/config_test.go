package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RAG.ChunkSize != 500 || cfg.RAG.ChunkOverlap != 50 {
		t.Errorf("chunk defaults = %d/%d", cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	}
	if cfg.RAG.TopK != 5 {
		t.Errorf("TopK = %d, want 5", cfg.RAG.TopK)
	}
	if cfg.RAG.MinSimilarity != 0.2 {
		t.Errorf("MinSimilarity = %v, want 0.2", cfg.RAG.MinSimilarity)
	}
	if cfg.RAG.ViolationPolicy != "strip" {
		t.Errorf("ViolationPolicy = %q, want strip", cfg.RAG.ViolationPolicy)
	}
	if cfg.Store.Type != "chromem" {
		t.Errorf("Store.Type = %q, want chromem", cfg.Store.Type)
	}
}

func TestLoad_PartialFileGetsDefaults(t *testing.T) {
	path := writeConfig(t, `
rag:
  chunk_size: 1000
  top_k: 3
store:
  type: memory
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RAG.ChunkSize != 1000 {
		t.Errorf("ChunkSize = %d, want 1000", cfg.RAG.ChunkSize)
	}
	if cfg.RAG.TopK != 3 {
		t.Errorf("TopK = %d, want 3", cfg.RAG.TopK)
	}
	if cfg.RAG.ChunkOverlap != 50 {
		t.Errorf("ChunkOverlap = %d, want default 50", cfg.RAG.ChunkOverlap)
	}
	if cfg.Store.Type != "memory" {
		t.Errorf("Store.Type = %q, want memory", cfg.Store.Type)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("embedding model default missing, got %q", cfg.Embedding.Model)
	}
}

func TestLoad_RejectsOverlapNotSmallerThanSize(t *testing.T) {
	path := writeConfig(t, `
rag:
  chunk_size: 100
  chunk_overlap: 100
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for overlap == size")
	}
}

func TestLoad_RejectsUnknownViolationPolicy(t *testing.T) {
	path := writeConfig(t, `
rag:
  violation_policy: regenerate
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for unknown violation_policy")
	}
}

func TestLoad_RejectsUnknownStoreType(t *testing.T) {
	path := writeConfig(t, `
store:
  type: pinecone
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for unknown store type")
	}
}

func TestLoad_RejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "rag: [not a map")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLLMConfig_Key(t *testing.T) {
	t.Setenv("TEST_NOTES_KEY", "sk-123")
	c := LLMConfig{APIKeyEnv: "TEST_NOTES_KEY"}
	if c.Key() != "sk-123" {
		t.Errorf("Key() = %q", c.Key())
	}
	if (&LLMConfig{}).Key() != "" {
		t.Error("empty APIKeyEnv should yield empty key")
	}
}
