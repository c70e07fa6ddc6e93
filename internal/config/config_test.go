package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.APIPort != "8080" {
		t.Fatalf("unexpected default api port %q", cfg.APIPort)
	}
	if cfg.OllamaURL != "http://localhost:11434" {
		t.Fatalf("unexpected default ollama url %q", cfg.OllamaURL)
	}
	if cfg.AnalysisCacheTTL != 10*time.Minute {
		t.Fatalf("unexpected default cache ttl %s", cfg.AnalysisCacheTTL)
	}
	if cfg.RetrievalLimit != 5 {
		t.Fatalf("unexpected default retrieval limit %d", cfg.RetrievalLimit)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("API_PORT", "9999")
	t.Setenv("RETRIEVAL_LIMIT", "8")
	t.Setenv("RETRIEVAL_THRESHOLD", "0.6")
	t.Setenv("RERANKER_ENABLED", "false")
	t.Setenv("GENERATION_TIMEOUT", "15s")

	cfg := Load()

	if cfg.APIPort != "9999" {
		t.Fatalf("api port override not applied: %q", cfg.APIPort)
	}
	if cfg.RetrievalLimit != 8 {
		t.Fatalf("retrieval limit override not applied: %d", cfg.RetrievalLimit)
	}
	if cfg.RetrievalThreshold != 0.6 {
		t.Fatalf("threshold override not applied: %f", cfg.RetrievalThreshold)
	}
	if cfg.RerankerEnabled {
		t.Fatal("reranker enabled override not applied")
	}
	if cfg.GenerationTimeout != 15*time.Second {
		t.Fatalf("generation timeout override not applied: %s", cfg.GenerationTimeout)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("RETRIEVAL_LIMIT", "not-a-number")
	t.Setenv("GENERATION_TIMEOUT", "soon")
	t.Setenv("RERANKER_ENABLED", "maybe")

	cfg := Load()

	if cfg.RetrievalLimit != 5 {
		t.Fatalf("expected fallback retrieval limit, got %d", cfg.RetrievalLimit)
	}
	if cfg.GenerationTimeout != 60*time.Second {
		t.Fatalf("expected fallback generation timeout, got %s", cfg.GenerationTimeout)
	}
	if !cfg.RerankerEnabled {
		t.Fatal("expected fallback reranker enabled")
	}
}
