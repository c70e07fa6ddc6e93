package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	APIPort  string
	LogLevel string

	PostgresDSN string

	NATSURL     string
	NATSSubject string

	OllamaURL         string
	OllamaChatModel   string
	OllamaEmbedModel  string
	OllamaRequestsSec float64
	OllamaBurst       int

	QdrantURL        string
	QdrantCollection string

	RerankerURL     string
	RerankerEnabled bool

	AnalysisCacheSize int
	AnalysisCacheTTL  time.Duration

	RetrievalLimit     int
	RetrievalThreshold float64

	GenerationTimeout time.Duration
	SessionHistory    int
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		NATSURL:     mustEnv("NATS_URL", ""),
		NATSSubject: mustEnv("NATS_SUBJECT", "askbase.diagnostics"),

		OllamaURL:         mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaChatModel:   mustEnv("OLLAMA_CHAT_MODEL", "llama3.1:8b"),
		OllamaEmbedModel:  mustEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		OllamaRequestsSec: mustEnvFloat("OLLAMA_REQUESTS_PER_SECOND", 8),
		OllamaBurst:       mustEnvInt("OLLAMA_BURST", 4),

		QdrantURL:        mustEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: mustEnv("QDRANT_COLLECTION", "knowledge_chunks"),

		RerankerURL:     mustEnv("RERANKER_URL", "http://localhost:8787"),
		RerankerEnabled: mustEnvBool("RERANKER_ENABLED", true),

		AnalysisCacheSize: mustEnvInt("ANALYSIS_CACHE_SIZE", 512),
		AnalysisCacheTTL:  mustEnvDuration("ANALYSIS_CACHE_TTL", 10*time.Minute),

		RetrievalLimit:     mustEnvInt("RETRIEVAL_LIMIT", 5),
		RetrievalThreshold: mustEnvFloat("RETRIEVAL_THRESHOLD", 0.35),

		GenerationTimeout: mustEnvDuration("GENERATION_TIMEOUT", 60*time.Second),
		SessionHistory:    mustEnvInt("SESSION_HISTORY_TURNS", 10),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
