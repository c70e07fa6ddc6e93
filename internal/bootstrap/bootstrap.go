package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirillkom/askbase/internal/config"
	"github.com/kirillkom/askbase/internal/core/ports"
	"github.com/kirillkom/askbase/internal/core/usecase"
	"github.com/kirillkom/askbase/internal/infrastructure/cache"
	eventsnats "github.com/kirillkom/askbase/internal/infrastructure/events/nats"
	"github.com/kirillkom/askbase/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/askbase/internal/infrastructure/rerank/httprerank"
	"github.com/kirillkom/askbase/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/askbase/internal/infrastructure/resilience"
	"github.com/kirillkom/askbase/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/askbase/internal/observability/logging"
	"github.com/kirillkom/askbase/internal/observability/metrics"
)

const serviceName = "askbase-api"

type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.PipelineMetrics
	Answers ports.AnswerService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger := logging.New(serviceName, cfg.LogLevel)
	pipelineMetrics := metrics.NewPipelineMetrics(serviceName)
	runner := resilience.NewRunner(resilience.DefaultPolicy(), logger)

	taxonomy, err := usecase.LoadTaxonomy()
	if err != nil {
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}

	ollamaClient := ollama.New(ollama.Config{
		BaseURL:           cfg.OllamaURL,
		ChatModel:         cfg.OllamaChatModel,
		EmbedModel:        cfg.OllamaEmbedModel,
		RequestsPerSecond: cfg.OllamaRequestsSec,
		Burst:             cfg.OllamaBurst,
	}, runner)
	embedder := ollama.NewEmbedder(ollamaClient)
	classifierLLM := ollama.NewClassifier(ollamaClient)
	expander := ollama.NewExpander(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	qdrantClient := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	dense := qdrant.NewDenseSearcher(qdrantClient)
	sparse := qdrant.NewSparseSearcher(qdrantClient)

	analysisCache := cache.New(cfg.AnalysisCacheSize, cfg.AnalysisCacheTTL)
	classifier := usecase.NewQueryClassifier(classifierLLM, analysisCache, taxonomy, 0, logger)
	retriever := usecase.NewHybridRetriever(embedder, dense, sparse, logger)
	cascade := usecase.NewFallbackCascade(retriever, expander, 0, logger)

	rerankStep := usecase.NewRerankStep(
		httprerank.New(cfg.RerankerURL, 0),
		cfg.RerankerEnabled,
		0,
		logger,
	)

	var db *sql.DB
	var sessions ports.SessionStore
	if cfg.PostgresDSN != "" {
		db, err = postgres.OpenDB(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		sessions = postgres.NewSessionRepository(db)
	}

	var publisher *eventsnats.DiagnosticsPublisher
	var sink ports.DiagnosticsSink
	if cfg.NATSURL != "" {
		publisher, err = eventsnats.NewDiagnosticsPublisher(cfg.NATSURL, cfg.NATSSubject, eventsnats.Options{
			Runner: runner,
			Logger: logger,
		})
		if err != nil {
			if db != nil {
				_ = db.Close()
			}
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		sink = publisher
	}

	answers := usecase.NewAnswerUseCase(
		classifier,
		cascade,
		rerankStep,
		generator,
		sessions,
		sink,
		usecase.AnswerConfig{
			Limit:             cfg.RetrievalLimit,
			Threshold:         cfg.RetrievalThreshold,
			GenerationTimeout: cfg.GenerationTimeout,
			SessionHistory:    cfg.SessionHistory,
		},
		logger,
	)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: pipelineMetrics,
		Answers: answers,

		closeFn: func() {
			if publisher != nil {
				publisher.Close()
			}
			if db != nil {
				_ = db.Close()
			}
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
