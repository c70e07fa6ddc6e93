package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/askbase/internal/core/domain"
	"github.com/kirillkom/askbase/internal/core/ports"
)

type AnswerConfig struct {
	Limit             int
	Threshold         float64
	GenerationTimeout time.Duration
	SessionHistory    int
}

func (c AnswerConfig) normalized() AnswerConfig {
	out := c
	if out.Limit <= 0 {
		out.Limit = 5
	}
	if out.GenerationTimeout <= 0 {
		out.GenerationTimeout = 60 * time.Second
	}
	if out.SessionHistory <= 0 {
		out.SessionHistory = 12
	}
	return out
}

// AnswerUseCase is the full pipeline: query understanding, hybrid retrieval
// with fallback cascade, reranking, context assembly, generation.
type AnswerUseCase struct {
	classifier *QueryClassifier
	cascade    *FallbackCascade
	rerank     *RerankStep
	generator  ports.AnswerGenerator
	sessions   ports.SessionStore    // optional
	sink       ports.DiagnosticsSink // optional
	cfg        AnswerConfig
	logger     *slog.Logger
}

func NewAnswerUseCase(
	classifier *QueryClassifier,
	cascade *FallbackCascade,
	rerank *RerankStep,
	generator ports.AnswerGenerator,
	sessions ports.SessionStore,
	sink ports.DiagnosticsSink,
	cfg AnswerConfig,
	logger *slog.Logger,
) *AnswerUseCase {
	return &AnswerUseCase{
		classifier: classifier,
		cascade:    cascade,
		rerank:     rerank,
		generator:  generator,
		sessions:   sessions,
		sink:       sink,
		cfg:        cfg.normalized(),
		logger:     logger,
	}
}

func (uc *AnswerUseCase) Answer(ctx context.Context, req domain.AnswerRequest) (*domain.AnswerResult, error) {
	rawQuery := strings.TrimSpace(req.Query)
	if rawQuery == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", fmt.Errorf("query is required"))
	}
	limit := req.Limit
	if limit <= 0 {
		limit = uc.cfg.Limit
	}

	diag := domain.Diagnostics{
		RequestID:   uuid.NewString(),
		SessionID:   req.SessionID,
		GeneratedAt: time.Now().UTC(),
	}

	history := req.History
	if len(history) == 0 && req.SessionID != "" && uc.sessions != nil {
		stored, err := uc.sessions.ListRecentTurns(ctx, req.SessionID, uc.cfg.SessionHistory)
		if err != nil {
			uc.logger.Warn("session_history_unavailable",
				slog.String("session_id", req.SessionID),
				slog.String("error", err.Error()))
			diag.MarkDegraded("session_history_unavailable")
		} else {
			history = stored
		}
	}

	followUp := IsFollowUp(rawQuery, history)
	diag.FollowUp = followUp

	retrievalQuery := rawQuery
	if followUp {
		retrievalQuery = ExpandWithHistory(rawQuery, history)
	}

	classifyStart := time.Now()
	analysis, source, err := uc.classifier.Classify(ctx, retrievalQuery)
	if err != nil {
		return nil, err
	}
	diag.Observe("classify", time.Since(classifyStart))
	diag.ClassifierSource = source
	if source == classifierSourceFallback {
		diag.MarkDegraded("classifier_fallback")
	}

	filter := domain.FilterFromAnalysis(analysis)
	if followUp {
		// The filter derived from an expanded prompt is unreliable;
		// rebuild it from the original query's rule-based extraction.
		filter = FollowUpFilter(uc.classifier.Rules(), rawQuery, history)
	}

	policy := lookupPolicy(analysis.Intent, analysis.PrimaryCategory)

	retrieveStart := time.Now()
	outcome, err := uc.cascade.Run(ctx, CascadeInput{
		RetrievalQuery: retrievalQuery,
		OriginalQuery:  rawQuery,
		Filter:         filter,
		Weights:        policy.Weights,
		Limit:          limit * 2, // rerank candidates; truncated after rerank
		Threshold:      uc.cfg.Threshold,
		FollowUp:       followUp,
	})
	diag.Observe("retrieve", time.Since(retrieveStart))
	if err != nil {
		uc.publishDiagnostics(diag)
		return nil, err
	}
	diag.Stage = outcome.Stage
	for _, path := range outcome.Degraded {
		diag.MarkDegraded(path)
	}

	rerankStart := time.Now()
	ranked, rerankApplied := uc.rerank.Rerank(ctx, rawQuery, outcome.Chunks, req.RerankOptions, limit)
	diag.Observe("rerank", time.Since(rerankStart))
	diag.RerankApplied = rerankApplied
	if !rerankApplied && len(outcome.Chunks) > 0 {
		diag.MarkDegraded("rerank_skipped")
	}

	contextItems := AssembleContext(ranked, req.PriorReferences, req.ExplicitContext)
	diag.ResultCount = len(ranked)
	diag.ContextSize = len(contextItems)

	systemPrompt := buildSystemPrompt(contextItems, analysis, followUp)
	messages := append(historyWindow(history, historyWindowTurns, historyTurnCharCap), domain.ConversationTurn{
		Role:    "user",
		Content: rawQuery,
	})

	generateStart := time.Now()
	answerText, genErr := uc.generate(ctx, systemPrompt, messages)
	diag.Observe("generate", time.Since(generateStart))

	if genErr != nil {
		switch {
		case errors.Is(genErr, context.DeadlineExceeded) && len(contextItems) > 0:
			// Deadline hit after retrieval completed: hand back the
			// partial context instead of erroring.
			diag.MarkDegraded("generation_timeout")
		case followUp:
			// Last resort for follow-ups: one history-only attempt.
			diag.MarkDegraded("generation_history_only")
			answerText, genErr = uc.generate(ctx, buildSystemPrompt(nil, analysis, true), messages)
			if genErr != nil {
				uc.publishDiagnostics(diag)
				return nil, domain.WrapError(domain.ErrGeneration, "answer", genErr)
			}
		default:
			uc.publishDiagnostics(diag)
			return nil, domain.WrapError(domain.ErrGeneration, "answer", genErr)
		}
	}

	uc.persistTurns(req.SessionID, rawQuery, answerText)
	uc.publishDiagnostics(diag)

	return &domain.AnswerResult{
		Answer:      answerText,
		ResultCount: len(ranked),
		Context:     contextItems,
		Diagnostics: diag,
	}, nil
}

func (uc *AnswerUseCase) generate(ctx context.Context, systemPrompt string, messages []domain.ConversationTurn) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, uc.cfg.GenerationTimeout)
	defer cancel()

	text, err := uc.generator.Generate(genCtx, systemPrompt, messages)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// persistTurns appends the exchanged turns to the session store, best
// effort: storage trouble never fails an already answered request.
func (uc *AnswerUseCase) persistTurns(sessionID, question, answer string) {
	if uc.sessions == nil || sessionID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := uc.sessions.EnsureSession(ctx, sessionID); err != nil {
		uc.logger.Warn("session_persist_failed", slog.String("error", err.Error()))
		return
	}
	now := time.Now().UTC()
	turns := []domain.ConversationTurn{
		{Role: "user", Content: question, Timestamp: now},
	}
	if answer != "" {
		turns = append(turns, domain.ConversationTurn{Role: "assistant", Content: answer, Timestamp: now})
	}
	for _, turn := range turns {
		if err := uc.sessions.AppendTurn(ctx, sessionID, turn); err != nil {
			uc.logger.Warn("session_persist_failed", slog.String("error", err.Error()))
			return
		}
	}
}

func (uc *AnswerUseCase) publishDiagnostics(diag domain.Diagnostics) {
	if uc.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := uc.sink.Publish(ctx, diag); err != nil {
		uc.logger.Warn("diagnostics_publish_failed", slog.String("error", err.Error()))
	}
}
