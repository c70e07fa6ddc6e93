package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kirillkom/askbase/internal/core/domain"
	"github.com/kirillkom/askbase/internal/core/ports"
	"github.com/kirillkom/askbase/internal/observability/metrics"
)

type Router struct {
	answers ports.AnswerService
	metrics *metrics.PipelineMetrics
	service string
	logger  *slog.Logger
}

func NewRouter(answers ports.AnswerService, pipelineMetrics *metrics.PipelineMetrics, service string, logger *slog.Logger) *Router {
	return &Router{
		answers: answers,
		metrics: pipelineMetrics,
		service: service,
		logger:  logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/answer", rt.answer)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) answer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req domain.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	result, err := rt.answers.Answer(r.Context(), req)
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		if rt.metrics != nil {
			rt.metrics.ObserveAnswer(rt.service, "error", domain.Diagnostics{})
		}
		rt.logger.Error("answer_failed",
			slog.String("request_id", requestIDFromContext(r.Context())),
			slog.Int("status", status),
			slog.String("error", err.Error()))
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	if rt.metrics != nil {
		outcome := "ok"
		if len(result.Diagnostics.Degraded) > 0 {
			outcome = "degraded"
		}
		rt.metrics.ObserveAnswer(rt.service, outcome, result.Diagnostics)
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
