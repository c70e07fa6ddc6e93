package ports

import (
	"context"

	"github.com/kirillkom/askbase/internal/core/domain"
)

// AnswerService is the inbound contract for the question-answering pipeline.
type AnswerService interface {
	Answer(ctx context.Context, req domain.AnswerRequest) (*domain.AnswerResult, error)
}
