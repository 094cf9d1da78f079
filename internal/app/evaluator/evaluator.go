package evaluator

import (
	"context"

	"codegrade/internal/domain/model"
)

// Outcome is the structured grading result an evaluator produces.
type Outcome struct {
	Status   string               `json:"status"`
	Score    float64              `json:"score"`
	FailTags []string             `json:"fail_tags"`
	Feedback []model.FeedbackItem `json:"feedback"`
}

// Evaluator grades one submission payload. Calls are single best-effort and
// never retried; the call is neither assumed idempotent nor cheap.
type Evaluator interface {
	Evaluate(ctx context.Context, payload model.SubmissionPayload) (*Outcome, error)
}
