package runner

import (
	"context"
	"log"
	"strings"
	"time"

	"codegrade/internal/app/evaluator"
	"codegrade/internal/domain/model"
)

// PayloadStore is the runner's read side of the payload store.
type PayloadStore interface {
	Load(ctx context.Context, submissionID string) (model.SubmissionPayload, error)
}

// Reporter delivers one outcome to the result reconciler.
type Reporter interface {
	Report(ctx context.Context, submissionID string, report model.ResultReport) error
}

// Runner turns one submission into one outcome report. Every code path maps
// to a concrete outcome that is delivered before the process exits; the
// runner never surfaces an error that would make the substrate re-admit it.
type Runner struct {
	submissionID string
	payloads     PayloadStore
	eval         evaluator.Evaluator
	reporter     Reporter
	deadline     time.Duration
}

func New(submissionID string, payloads PayloadStore, eval evaluator.Evaluator, reporter Reporter, deadline time.Duration) *Runner {
	return &Runner{
		submissionID: submissionID,
		payloads:     payloads,
		eval:         eval,
		reporter:     reporter,
		deadline:     deadline,
	}
}

// Run produces an outcome under the wall-clock deadline and delivers it. The
// deadline races the load+evaluate path; when it fires first, a TIMEOUT
// outcome is delivered instead and the in-flight evaluator call is abandoned.
// The returned error reports a failed delivery; callers log it and exit
// normally regardless.
func (r *Runner) Run(ctx context.Context) error {
	workCtx, cancel := context.WithTimeout(ctx, r.deadline)
	defer cancel()

	done := make(chan model.ResultReport, 1)
	started := time.Now()
	go func() {
		done <- r.produce(workCtx)
	}()

	var report model.ResultReport
	select {
	case report = <-done:
	case <-workCtx.Done():
		log.Printf("WARN: Runner deadline exceeded for submission %s; reporting TIMEOUT.", r.submissionID)
		report = timeoutReport(int(time.Since(started).Milliseconds()))
	}

	// Delivery gets its own context; the work deadline may already be spent.
	deliverCtx, deliverCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer deliverCancel()
	if err := r.reporter.Report(deliverCtx, r.submissionID, report); err != nil {
		return err
	}

	log.Printf("Runner done for submission %s: status=%s score=%.1f", r.submissionID, report.Status, report.Score)
	return nil
}

// produce builds the outcome for the normal path: load payload, evaluate
// once. Failures become FAILED outcomes with a diagnostic tag; the evaluator
// call is never retried.
func (r *Runner) produce(ctx context.Context) model.ResultReport {
	started := time.Now()

	payload, err := r.payloads.Load(ctx, r.submissionID)
	if err != nil {
		log.Printf("ERROR: Failed to load payload for submission %s: %v", r.submissionID, err)
		return failedReport("data_error", "failed to load submission payload: "+err.Error(), 0)
	}
	if strings.TrimSpace(payload.Code) == "" {
		log.Printf("ERROR: Empty payload for submission %s.", r.submissionID)
		return failedReport("data_error", "submission payload is missing or empty", 0)
	}

	outcome, err := r.eval.Evaluate(ctx, payload)
	elapsedMs := int(time.Since(started).Milliseconds())
	if err != nil {
		log.Printf("ERROR: Evaluator failed for submission %s: %v", r.submissionID, err)
		return failedReport("llm_error", "evaluation failed: "+err.Error(), elapsedMs)
	}

	failTags := outcome.FailTags
	if failTags == nil {
		failTags = []string{}
	}
	feedback := outcome.Feedback
	if feedback == nil {
		feedback = []model.FeedbackItem{}
	}
	return model.ResultReport{
		Status:   outcome.Status,
		Score:    outcome.Score,
		FailTags: failTags,
		Feedback: feedback,
		Metrics:  model.Metrics{TimeMs: elapsedMs},
	}
}

func failedReport(tag, message string, elapsedMs int) model.ResultReport {
	return model.ResultReport{
		Status:   string(model.StatusFailed),
		FailTags: []string{tag},
		Feedback: []model.FeedbackItem{{Case: tag, Message: message}},
		Metrics:  model.Metrics{TimeMs: elapsedMs},
	}
}

func timeoutReport(elapsedMs int) model.ResultReport {
	return model.ResultReport{
		Status:   string(model.StatusTimeout),
		FailTags: []string{"timeout"},
		Feedback: []model.FeedbackItem{{Case: "timeout", Message: "grading exceeded the wall-clock deadline"}},
		Metrics:  model.Metrics{TimeMs: elapsedMs},
	}
}
