package main

import (
	"context"
	"log"
	"time"

	"codegrade/internal/app/evaluator"
	"codegrade/internal/app/runner"
	"codegrade/internal/platform/config"
	"codegrade/internal/platform/queue"
)

// The runner is ephemeral: one process, one submission, one outcome report.
// It always exits 0, even after internal failures, so the execution
// substrate never re-admits it; the evaluator call is not idempotent-cost.
func main() {
	config.Load()

	submissionID := config.AppConfig.SubmissionID
	if submissionID == "" {
		log.Println("ERROR: SUBMISSION_ID is not set; nothing to do.")
		return
	}
	log.Printf("Runner starting for submission %s.", submissionID)

	queue.ConnectRedis()
	defer queue.CloseRedis()

	payloads := queue.NewPayloadStore(queue.RDB, config.AppConfig.PayloadKeyPrefix)
	eval := evaluator.NewLLMEvaluator(evaluator.LLMConfig{
		BaseURL: config.AppConfig.LLMBaseURL,
		APIKey:  config.AppConfig.LLMAPIKey,
		Model:   config.AppConfig.LLMModel,
	})
	reporter := runner.NewHTTPReporter(config.AppConfig.BackendInternalURL, config.AppConfig.ResultToken)
	deadline := time.Duration(config.AppConfig.RunnerDeadlineSeconds) * time.Second

	r := runner.New(submissionID, payloads, eval, reporter, deadline)
	if err := r.Run(context.Background()); err != nil {
		// A lost outcome is logged, not re-raised; exiting non-zero would
		// make the substrate re-run a non-idempotent evaluation.
		log.Printf("ERROR: Runner failed to deliver outcome for submission %s: %v", submissionID, err)
		return
	}
	log.Printf("Runner finished for submission %s.", submissionID)
}
