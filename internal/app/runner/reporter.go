package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"codegrade/internal/domain/model"
)

const (
	deliveryAttempts    = 2
	deliveryBackoffStep = 2 * time.Second
)

// HTTPReporter posts an outcome to the result reconciler, authenticated with
// the shared token. Delivery is retried with linearly increasing backoff; a
// failure on the final attempt is a hard delivery failure.
type HTTPReporter struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPReporter(baseURL, token string) *HTTPReporter {
	return &HTTPReporter{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *HTTPReporter) Report(ctx context.Context, submissionID string, report model.ResultReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal result report: %w", err)
	}
	url := fmt.Sprintf("%s/submissions/%s/result", r.baseURL, submissionID)

	var lastErr error
	for attempt := 1; attempt <= deliveryAttempts; attempt++ {
		lastErr = r.post(ctx, url, body)
		if lastErr == nil {
			return nil
		}
		log.Printf("WARN: Result delivery attempt %d/%d failed for submission %s: %v",
			attempt, deliveryAttempts, submissionID, lastErr)
		if attempt < deliveryAttempts {
			select {
			case <-time.After(time.Duration(attempt) * deliveryBackoffStep):
			case <-ctx.Done():
				return fmt.Errorf("result delivery canceled: %w", ctx.Err())
			}
		}
	}
	return fmt.Errorf("result delivery failed after %d attempts: %w", deliveryAttempts, lastErr)
}

func (r *HTTPReporter) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Result-Token", r.token)

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("reconciler returned HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
