package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"codegrade/internal/domain/model"
)

// LLMConfig holds the connection settings for an OpenAI-compatible
// chat-completions endpoint.
type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// LLMEvaluator grades a submission by asking a language model for a JSON
// verdict. It talks to the chat-completions REST API directly.
type LLMEvaluator struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewLLMEvaluator(cfg LLMConfig) *LLMEvaluator {
	return &LLMEvaluator{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

func buildPrompt(code, language string) string {
	return fmt.Sprintf(`You are an automated programming assignment grader.

- Language: %s
- The student's submitted code is below.

`+"```%s\n%s\n```"+`

Grade it on:
1. Syntax errors
2. Whether basic requirements are met (I/O shape, naming)
3. Major logic bugs

Output only JSON of this exact shape:

{
  "status": "COMPLETED" or "FAILED",
  "score": number between 0 and 100,
  "fail_tags": ["syntax_error", "logic_error", "requirement_miss"],
  "feedback": [{"case": "short keyword", "message": "feedback for the student"}]
}

Output nothing besides the JSON.`, language, language, code)
}

func (e *LLMEvaluator) Evaluate(ctx context.Context, payload model.SubmissionPayload) (*Outcome, error) {
	reqBody := map[string]interface{}{
		"model": e.model,
		"messages": []map[string]string{
			{"role": "user", "content": buildPrompt(payload.Code, payload.Language)},
		},
		"max_tokens": 500,
	}
	bodyJSON, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.baseURL+"/v1/chat/completions", bytes.NewReader(bodyJSON))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call evaluator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("evaluator returned HTTP %d: %s", resp.StatusCode, string(body))
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode evaluator response: %w", err)
	}
	if len(raw.Choices) == 0 {
		return nil, fmt.Errorf("evaluator response has no choices")
	}

	return parseVerdict(raw.Choices[0].Message.Content)
}

// parseVerdict extracts the JSON verdict from the model's text output.
// Models occasionally wrap JSON in a code fence despite instructions.
func parseVerdict(text string) (*Outcome, error) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var out Outcome
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return nil, fmt.Errorf("parse verdict JSON: %w (output: %s)", err, text)
	}
	if out.Status == "" {
		return nil, fmt.Errorf("verdict missing status field (output: %s)", text)
	}
	return &out, nil
}
