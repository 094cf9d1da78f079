package model

import "time"

type SubmissionStatus string

const (
	StatusQueued    SubmissionStatus = "QUEUED"
	StatusCompleted SubmissionStatus = "COMPLETED"
	StatusFailed    SubmissionStatus = "FAILED"
	StatusTimeout   SubmissionStatus = "TIMEOUT"
	StatusFinalized SubmissionStatus = "FINALIZED"
)

// ReportedStatuses are the statuses a runner may report back. FINALIZED is
// reachable only through the finalize endpoint, never through a result report.
var ReportedStatuses = map[SubmissionStatus]bool{
	StatusCompleted: true,
	StatusFailed:    true,
	StatusTimeout:   true,
}

func (s SubmissionStatus) IsValid() bool {
	switch s {
	case StatusQueued, StatusCompleted, StatusFailed, StatusTimeout, StatusFinalized:
		return true
	}
	return false
}

type FeedbackItem struct {
	Case    string `json:"case"`
	Message string `json:"message"`
}

type Metrics struct {
	TimeMs   int `json:"timeMs"`
	MemoryMB int `json:"memoryMB"`
}

type Submission struct {
	ID           string           `json:"submission_id"`
	UserID       string           `json:"user_id"`
	Language     string           `json:"language"`
	Status       SubmissionStatus `json:"status"`
	Score        float64          `json:"score"`
	FailTags     []string         `json:"fail_tags"`
	Feedback     []FeedbackItem   `json:"feedback"`
	Metrics      Metrics          `json:"metrics"`
	Finalized    bool             `json:"finalized"`
	FinalizeNote *string          `json:"finalize_note,omitempty"`
	Attempt      int              `json:"attempt"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// ResultUpdate is the reconciling write applied to a submission when a runner
// reports an outcome. It is only ever applied under the finalized=FALSE guard.
type ResultUpdate struct {
	Status   SubmissionStatus
	Score    float64
	FailTags []string
	Feedback []FeedbackItem
	Metrics  Metrics
}

// ResultReport is the wire form of a runner's outcome, posted to the result
// callback. Status is normalized by the reconciler, not trusted as-is.
type ResultReport struct {
	Status   string         `json:"status"`
	Score    float64        `json:"score"`
	FailTags []string       `json:"fail_tags"`
	Feedback []FeedbackItem `json:"feedback"`
	Metrics  Metrics        `json:"metrics"`
}
