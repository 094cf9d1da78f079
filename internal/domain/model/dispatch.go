package model

// DispatchMessageVersion is the single current version of the queue message
// schema. Messages carrying any other version are dropped by the scheduler.
const DispatchMessageVersion = 1

// DispatchMessage is the transient queue entry produced by intake and
// consumed by the scheduler. It references the submission; the payload itself
// lives in the payload store.
type DispatchMessage struct {
	Version      int    `json:"v"`
	SubmissionID string `json:"submission_id"`
	Language     string `json:"language"`
}

// SubmissionPayload is the record held in the payload store under
// submission:<id>, written once by intake and read once by the runner.
type SubmissionPayload struct {
	SubmissionID string `json:"submission_id"`
	UserID       string `json:"user_id"`
	Language     string `json:"language"`
	Code         string `json:"code"`
}
