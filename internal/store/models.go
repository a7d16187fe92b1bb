package store

import "time"

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Invocation is one recorded program call.
type Invocation struct {
	ID           string    `json:"id"`
	Program      string    `json:"program"`
	ProgramID    string    `json:"program_id"`
	Caller       string    `json:"caller"`
	StepCount    int       `json:"step_count"`
	Status       string    `json:"status"` // success, failed
	ErrorCode    int       `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Run is a scheduled protocol execution owned by a chat.
type Run struct {
	ID              int      `json:"id"`
	ChatID          string   `json:"chat_id"`
	Program         string   `json:"program"`
	Steps           []string `json:"steps"`
	IntervalSeconds int      `json:"interval_seconds"` // 0 runs once
}
