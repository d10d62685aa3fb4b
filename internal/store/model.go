// Package store persists comparison sessions and model responses in SQLite.
package store

import "time"

// SessionStatus is the lifecycle state of a comparison session.
// It only moves forward: pending -> in_progress -> completed | failed.
type SessionStatus string

const (
	SessionPending    SessionStatus = "pending"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
)

// ResponseStatus is the lifecycle state of one model's response.
// pending -> streaming -> completed, or pending|streaming -> error.
type ResponseStatus string

const (
	ResponsePending   ResponseStatus = "pending"
	ResponseStreaming ResponseStatus = "streaming"
	ResponseCompleted ResponseStatus = "completed"
	ResponseError     ResponseStatus = "error"
)

// Session represents one comparison request. Aggregates are derived from
// the session's completed responses only; errored responses contribute
// nothing.
type Session struct {
	ID              string        `json:"id"`
	Prompt          string        `json:"prompt"`
	Status          SessionStatus `json:"status"`
	TotalTokens     int           `json:"totalTokens"`
	TotalCost       float64       `json:"totalCost"`
	AvgResponseMs   int64         `json:"averageResponseTime"`
	UserID          string        `json:"userId"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// ModelResponse is one model's contribution to a session. Exactly one row
// exists per (session, model) pair; Response grows by appended chunks while
// streaming, and the metric fields are written atomically at completion.
type ModelResponse struct {
	ID             string         `json:"id"`
	SessionID      string         `json:"sessionId"`
	ModelID        string         `json:"modelId"`
	Provider       string         `json:"provider"`
	Response       string         `json:"response"`
	Status         ResponseStatus `json:"status"`
	InputTokens    int            `json:"inputTokens"`
	OutputTokens   int            `json:"outputTokens"`
	Cost           float64        `json:"cost"`
	ResponseTimeMs int64          `json:"responseTimeMs"`
	ErrorMessage   string         `json:"errorMessage,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}
