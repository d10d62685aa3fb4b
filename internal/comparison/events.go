// Package comparison implements the multi-provider streaming comparison
// engine: it fans one prompt out to N model adapters concurrently, reduces
// their streams into durable session and response records, and rebroadcasts
// every event to live observers.
package comparison

import "time"

// Event types pushed to observers over a session's stream.
const (
	EventModelChunk         = "model_chunk"
	EventModelComplete      = "model_complete"
	EventModelError         = "model_error"
	EventComparisonComplete = "comparison_complete"
	EventComparisonError    = "comparison_error"
)

// Metrics is the final accounting of one model's response.
type Metrics struct {
	InputTokens    int     `json:"inputTokens"`
	OutputTokens   int     `json:"outputTokens"`
	Cost           float64 `json:"cost"`
	ResponseTimeMs int64   `json:"responseTimeMs"`
}

// Event is one session-scoped broadcast message. ModelID is empty for the
// session-level comparison_complete and comparison_error events.
type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"sessionId"`
	ModelID   string    `json:"modelId,omitempty"`
	Chunk     string    `json:"chunk,omitempty"`
	Metrics   *Metrics  `json:"metrics,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
