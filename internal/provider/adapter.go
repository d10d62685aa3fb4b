// Package provider wraps each model vendor's SDK behind a uniform streaming
// contract so the comparison engine never branches on vendor types.
package provider

import (
	"context"

	"github.com/ChamsBouzaiene/modelarena/internal/pricing"
)

// Usage holds token accounting returned by providers.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// StreamEvent represents one streaming event from a model invocation.
type StreamEvent struct {
	Type  string // "text_delta" | "usage"
	Text  string // for text_delta
	Usage Usage  // for usage
}

// ModelInfo describes one invocable model, with pricing metadata.
type ModelInfo struct {
	ID          string        `json:"id"`
	DisplayName string        `json:"displayName"`
	Provider    string        `json:"provider"`
	Rates       pricing.Rates `json:"pricing"`
}

// Adapter is the interface every model vendor must satisfy.
//
// Stream returns a buffered event channel and a 1-buffered error channel,
// both closed by the producing goroutine when the invocation ends. Events
// arrive in generation order: zero or more text_delta events, optionally
// followed by a usage event. At most one error is ever sent; an error ends
// the stream.
type Adapter interface {
	// Provider returns the vendor identifier, e.g. "openai" or "anthropic".
	Provider() string

	// Models enumerates the models this adapter can invoke.
	Models() []ModelInfo

	// Stream sends the prompt to the given model and streams the response.
	Stream(ctx context.Context, modelID, prompt string) (<-chan StreamEvent, <-chan error)
}
