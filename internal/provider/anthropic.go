package provider

import (
	"context"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

// AnthropicAdapter invokes Claude models through the Anthropic messages API.
type AnthropicAdapter struct {
	client *anthropic.Client
	models []ModelInfo
}

// NewAnthropicAdapter creates an adapter for the Anthropic API.
func NewAnthropicAdapter(apiKey string, modelIDs []string) *AnthropicAdapter {
	return &AnthropicAdapter{
		client: anthropic.NewClient(apiKey),
		models: describeModels("anthropic", modelIDs),
	}
}

// Provider implements Adapter.
func (a *AnthropicAdapter) Provider() string { return "anthropic" }

// Models implements Adapter.
func (a *AnthropicAdapter) Models() []ModelInfo { return a.models }

// Stream implements Adapter.Stream. The Anthropic SDK streams via callbacks,
// which we adapt to the channel contract.
func (a *AnthropicAdapter) Stream(ctx context.Context, modelID, prompt string) (<-chan StreamEvent, <-chan error) {
	eventCh := make(chan StreamEvent, 10) // Buffered to avoid blocking
	errCh := make(chan error, 1)

	go func() {
		defer close(eventCh)
		defer close(errCh)

		req := anthropic.MessagesStreamRequest{
			MessagesRequest: anthropic.MessagesRequest{
				Model: anthropic.Model(modelID),
				Messages: []anthropic.Message{{
					Role:    anthropic.RoleUser,
					Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(prompt)},
				}},
				MaxTokens: 4096,
			},
		}

		req.OnContentBlockDelta = func(delta anthropic.MessagesEventContentBlockDeltaData) {
			if delta.Delta.Type == "text_delta" && delta.Delta.Text != nil {
				select {
				case eventCh <- StreamEvent{Type: "text_delta", Text: *delta.Delta.Text}:
				case <-ctx.Done():
				}
			}
		}

		// Callbacks fire during CreateMessagesStream; errors surface on its
		// return value, so they are reported exactly once.
		resp, err := a.client.CreateMessagesStream(ctx, req)
		if err != nil {
			errCh <- err
			return
		}

		if resp.Usage.InputTokens > 0 || resp.Usage.OutputTokens > 0 {
			select {
			case eventCh <- StreamEvent{Type: "usage", Usage: Usage{
				InputTokens:  resp.Usage.InputTokens,
				OutputTokens: resp.Usage.OutputTokens,
			}}:
			case <-ctx.Done():
			}
		}
	}()

	return eventCh, errCh
}
