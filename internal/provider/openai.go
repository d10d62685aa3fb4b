package provider

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/ChamsBouzaiene/modelarena/internal/pricing"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenAIAdapter invokes models through the OpenAI chat completions API.
// It also serves OpenAI-compatible vendors (Groq, DeepSeek, ...) via a
// custom base URL.
type OpenAIAdapter struct {
	client   *openai.Client
	provider string
	models   []ModelInfo
}

// NewOpenAIAdapter creates an adapter for an OpenAI-compatible endpoint.
// providerName labels the vendor ("openai", "groq", ...); baseURL may be
// empty for the real OpenAI API.
func NewOpenAIAdapter(providerName, apiKey, baseURL string, modelIDs []string) *OpenAIAdapter {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAIAdapter{
		client:   openai.NewClientWithConfig(config),
		provider: providerName,
		models:   describeModels(providerName, modelIDs),
	}
}

// Provider implements Adapter.
func (a *OpenAIAdapter) Provider() string { return a.provider }

// Models implements Adapter.
func (a *OpenAIAdapter) Models() []ModelInfo { return a.models }

// Stream implements Adapter.Stream by reading the SSE completion stream.
func (a *OpenAIAdapter) Stream(ctx context.Context, modelID, prompt string) (<-chan StreamEvent, <-chan error) {
	eventCh := make(chan StreamEvent, 10) // Buffered to avoid blocking
	errCh := make(chan error, 1)

	go func() {
		defer close(eventCh)
		defer close(errCh)

		req := openai.ChatCompletionRequest{
			Model: modelID,
			Messages: []openai.ChatCompletionMessage{{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			}},
			Stream: true,
			StreamOptions: &openai.StreamOptions{
				IncludeUsage: true, // Include usage in final chunk
			},
		}

		stream, err := a.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			errCh <- err
			return
		}
		defer stream.Close()

		var finalUsage Usage

		for {
			response, err := stream.Recv()
			if err != nil {
				if !errors.Is(err, io.EOF) && !strings.Contains(err.Error(), "EOF") {
					errCh <- err
					return
				}
				// Stream completed normally
				if finalUsage.InputTokens > 0 || finalUsage.OutputTokens > 0 {
					select {
					case eventCh <- StreamEvent{Type: "usage", Usage: finalUsage}:
					case <-ctx.Done():
					}
				}
				return
			}

			// The final chunk may carry usage but no choices when
			// stream_options.include_usage is set, so check usage first.
			if response.Usage != nil && response.Usage.TotalTokens > 0 {
				finalUsage = Usage{
					InputTokens:  response.Usage.PromptTokens,
					OutputTokens: response.Usage.CompletionTokens,
				}
			}

			if len(response.Choices) == 0 {
				continue
			}

			if delta := response.Choices[0].Delta; delta.Content != "" {
				select {
				case eventCh <- StreamEvent{Type: "text_delta", Text: delta.Content}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return eventCh, errCh
}

// describeModels builds ModelInfo entries with pricing for a vendor's models.
func describeModels(providerName string, modelIDs []string) []ModelInfo {
	infos := make([]ModelInfo, 0, len(modelIDs))
	for _, id := range modelIDs {
		infos = append(infos, ModelInfo{
			ID:          id,
			DisplayName: displayName(id),
			Provider:    providerName,
			Rates:       pricing.Lookup(id),
		})
	}
	return infos
}

// displayName turns a model identifier into a human-readable label,
// e.g. "claude-3-5-sonnet-20241022" -> "Claude 3 5 Sonnet 20241022".
func displayName(modelID string) string {
	parts := strings.Split(modelID, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
