package comparison

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ChamsBouzaiene/modelarena/internal/logger"
	"github.com/ChamsBouzaiene/modelarena/internal/pricing"
	"github.com/ChamsBouzaiene/modelarena/internal/provider"
)

// ModelResolver looks up the adapter serving a model id.
// *provider.Registry satisfies it.
type ModelResolver interface {
	Resolve(modelID string) (provider.Adapter, bool)
}

// Callbacks receive a fan-out run's per-model events. Calls for different
// models interleave with no ordering guarantee; within one model, chunks
// arrive in generation order followed by exactly one terminal call
// (OnComplete or OnError, never both).
type Callbacks struct {
	OnChunk    func(modelID, text string)
	OnComplete func(modelID string, m Metrics)
	OnError    func(modelID, reason string)
}

// Coordinator launches one streaming invocation per requested model and
// joins on all of them.
type Coordinator struct {
	resolver ModelResolver
}

// NewCoordinator creates a fan-out coordinator over the given resolver.
func NewCoordinator(resolver ModelResolver) *Coordinator {
	return &Coordinator{resolver: resolver}
}

// Run invokes every model concurrently and blocks until each has reached a
// terminal state. Invocations are isolated: one model's failure never
// cancels or delays the others. There is no retry and no timeout at this
// layer; a stalled provider stalls only its own terminal event.
func (c *Coordinator) Run(ctx context.Context, prompt string, modelIDs []string, cb Callbacks) {
	var wg sync.WaitGroup
	for _, modelID := range modelIDs {
		wg.Add(1)
		go func(modelID string) {
			defer wg.Done()
			c.invoke(ctx, modelID, prompt, cb)
		}(modelID)
	}
	wg.Wait()
}

// invoke drives a single model's stream to its terminal event.
func (c *Coordinator) invoke(ctx context.Context, modelID, prompt string, cb Callbacks) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("provider invocation panicked", "model", modelID, "panic", r)
			cb.OnError(modelID, fmt.Sprintf("provider panic: %v", r))
		}
	}()

	adapter, ok := c.resolver.Resolve(modelID)
	if !ok {
		cb.OnError(modelID, "model not found")
		return
	}

	start := time.Now()
	eventCh, errCh := adapter.Stream(ctx, modelID, prompt)

	var text strings.Builder
	var usage provider.Usage
	usageReported := false

	for eventCh != nil || errCh != nil {
		select {
		case ev, open := <-eventCh:
			if !open {
				eventCh = nil
				continue
			}
			switch ev.Type {
			case "text_delta":
				text.WriteString(ev.Text)
				cb.OnChunk(modelID, ev.Text)
			case "usage":
				usage = ev.Usage
				usageReported = true
			}
		case err, open := <-errCh:
			if !open {
				errCh = nil
				continue
			}
			if err != nil {
				// Opaque reason string, passed through verbatim.
				cb.OnError(modelID, err.Error())
				return
			}
		}
	}

	if !usageReported {
		usage = provider.Usage{
			InputTokens:  provider.EstimateTokens(prompt),
			OutputTokens: provider.EstimateTokens(text.String()),
		}
	}

	rates := pricing.Lookup(modelID)
	cb.OnComplete(modelID, Metrics{
		InputTokens:    usage.InputTokens,
		OutputTokens:   usage.OutputTokens,
		Cost:           rates.Cost(usage.InputTokens, usage.OutputTokens),
		ResponseTimeMs: time.Since(start).Milliseconds(),
	})
}
