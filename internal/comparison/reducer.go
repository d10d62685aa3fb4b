package comparison

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ChamsBouzaiene/modelarena/internal/logger"
	"github.com/ChamsBouzaiene/modelarena/internal/store"
)

// MaxPromptLength is the upper bound on comparison prompts, in characters.
const MaxPromptLength = 10000

// Repository is the persistence surface the reducer drives. *store.Store
// satisfies it; tests substitute fakes.
type Repository interface {
	CreateSession(ctx context.Context, sess *store.Session) error
	GetSession(ctx context.Context, id string) (*store.Session, error)
	UpdateSessionStatus(ctx context.Context, id string, status store.SessionStatus) error
	UpdateSessionAggregates(ctx context.Context, id string, totalTokens int, totalCost float64, avgResponseMs int64) error
	CreateModelResponse(ctx context.Context, r *store.ModelResponse) error
	AppendResponseChunk(ctx context.Context, sessionID, modelID, chunk string) error
	CompleteModelResponse(ctx context.Context, sessionID, modelID string, inputTokens, outputTokens int, cost float64, responseTimeMs int64) error
	FailModelResponse(ctx context.Context, sessionID, modelID, errorMessage string) error
	GetResponses(ctx context.Context, sessionID string) ([]store.ModelResponse, error)
}

// Service is the session reducer: it owns all writes to sessions and model
// responses, consuming the coordinator's events and folding them into state.
type Service struct {
	repo        Repository
	resolver    ModelResolver
	coordinator *Coordinator
	relay       *Relay
}

// NewService wires the reducer to its collaborators.
func NewService(repo Repository, resolver ModelResolver, relay *Relay) *Service {
	return &Service{
		repo:        repo,
		resolver:    resolver,
		coordinator: NewCoordinator(resolver),
		relay:       relay,
	}
}

// Relay exposes the service's event relay for transports to subscribe on.
func (s *Service) Relay() *Relay { return s.relay }

// CreateSession validates the prompt and persists a new pending session.
func (s *Service) CreateSession(ctx context.Context, prompt, userID string) (*store.Session, error) {
	if prompt == "" {
		return nil, fmt.Errorf("prompt must not be empty")
	}
	if len([]rune(prompt)) > MaxPromptLength {
		return nil, fmt.Errorf("prompt exceeds %d characters", MaxPromptLength)
	}

	now := time.Now().UTC()
	sess := &store.Session{
		ID:        uuid.New().String(),
		Prompt:    prompt,
		Status:    store.SessionPending,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// StartComparison fans the session's prompt out to the requested models and
// blocks until every model reached a terminal state and the session
// aggregates are persisted.
//
// Per-model failures (unknown model, provider error) are recorded on that
// model's response and never abort siblings; a session ends completed even
// if every model errored. Only infrastructure failures force the session to
// failed, and those are also returned to the caller.
func (s *Service) StartComparison(ctx context.Context, sessionID, userID string, modelIDs []string) error {
	if len(modelIDs) == 0 {
		return fmt.Errorf("no models requested")
	}

	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return s.failSession(ctx, sessionID, fmt.Errorf("failed to load session: %w", err))
	}
	if sess.UserID != userID {
		return fmt.Errorf("session %s does not belong to user", sessionID)
	}

	if err := s.repo.UpdateSessionStatus(ctx, sessionID, store.SessionInProgress); err != nil {
		return s.failSession(ctx, sessionID, fmt.Errorf("failed to start session: %w", err))
	}

	now := time.Now().UTC()
	for _, modelID := range modelIDs {
		providerName := "unknown"
		if adapter, ok := s.resolver.Resolve(modelID); ok {
			providerName = adapter.Provider()
		}
		resp := &store.ModelResponse{
			ID:        uuid.New().String(),
			SessionID: sessionID,
			ModelID:   modelID,
			Provider:  providerName,
			Status:    store.ResponsePending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.CreateModelResponse(ctx, resp); err != nil {
			return s.failSession(ctx, sessionID, fmt.Errorf("failed to create response row for %s: %w", modelID, err))
		}
	}

	// Callback state is shared across the coordinator's per-model
	// goroutines; one mutex serializes persistence and broadcast order.
	var mu sync.Mutex
	var infraErr error

	keepFirst := func(err error) {
		if err != nil && infraErr == nil {
			infraErr = err
		}
	}

	s.coordinator.Run(ctx, sess.Prompt, modelIDs, Callbacks{
		OnChunk: func(modelID, text string) {
			mu.Lock()
			defer mu.Unlock()
			if err := s.repo.AppendResponseChunk(ctx, sessionID, modelID, text); err != nil {
				logger.Warn("failed to persist chunk", "session_id", sessionID, "model", modelID, "error", err)
				keepFirst(err)
			}
			s.relay.Publish(Event{
				Type:      EventModelChunk,
				SessionID: sessionID,
				ModelID:   modelID,
				Chunk:     text,
				Timestamp: time.Now().UTC(),
			})
		},
		OnComplete: func(modelID string, m Metrics) {
			mu.Lock()
			defer mu.Unlock()
			if err := s.repo.CompleteModelResponse(ctx, sessionID, modelID,
				m.InputTokens, m.OutputTokens, m.Cost, m.ResponseTimeMs); err != nil {
				logger.Warn("failed to persist completion", "session_id", sessionID, "model", modelID, "error", err)
				keepFirst(err)
			}
			metrics := m
			s.relay.Publish(Event{
				Type:      EventModelComplete,
				SessionID: sessionID,
				ModelID:   modelID,
				Metrics:   &metrics,
				Timestamp: time.Now().UTC(),
			})
		},
		OnError: func(modelID, reason string) {
			mu.Lock()
			defer mu.Unlock()
			if err := s.repo.FailModelResponse(ctx, sessionID, modelID, reason); err != nil {
				logger.Warn("failed to persist model error", "session_id", sessionID, "model", modelID, "error", err)
				keepFirst(err)
			}
			s.relay.Publish(Event{
				Type:      EventModelError,
				SessionID: sessionID,
				ModelID:   modelID,
				Error:     reason,
				Timestamp: time.Now().UTC(),
			})
		},
	})

	mu.Lock()
	err = infraErr
	mu.Unlock()
	if err != nil {
		return s.failSession(ctx, sessionID, fmt.Errorf("persistence failed during streaming: %w", err))
	}

	if err := s.finalize(ctx, sessionID); err != nil {
		return s.failSession(ctx, sessionID, err)
	}

	s.relay.Publish(Event{
		Type:      EventComparisonComplete,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

// finalize recomputes the session aggregates from its completed responses
// and marks the session completed.
func (s *Service) finalize(ctx context.Context, sessionID string) error {
	responses, err := s.repo.GetResponses(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load responses: %w", err)
	}

	var totalTokens int
	var totalCost float64
	var totalMs int64
	completed := 0
	for _, r := range responses {
		if r.Status != store.ResponseCompleted {
			continue
		}
		totalTokens += r.InputTokens + r.OutputTokens
		totalCost += r.Cost
		totalMs += r.ResponseTimeMs
		completed++
	}

	var avgMs int64
	if completed > 0 {
		avgMs = totalMs / int64(completed)
	}

	if err := s.repo.UpdateSessionAggregates(ctx, sessionID, totalTokens, totalCost, avgMs); err != nil {
		return fmt.Errorf("failed to persist aggregates: %w", err)
	}
	if err := s.repo.UpdateSessionStatus(ctx, sessionID, store.SessionCompleted); err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	return nil
}

// failSession records an orchestration-level failure, broadcasts it, and
// returns the causing error for the caller.
func (s *Service) failSession(ctx context.Context, sessionID string, cause error) error {
	if err := s.repo.UpdateSessionStatus(ctx, sessionID, store.SessionFailed); err != nil {
		logger.Error("failed to mark session as failed", "session_id", sessionID, "error", err)
	}
	s.relay.Publish(Event{
		Type:      EventComparisonError,
		SessionID: sessionID,
		Error:     cause.Error(),
		Timestamp: time.Now().UTC(),
	})
	return cause
}
