package comparison

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChamsBouzaiene/modelarena/internal/pricing"
	"github.com/ChamsBouzaiene/modelarena/internal/provider"
	"github.com/ChamsBouzaiene/modelarena/internal/store"
)

// memRepo is an in-memory Repository for reducer tests.
type memRepo struct {
	mu        sync.Mutex
	sessions  map[string]*store.Session
	responses map[string]map[string]*store.ModelResponse

	failCreateResponse bool
	failAppend         bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		sessions:  make(map[string]*store.Session),
		responses: make(map[string]map[string]*store.ModelResponse),
	}
}

func (m *memRepo) CreateSession(ctx context.Context, sess *store.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sess
	m.sessions[sess.ID] = &cp
	return nil
}

func (m *memRepo) GetSession(ctx context.Context, id string) (*store.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, errors.New("session not found")
	}
	cp := *sess
	return &cp, nil
}

func (m *memRepo) UpdateSessionStatus(ctx context.Context, id string, status store.SessionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil
	}
	if sess.Status == store.SessionCompleted || sess.Status == store.SessionFailed {
		return nil
	}
	sess.Status = status
	return nil
}

func (m *memRepo) UpdateSessionAggregates(ctx context.Context, id string, totalTokens int, totalCost float64, avgResponseMs int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[id]; ok {
		sess.TotalTokens = totalTokens
		sess.TotalCost = totalCost
		sess.AvgResponseMs = avgResponseMs
	}
	return nil
}

func (m *memRepo) CreateModelResponse(ctx context.Context, r *store.ModelResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateResponse {
		return errors.New("db unavailable")
	}
	if m.responses[r.SessionID] == nil {
		m.responses[r.SessionID] = make(map[string]*store.ModelResponse)
	}
	cp := *r
	m.responses[r.SessionID][r.ModelID] = &cp
	return nil
}

func (m *memRepo) AppendResponseChunk(ctx context.Context, sessionID, modelID, chunk string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend {
		return errors.New("db unavailable")
	}
	r := m.responses[sessionID][modelID]
	if r.Status == store.ResponsePending || r.Status == store.ResponseStreaming {
		r.Response += chunk
		r.Status = store.ResponseStreaming
	}
	return nil
}

func (m *memRepo) CompleteModelResponse(ctx context.Context, sessionID, modelID string, inputTokens, outputTokens int, cost float64, responseTimeMs int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.responses[sessionID][modelID]
	if r.Status == store.ResponsePending || r.Status == store.ResponseStreaming {
		r.Status = store.ResponseCompleted
		r.InputTokens = inputTokens
		r.OutputTokens = outputTokens
		r.Cost = cost
		r.ResponseTimeMs = responseTimeMs
	}
	return nil
}

func (m *memRepo) FailModelResponse(ctx context.Context, sessionID, modelID, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.responses[sessionID][modelID]
	if r.Status == store.ResponsePending || r.Status == store.ResponseStreaming {
		r.Status = store.ResponseError
		r.ErrorMessage = errorMessage
	}
	return nil
}

func (m *memRepo) GetResponses(ctx context.Context, sessionID string) ([]store.ModelResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.ModelResponse
	for _, r := range m.responses[sessionID] {
		out = append(out, *r)
	}
	return out, nil
}

func (m *memRepo) session(t *testing.T, id string) store.Session {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	require.True(t, ok)
	return *sess
}

func (m *memRepo) response(t *testing.T, sessionID, modelID string) store.ModelResponse {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.responses[sessionID][modelID]
	require.True(t, ok)
	return *r
}

func TestCreateSessionValidation(t *testing.T) {
	svc := NewService(newMemRepo(), fakeResolver{}, NewRelay())
	ctx := context.Background()

	_, err := svc.CreateSession(ctx, "", "user-1")
	assert.Error(t, err)

	_, err = svc.CreateSession(ctx, strings.Repeat("x", MaxPromptLength+1), "user-1")
	assert.Error(t, err)

	sess, err := svc.CreateSession(ctx, "Explain recursion", "user-1")
	require.NoError(t, err)
	assert.Equal(t, store.SessionPending, sess.Status)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "user-1", sess.UserID)
}

func TestStartComparisonMixedOutcome(t *testing.T) {
	repo := newMemRepo()
	resolver := fakeResolver{
		"m1": &scriptedAdapter{
			name:   "alpha",
			chunks: []string{"Rec", "ursion", " is...", "done"},
			usage:  &provider.Usage{InputTokens: 5, OutputTokens: 8},
		},
		"m2": &scriptedAdapter{name: "beta", err: errors.New("rate limit exceeded")},
	}
	svc := NewService(repo, resolver, NewRelay())
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "Explain recursion", "user-1")
	require.NoError(t, err)

	require.NoError(t, svc.StartComparison(ctx, sess.ID, "user-1", []string{"m1", "m2"}))

	m1 := repo.response(t, sess.ID, "m1")
	assert.Equal(t, "Recursion is...done", m1.Response)
	assert.Equal(t, store.ResponseCompleted, m1.Status)
	assert.Equal(t, 5, m1.InputTokens)
	assert.Equal(t, 8, m1.OutputTokens)

	m2 := repo.response(t, sess.ID, "m2")
	assert.Equal(t, store.ResponseError, m2.Status)
	assert.Equal(t, "rate limit exceeded", m2.ErrorMessage)

	got := repo.session(t, sess.ID)
	assert.Equal(t, store.SessionCompleted, got.Status)
	assert.Equal(t, 13, got.TotalTokens)
	assert.InDelta(t, pricing.Lookup("m1").Cost(5, 8), got.TotalCost, 1e-9)
	assert.Equal(t, m1.ResponseTimeMs, got.AvgResponseMs)
}

func TestStartComparisonAllModelsErrored(t *testing.T) {
	repo := newMemRepo()
	resolver := fakeResolver{
		"m1": &scriptedAdapter{name: "alpha", err: errors.New("quota exceeded")},
		"m2": &scriptedAdapter{name: "beta", err: errors.New("model unavailable")},
	}
	svc := NewService(repo, resolver, NewRelay())
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "hi", "user-1")
	require.NoError(t, err)
	require.NoError(t, svc.StartComparison(ctx, sess.ID, "user-1", []string{"m1", "m2"}))

	// All models errored is still a completed session; failed is reserved
	// for orchestration faults.
	got := repo.session(t, sess.ID)
	assert.Equal(t, store.SessionCompleted, got.Status)
	assert.Equal(t, 0, got.TotalTokens)
	assert.Equal(t, 0.0, got.TotalCost)
	assert.Equal(t, int64(0), got.AvgResponseMs)
}

func TestStartComparisonNoTerminalLeftBehind(t *testing.T) {
	repo := newMemRepo()
	resolver := fakeResolver{
		"ok":    &scriptedAdapter{name: "alpha", chunks: []string{"fine"}},
		"fails": &scriptedAdapter{name: "beta", err: errors.New("boom")},
	}
	svc := NewService(repo, resolver, NewRelay())
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "hi", "user-1")
	require.NoError(t, err)
	require.NoError(t, svc.StartComparison(ctx, sess.ID, "user-1", []string{"ok", "fails", "ghost"}))

	for _, id := range []string{"ok", "fails", "ghost"} {
		r := repo.response(t, sess.ID, id)
		assert.Contains(t, []store.ResponseStatus{store.ResponseCompleted, store.ResponseError}, r.Status, id)
	}
	assert.Equal(t, "model not found", repo.response(t, sess.ID, "ghost").ErrorMessage)
}

func TestStartComparisonInfrastructureFailure(t *testing.T) {
	repo := newMemRepo()
	repo.failCreateResponse = true
	svc := NewService(repo, fakeResolver{"m1": &scriptedAdapter{name: "alpha"}}, NewRelay())
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "hi", "user-1")
	require.NoError(t, err)

	err = svc.StartComparison(ctx, sess.ID, "user-1", []string{"m1"})
	require.Error(t, err)
	assert.Equal(t, store.SessionFailed, repo.session(t, sess.ID).Status)
}

func TestStartComparisonPersistenceFailureDuringStreaming(t *testing.T) {
	repo := newMemRepo()
	repo.failAppend = true
	resolver := fakeResolver{"m1": &scriptedAdapter{name: "alpha", chunks: []string{"x"}}}
	svc := NewService(repo, resolver, NewRelay())
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "hi", "user-1")
	require.NoError(t, err)

	err = svc.StartComparison(ctx, sess.ID, "user-1", []string{"m1"})
	require.Error(t, err)
	assert.Equal(t, store.SessionFailed, repo.session(t, sess.ID).Status)
}

func TestStartComparisonRejectsWrongUser(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, fakeResolver{}, NewRelay())
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "hi", "user-1")
	require.NoError(t, err)

	err = svc.StartComparison(ctx, sess.ID, "someone-else", []string{"m1"})
	assert.Error(t, err)
	// Authorization failures are not orchestration faults.
	assert.Equal(t, store.SessionPending, repo.session(t, sess.ID).Status)
}

func TestStartComparisonBroadcastsEvents(t *testing.T) {
	repo := newMemRepo()
	relay := NewRelay()
	resolver := fakeResolver{
		"m1": &scriptedAdapter{name: "alpha", chunks: []string{"a", "b"}},
	}
	svc := NewService(repo, resolver, relay)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "hi", "user-1")
	require.NoError(t, err)

	ch := relay.Subscribe(sess.ID, "obs1")
	require.NoError(t, svc.StartComparison(ctx, sess.ID, "user-1", []string{"m1"}))

	var types []string
	var chunks []string
	for len(ch) > 0 {
		ev := <-ch
		types = append(types, ev.Type)
		if ev.Type == EventModelChunk {
			chunks = append(chunks, ev.Chunk)
		}
	}
	assert.Equal(t, []string{EventModelChunk, EventModelChunk, EventModelComplete, EventComparisonComplete}, types)
	assert.Equal(t, []string{"a", "b"}, chunks)
}
