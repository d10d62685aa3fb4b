package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChamsBouzaiene/modelarena/internal/comparison"
	"github.com/ChamsBouzaiene/modelarena/internal/config"
	"github.com/ChamsBouzaiene/modelarena/internal/provider"
	"github.com/ChamsBouzaiene/modelarena/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.NewStore(context.Background(), filepath.Join(t.TempDir(), "arena.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	registry := provider.NewRegistry()
	cfg := &config.Config{
		Addr:          ":0",
		DefaultModels: []string{"gpt-4o", "claude-3-5-sonnet-20241022"},
	}
	service := comparison.NewService(st, registry, comparison.NewRelay())
	return NewServer(cfg, service, st, registry), st
}

func doJSON(t *testing.T, handler http.Handler, method, path, body, user string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateComparison(t *testing.T) {
	s, _ := newTestServer(t)
	handler := s.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/comparisons",
		`{"prompt": "Explain recursion", "modelIds": ["m1", "m2"]}`, "user-1")
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp createComparisonResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "Explain recursion", resp.Prompt)
	assert.Equal(t, []string{"m1", "m2"}, resp.Models)
	assert.Equal(t, "pending", resp.Status)
	assert.WithinDuration(t, time.Now().UTC(), resp.CreatedAt, time.Minute)
}

func TestCreateComparisonDefaultsModels(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/comparisons",
		`{"prompt": "hi"}`, "user-1")
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp createComparisonResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"gpt-4o", "claude-3-5-sonnet-20241022"}, resp.Models)
}

func TestCreateComparisonValidation(t *testing.T) {
	s, _ := newTestServer(t)
	handler := s.Handler()

	tests := []struct {
		name string
		body string
	}{
		{name: "empty prompt", body: `{"prompt": ""}`},
		{name: "missing prompt", body: `{"modelIds": ["m1"]}`},
		{name: "oversized prompt", body: `{"prompt": "` + strings.Repeat("x", 10001) + `"}`},
		{name: "not json", body: `this is not json`},
		{name: "wrong modelIds type", body: `{"prompt": "hi", "modelIds": "m1"}`},
		{name: "unknown field", body: `{"prompt": "hi", "surprise": true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPost, "/api/comparisons", tt.body, "user-1")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGetComparison(t *testing.T) {
	s, _ := newTestServer(t)
	handler := s.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/comparisons", `{"prompt": "hi"}`, "user-1")
	require.Equal(t, http.StatusCreated, rec.Code)
	var created createComparisonResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, handler, http.MethodGet, "/api/comparisons/"+created.SessionID, "", "user-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var detail sessionDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, created.SessionID, detail.ID)
	assert.NotNil(t, detail.Responses)
}

func TestGetComparisonNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/comparisons/no-such-id", "", "user-1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListComparisonsScopedToUser(t *testing.T) {
	s, _ := newTestServer(t)
	handler := s.Handler()

	for i := 0; i < 3; i++ {
		rec := doJSON(t, handler, http.MethodPost, "/api/comparisons", `{"prompt": "hi"}`, "user-1")
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := doJSON(t, handler, http.MethodPost, "/api/comparisons", `{"prompt": "hi"}`, "user-2")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/comparisons?limit=10", "", "user-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Sessions []store.Session `json:"sessions"`
		Limit    int             `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Sessions, 3)
	assert.Equal(t, 10, resp.Limit)
}

func TestListModelsEmptyRegistry(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/models", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"models": []}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
