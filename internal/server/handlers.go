package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ChamsBouzaiene/modelarena/internal/logger"
	"github.com/ChamsBouzaiene/modelarena/internal/provider"
	"github.com/ChamsBouzaiene/modelarena/internal/store"
)

// maxRequestBody caps JSON request bodies well above the prompt limit.
const maxRequestBody = 64 * 1024

// SessionReader is the read-side persistence surface used by the HTTP API.
// *store.Store satisfies it.
type SessionReader interface {
	GetSession(ctx context.Context, id string) (*store.Session, error)
	GetResponses(ctx context.Context, sessionID string) ([]store.ModelResponse, error)
	ListSessions(ctx context.Context, userID string, limit, offset int) ([]store.Session, error)
}

type createComparisonRequest struct {
	Prompt   string   `json:"prompt"`
	ModelIDs []string `json:"modelIds"`
}

type createComparisonResponse struct {
	SessionID string    `json:"sessionId"`
	Prompt    string    `json:"prompt"`
	Models    []string  `json:"models"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type sessionDetail struct {
	store.Session
	Responses []store.ModelResponse `json:"responses"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// userID extracts the authenticated user identifier. Identity is an
// external collaborator; the opaque header value is trusted as-is.
func userID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return "anonymous"
}

func (s *Server) handleCreateComparison(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if err := validateCreateComparison(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req createComparisonRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.ModelIDs) == 0 {
		req.ModelIDs = s.cfg.DefaultModels
	}

	sess, err := s.service.CreateSession(r.Context(), req.Prompt, userID(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, createComparisonResponse{
		SessionID: sess.ID,
		Prompt:    sess.Prompt,
		Models:    req.ModelIDs,
		Status:    string(sess.Status),
		CreatedAt: sess.CreatedAt,
	})
}

func (s *Server) handleGetComparison(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	sess, err := s.reader.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	responses, err := s.reader.GetResponses(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load responses")
		return
	}
	if responses == nil {
		responses = []store.ModelResponse{}
	}

	writeJSON(w, http.StatusOK, sessionDetail{Session: *sess, Responses: responses})
}

func (s *Server) handleListComparisons(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	sessions, err := s.reader.ListSessions(r.Context(), userID(r), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []store.Session{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"limit":    limit,
		"offset":   offset,
	})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models := s.registry.List()
	if models == nil {
		models = []provider.ModelInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
