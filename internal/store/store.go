package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store provides database operations for sessions and model responses.
type Store struct {
	db *sql.DB
}

// NewStore creates a new database connection and initializes the schema.
func NewStore(ctx context.Context, dbPath string) (*Store, error) {
	// Enable WAL mode for better concurrency and set busy timeout
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't support multiple writers well
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// initSchema creates the database tables if they don't exist.
func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	-- Comparison sessions
	CREATE TABLE IF NOT EXISTS sessions (
		id              TEXT PRIMARY KEY,
		prompt          TEXT NOT NULL,
		status          TEXT NOT NULL DEFAULT 'pending',
		total_tokens    INTEGER NOT NULL DEFAULT 0,
		total_cost      REAL NOT NULL DEFAULT 0,
		avg_response_ms INTEGER NOT NULL DEFAULT 0,
		user_id         TEXT NOT NULL,
		created_at      INTEGER NOT NULL,
		updated_at      INTEGER NOT NULL
	);

	-- One row per (session, model) pair
	CREATE TABLE IF NOT EXISTS model_responses (
		id               TEXT PRIMARY KEY,
		session_id       TEXT NOT NULL,
		model_id         TEXT NOT NULL,
		provider         TEXT NOT NULL,
		response         TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL DEFAULT 'pending',
		input_tokens     INTEGER NOT NULL DEFAULT 0,
		output_tokens    INTEGER NOT NULL DEFAULT 0,
		cost             REAL NOT NULL DEFAULT 0,
		response_time_ms INTEGER NOT NULL DEFAULT 0,
		error_message    TEXT,
		created_at       INTEGER NOT NULL,
		updated_at       INTEGER NOT NULL,
		UNIQUE (session_id, model_id),
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);
	CREATE INDEX IF NOT EXISTS idx_responses_session ON model_responses(session_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// CreateSession inserts a new session row.
func (s *Store) CreateSession(ctx context.Context, sess *Session) error {
	query := `
		INSERT INTO sessions (id, prompt, status, total_tokens, total_cost, avg_response_ms, user_id, created_at, updated_at)
		VALUES (?, ?, ?, 0, 0, 0, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		sess.ID, sess.Prompt, string(sess.Status), sess.UserID,
		sess.CreatedAt.Unix(), sess.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// GetSession returns one session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	query := `
		SELECT id, prompt, status, total_tokens, total_cost, avg_response_ms, user_id, created_at, updated_at
		FROM sessions WHERE id = ?
	`
	row := s.db.QueryRowContext(ctx, query, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	return sess, nil
}

// ListSessions returns a user's sessions, newest first.
func (s *Store) ListSessions(ctx context.Context, userID string, limit, offset int) ([]Session, error) {
	query := `
		SELECT id, prompt, status, total_tokens, total_cost, avg_response_ms, user_id, created_at, updated_at
		FROM sessions
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}

// UpdateSessionStatus advances a session's lifecycle status. Terminal rows
// are never touched, so the status can only move forward.
func (s *Store) UpdateSessionStatus(ctx context.Context, id string, status SessionStatus) error {
	query := `
		UPDATE sessions SET status = ?, updated_at = ?
		WHERE id = ? AND status NOT IN ('completed', 'failed')
	`
	_, err := s.db.ExecContext(ctx, query, string(status), time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	return nil
}

// UpdateSessionAggregates writes the derived session totals.
func (s *Store) UpdateSessionAggregates(ctx context.Context, id string, totalTokens int, totalCost float64, avgResponseMs int64) error {
	query := `
		UPDATE sessions SET total_tokens = ?, total_cost = ?, avg_response_ms = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := s.db.ExecContext(ctx, query, totalTokens, totalCost, avgResponseMs, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update session aggregates: %w", err)
	}
	return nil
}

// CreateModelResponse inserts a pending response row for one model.
func (s *Store) CreateModelResponse(ctx context.Context, r *ModelResponse) error {
	query := `
		INSERT INTO model_responses (id, session_id, model_id, provider, response, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, '', ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.SessionID, r.ModelID, r.Provider, string(r.Status),
		r.CreatedAt.Unix(), r.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert model response: %w", err)
	}
	return nil
}

// AppendResponseChunk concatenates one text increment onto a response and
// marks it streaming. Terminal rows are left untouched.
func (s *Store) AppendResponseChunk(ctx context.Context, sessionID, modelID, chunk string) error {
	query := `
		UPDATE model_responses
		SET response = response || ?, status = ?, updated_at = ?
		WHERE session_id = ? AND model_id = ? AND status IN ('pending', 'streaming')
	`
	_, err := s.db.ExecContext(ctx, query, chunk, string(ResponseStreaming), time.Now().Unix(), sessionID, modelID)
	if err != nil {
		return fmt.Errorf("failed to append response chunk: %w", err)
	}
	return nil
}

// CompleteModelResponse writes the final metrics and marks the response
// completed, in one statement.
func (s *Store) CompleteModelResponse(ctx context.Context, sessionID, modelID string, inputTokens, outputTokens int, cost float64, responseTimeMs int64) error {
	query := `
		UPDATE model_responses
		SET status = ?, input_tokens = ?, output_tokens = ?, cost = ?, response_time_ms = ?, updated_at = ?
		WHERE session_id = ? AND model_id = ? AND status IN ('pending', 'streaming')
	`
	_, err := s.db.ExecContext(ctx, query,
		string(ResponseCompleted), inputTokens, outputTokens, cost, responseTimeMs,
		time.Now().Unix(), sessionID, modelID)
	if err != nil {
		return fmt.Errorf("failed to complete model response: %w", err)
	}
	return nil
}

// FailModelResponse marks a response errored and stores the reason.
// Errored rows receive no further mutation.
func (s *Store) FailModelResponse(ctx context.Context, sessionID, modelID, errorMessage string) error {
	query := `
		UPDATE model_responses
		SET status = ?, error_message = ?, updated_at = ?
		WHERE session_id = ? AND model_id = ? AND status IN ('pending', 'streaming')
	`
	_, err := s.db.ExecContext(ctx, query, string(ResponseError), errorMessage, time.Now().Unix(), sessionID, modelID)
	if err != nil {
		return fmt.Errorf("failed to mark model response as errored: %w", err)
	}
	return nil
}

// GetResponses returns all responses of a session, ordered by model id.
func (s *Store) GetResponses(ctx context.Context, sessionID string) ([]ModelResponse, error) {
	query := `
		SELECT id, session_id, model_id, provider, response, status,
		       input_tokens, output_tokens, cost, response_time_ms, error_message,
		       created_at, updated_at
		FROM model_responses
		WHERE session_id = ?
		ORDER BY model_id
	`
	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query model responses: %w", err)
	}
	defer rows.Close()

	var responses []ModelResponse
	for rows.Next() {
		var r ModelResponse
		var status string
		var errMsg sql.NullString
		var createdAt, updatedAt int64
		err := rows.Scan(&r.ID, &r.SessionID, &r.ModelID, &r.Provider, &r.Response, &status,
			&r.InputTokens, &r.OutputTokens, &r.Cost, &r.ResponseTimeMs, &errMsg,
			&createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model response: %w", err)
		}
		r.Status = ResponseStatus(status)
		if errMsg.Valid {
			r.ErrorMessage = errMsg.String
		}
		r.CreatedAt = time.Unix(createdAt, 0)
		r.UpdatedAt = time.Unix(updatedAt, 0)
		responses = append(responses, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating model responses: %w", err)
	}
	return responses, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var sess Session
	var status string
	var createdAt, updatedAt int64
	err := row.Scan(&sess.ID, &sess.Prompt, &status, &sess.TotalTokens, &sess.TotalCost,
		&sess.AvgResponseMs, &sess.UserID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	sess.Status = SessionStatus(status)
	sess.CreatedAt = time.Unix(createdAt, 0)
	sess.UpdatedAt = time.Unix(updatedAt, 0)
	return &sess, nil
}
