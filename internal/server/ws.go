package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ChamsBouzaiene/modelarena/internal/comparison"
	"github.com/ChamsBouzaiene/modelarena/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSMessage is the wire shape of inbound control messages.
type WSMessage struct {
	Type      string   `json:"type"`
	SessionID string   `json:"sessionId,omitempty"`
	ModelIDs  []string `json:"modelIds,omitempty"`
	UserID    string   `json:"userId,omitempty"`
}

// wsAck is the wire shape of control acks and channel errors.
type wsAck struct {
	Type      string    `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// wsClient serializes writes to one connection; relay forwarders and the
// control loop both write.
type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	observerID string
	userID     string

	mu     sync.Mutex
	joined map[string]chan struct{} // sessionID -> forwarder stop signal
}

func (c *wsClient) write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// handleWebSocket runs one observer's control channel.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		conn:       conn,
		observerID: uuid.New().String(),
		userID:     userID(r),
		joined:     make(map[string]chan struct{}),
	}
	logger.Info("observer connected", "observer_id", client.observerID)

	defer s.disconnect(client)
	s.messageLoop(client)
}

// disconnect detaches the observer from every joined session. Underlying
// fan-outs keep running; only this observer's delivery stops.
func (s *Server) disconnect(client *wsClient) {
	client.mu.Lock()
	sessions := make([]string, 0, len(client.joined))
	for sessionID := range client.joined {
		sessions = append(sessions, sessionID)
	}
	client.mu.Unlock()

	for _, sessionID := range sessions {
		s.leaveSession(client, sessionID)
	}

	if err := client.conn.Close(); err != nil {
		logger.Debug("failed to close websocket connection", "error", err)
	}
	logger.Info("observer disconnected", "observer_id", client.observerID)
}

func (s *Server) messageLoop(client *wsClient) {
	for {
		var msg WSMessage
		if err := client.conn.ReadJSON(&msg); err != nil {
			logger.Debug("websocket read ended", "observer_id", client.observerID, "error", err)
			return
		}

		switch msg.Type {
		case "join_session":
			s.handleJoin(client, msg)
		case "leave_session":
			s.handleLeave(client, msg)
		case "start_comparison":
			s.handleStart(client, msg)
		default:
			s.sendError(client, fmt.Sprintf("unknown message type: %s", msg.Type))
		}
	}
}

func (s *Server) handleJoin(client *wsClient, msg WSMessage) {
	if msg.SessionID == "" {
		s.sendError(client, "sessionId required")
		return
	}

	events := s.service.Relay().Subscribe(msg.SessionID, client.observerID)
	stop := make(chan struct{})

	client.mu.Lock()
	if prev, ok := client.joined[msg.SessionID]; ok {
		close(prev)
	}
	client.joined[msg.SessionID] = stop
	client.mu.Unlock()

	go s.forwardEvents(client, events, stop)

	s.sendAck(client, wsAck{Type: "session_joined", SessionID: msg.SessionID, Timestamp: time.Now().UTC()})
}

func (s *Server) handleLeave(client *wsClient, msg WSMessage) {
	if msg.SessionID == "" {
		s.sendError(client, "sessionId required")
		return
	}
	s.leaveSession(client, msg.SessionID)
	s.sendAck(client, wsAck{Type: "session_left", SessionID: msg.SessionID, Timestamp: time.Now().UTC()})
}

func (s *Server) leaveSession(client *wsClient, sessionID string) {
	client.mu.Lock()
	stop, ok := client.joined[sessionID]
	if ok {
		delete(client.joined, sessionID)
	}
	client.mu.Unlock()

	if ok {
		close(stop)
	}
	s.service.Relay().Unsubscribe(sessionID, client.observerID)
}

func (s *Server) handleStart(client *wsClient, msg WSMessage) {
	if msg.SessionID == "" {
		s.sendError(client, "sessionId required")
		return
	}
	modelIDs := msg.ModelIDs
	if len(modelIDs) == 0 {
		modelIDs = s.cfg.DefaultModels
	}
	uid := msg.UserID
	if uid == "" {
		uid = client.userID
	}

	// Fire and forget: the run is not tied to this connection's lifetime.
	// Failures surface through the relay as comparison_error.
	go func() {
		if err := s.service.StartComparison(context.Background(), msg.SessionID, uid, modelIDs); err != nil {
			logger.Error("comparison failed", "session_id", msg.SessionID, "error", err)
		}
	}()
}

// forwardEvents pushes relayed session events to the observer until its
// subscription ends.
func (s *Server) forwardEvents(client *wsClient, events <-chan comparison.Event, stop <-chan struct{}) {
	for {
		select {
		case ev, open := <-events:
			if !open {
				return
			}
			if err := client.write(ev); err != nil {
				logger.Debug("failed to forward event", "observer_id", client.observerID, "error", err)
				return
			}
		case <-stop:
			return
		}
	}
}

func (s *Server) sendAck(client *wsClient, ack wsAck) {
	if err := client.write(ack); err != nil {
		logger.Debug("failed to send ack", "observer_id", client.observerID, "error", err)
	}
}

func (s *Server) sendError(client *wsClient, msg string) {
	s.sendAck(client, wsAck{Type: "error", Error: msg, Timestamp: time.Now().UTC()})
}
