package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	domainnotification "github.com/felixgeelhaar/dynamic-mcp/domain/notification"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/logging"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/notification"
)

// SnapshotMessage is the first message of a /tools/events session.
type SnapshotMessage struct {
	Type     string   `json:"type"`
	Session  string   `json:"session"`
	Revision uint64   `json:"revision"`
	Tools    []string `json:"tools"`
}

const (
	snapshotType = "tools.snapshot"
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// handleToolEvents streams tool-change events over a websocket. The session
// starts with a snapshot of the tool list; every later change arrives as a
// tools.list_changed event.
func (s *Server) handleToolEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return
	}

	sessionID := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())
	if !s.addSession(sessionID, cancel) {
		cancel()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	listener := notification.NewChannelListener(16)
	handle := s.config.Runtime.Attach(listener)

	defer func() {
		s.config.Runtime.Detach(handle)
		listener.Close()
		cancel()
		_ = conn.Close()
		s.removeSession(sessionID)

		logging.Debug().
			Add(logging.Component("rest")).
			Add(logging.ListenerID(string(handle))).
			Add(logging.Str("session", sessionID)).
			Msg("event session closed")
	}()

	logging.Debug().
		Add(logging.Component("rest")).
		Add(logging.ListenerID(string(handle))).
		Add(logging.Str("session", sessionID)).
		Msg("event session opened")

	tools, revision := s.config.Runtime.Snapshot()
	snapshot := SnapshotMessage{Type: snapshotType, Session: sessionID, Revision: revision, Tools: make([]string, 0, len(tools))}
	for _, d := range tools {
		snapshot.Tools = append(snapshot.Tools, d.Name())
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(snapshot); err != nil {
		return
	}

	// The client sends nothing; reading detects a closed connection.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(s.config.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case event := <-listener.Events():
			if !s.writeEvent(conn, event) {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeEvent(conn *websocket.Conn, event *domainnotification.Event) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(event); err != nil {
		logging.Debug().
			Add(logging.Component("rest")).
			Add(logging.Revision(event.Revision)).
			Add(logging.ErrorField(err)).
			Msg("event write failed")
		return false
	}
	return true
}

func (s *Server) addSession(id string, cancel context.CancelFunc) bool {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	if s.closing {
		return false
	}
	s.sessions[id] = cancel
	s.sessionsWG.Add(1)
	return true
}

func (s *Server) removeSession(id string) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	if _, ok := s.sessions[id]; ok {
		delete(s.sessions, id)
		s.sessionsWG.Done()
	}
}
