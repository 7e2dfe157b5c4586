// Package session owns every live WebSocket connection: admission,
// frame handling, client-close handling, management-API-driven pushes,
// and graceful shutdown.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/localstackws/wsgateway/internal/event"
	"github.com/localstackws/wsgateway/internal/timeout"
)

// State names the lifecycle stage a session is in.
type State int

const (
	StateAdmitting State = iota
	StateActive
	StateClosingClient
	StateClosingIdle
	StateClosingHard
	StateClosingAdmin
	StateClosingShutdown
	StateClosingFailed
	StateGone
)

// Session is one accepted WebSocket connection.
type Session struct {
	ID          string
	Conn        *websocket.Conn
	ConnectedAt time.Time
	SourceIP    string
	UserAgent   string
	Headers     map[string]string
	Query       map[string]string

	lastActivity atomic.Int64 // unix millis

	timers *timeout.Controller

	mu    sync.Mutex // guards writeMu-adjacent state transitions and State
	state State

	writeMu sync.Mutex // serializes writes to Conn
}

// NewSession builds a Session from connect-time data. It does not start
// timers or register the session anywhere; callers do that via Manager.
func NewSession(id string, conn *websocket.Conn, connectedAt time.Time, sourceIP, userAgent string, headers, query map[string]string) *Session {
	s := &Session{
		ID:          id,
		Conn:        conn,
		ConnectedAt: connectedAt,
		SourceIP:    sourceIP,
		UserAgent:   userAgent,
		Headers:     headers,
		Query:       query,
		state:       StateAdmitting,
	}
	s.lastActivity.Store(connectedAt.UnixMilli())
	return s
}

// Snapshot returns the connect-time data needed to build outbound events.
func (s *Session) Snapshot() event.ConnectionSnapshot {
	return event.ConnectionSnapshot{
		ConnectionID: s.ID,
		ConnectedAt:  s.ConnectedAt,
		SourceIP:     s.SourceIP,
		UserAgent:    s.UserAgent,
		Headers:      s.Headers,
		Query:        s.Query,
	}
}

// LastActivity returns the last observed activity time.
func (s *Session) LastActivity() time.Time {
	return time.UnixMilli(s.lastActivity.Load())
}

// touch records activity now, which also resets the idle timer.
func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixMilli())
	if s.timers != nil {
		s.timers.ResetIdle()
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// transition moves the session to a new state and reports whether the
// transition was accepted (false if the session is already leaving/gone).
func (s *Session) transition(to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateGone || s.state >= StateClosingClient {
		return false
	}
	s.state = to
	return true
}

// markGone finalizes the session state. Idempotent.
func (s *Session) markGone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateGone
}

// writeText writes a text frame, serialized against concurrent writers.
func (s *Session) writeText(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.Conn.WriteMessage(websocket.TextMessage, data)
}

// writeClose writes a close frame with the given code/reason, serialized
// against concurrent writers. Errors are not actionable here: the socket
// is being torn down regardless.
func (s *Session) writeClose(code int, reason string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = s.Conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(2*time.Second))
}
