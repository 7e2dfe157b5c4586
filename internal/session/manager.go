package session

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/localstackws/wsgateway/internal/config"
	"github.com/localstackws/wsgateway/internal/dispatch"
	"github.com/localstackws/wsgateway/internal/event"
	"github.com/localstackws/wsgateway/internal/idgen"
	"github.com/localstackws/wsgateway/internal/route"
	"github.com/localstackws/wsgateway/internal/timeout"
)

// Info is the externally visible shape of a session, used by the
// management API and the dashboard.
type Info struct {
	ConnectionID string    `json:"connectionId"`
	ConnectedAt  time.Time `json:"connectedAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
	SourceIP     string    `json:"sourceIp"`
}

func makeUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return true // no browser-origin enforcement; this is a local emulator
		},
	}
}

// Manager owns every live session and drives its lifecycle.
type Manager struct {
	cfg        *config.Config
	dispatcher *dispatch.Dispatcher
	selector   *route.Selector
	upgrader   websocket.Upgrader
	logger     *slog.Logger
	startedAt  time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager builds a Manager wired to the given configuration and dispatcher.
func NewManager(cfg *config.Config, dispatcher *dispatch.Dispatcher, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:        cfg,
		dispatcher: dispatcher,
		selector:   route.NewSelector(cfg.Integrations.RouteSelectExpression, cfg.Integrations.Table),
		upgrader:   makeUpgrader(),
		logger:     logger.With("component", "session_manager"),
		startedAt:  time.Now(),
		sessions:   make(map[string]*Session),
	}
}

// HandleWebSocket upgrades the request and runs the session's lifecycle
// until the socket closes, the session is torn down, or the server shuts
// down. It blocks for the lifetime of the connection.
func (m *Manager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	id := idgen.NewConnectionID()
	now := time.Now()

	headers := make(map[string]string, len(r.Header)+1)
	for k := range r.Header {
		headers[strings.ToLower(k)] = r.Header.Get(k)
	}
	// net/http promotes Host out of r.Header into r.Host; put it back so
	// it's captured like every other connect-time header.
	headers["host"] = r.Host
	query := make(map[string]string, len(r.URL.Query()))
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			query[k] = v[len(v)-1]
		}
	}

	sess := NewSession(id, conn, now, sourceIP(r), r.UserAgent(), headers, query)

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	sess.timers = timeout.Start(m.cfg.Session.IdleTimeout.Duration, m.cfg.Session.HardTimeout.Duration, func(k timeout.Kind) {
		m.onTimeout(sess, k)
	})

	ctx := context.Background()
	outcome := m.dispatcher.Dispatch(ctx, dispatch.Params{
		RouteKey:  "$connect",
		Snapshot:  sess.Snapshot(),
		EventType: event.TypeConnect,
		RequestID: idgen.NewRequestID(),
	})

	if outcome != dispatch.Accepted {
		m.logger.Warn("backend rejected connect", "connectionId", id, "outcome", outcome.String())
		sess.transition(StateClosingFailed)
		sess.timers.Cancel()
		sess.writeClose(websocket.CloseInternalServerErr, "Backend connect failed")
		_ = conn.Close()
		m.remove(id)
		return
	}

	sess.transition(StateActive)
	m.logger.Info("session admitted", "connectionId", id, "sourceIp", sess.SourceIP)

	m.readLoop(sess)
}

// readLoop reads frames until the client closes or the connection errors,
// then runs the disconnect sequence. It never returns early on a single
// failed dispatch: message dispatch failures are logged and dropped.
func (m *Manager) readLoop(sess *Session) {
	var closeCode = websocket.CloseNormalClosure
	var closeReason string

	for {
		msgType, data, err := sess.Conn.ReadMessage()
		if err != nil {
			if ce, ok := err.(*websocket.CloseError); ok {
				closeCode = ce.Code
				closeReason = ce.Text
			}
			break
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}

		if sess.State() != StateActive {
			continue
		}

		// Lossy UTF-8 decode for both text and binary frames.
		text := strings.ToValidUTF8(string(data), "�")
		sess.touch()

		routeKey := m.selector.Select(text)
		outcome := m.dispatcher.Dispatch(context.Background(), dispatch.Params{
			RouteKey:  routeKey,
			Snapshot:  sess.Snapshot(),
			EventType: event.TypeMessage,
			Body:      text,
			RequestID: idgen.NewRequestID(),
			MessageID: idgen.NewRequestID(),
		})
		if outcome != dispatch.Accepted {
			m.logger.Warn("message dispatch not accepted", "connectionId", sess.ID, "routeKey", routeKey, "outcome", outcome.String())
		}
	}

	m.disconnect(sess, closeCode, closeReason, StateClosingClient)
}

// onTimeout fires when either of a session's timers expires.
func (m *Manager) onTimeout(sess *Session, kind timeout.Kind) {
	var state State
	var reason string
	if kind == timeout.Hard {
		state = StateClosingHard
		reason = "Hard timeout exceeded"
	} else {
		state = StateClosingIdle
		reason = "Idle timeout exceeded"
	}

	if !sess.transition(state) {
		return // already closing/gone
	}
	m.logger.Info("session timed out", "connectionId", sess.ID, "kind", kind.String())
	sess.writeClose(websocket.CloseGoingAway, reason)
	_ = sess.Conn.Close()
	m.disconnectAlreadyTransitioned(sess, websocket.CloseGoingAway, reason, state)
}

// disconnect runs the full disconnect sequence for a session whose close
// was observed on the read loop (client-initiated or error).
func (m *Manager) disconnect(sess *Session, code int, reason string, state State) {
	if !sess.transition(state) {
		// Another path (timeout, admin delete) already started closing;
		// avoid double dispatch.
		return
	}
	m.disconnectAlreadyTransitioned(sess, code, reason, state)
}

// disconnectAlreadyTransitioned performs the dispatch+cleanup shared by
// every closing path once the state transition has already been accepted.
func (m *Manager) disconnectAlreadyTransitioned(sess *Session, code int, reason string, state State) {
	sess.timers.Cancel()

	if state != StateClosingShutdown {
		m.dispatcher.Dispatch(context.Background(), dispatch.Params{
			RouteKey:  "$disconnect",
			Snapshot:  sess.Snapshot(),
			EventType: event.TypeDisconnect,
			Disconnect: &event.DisconnectInfo{
				Code:   code,
				Reason: reason,
			},
			RequestID: idgen.NewRequestID(),
		})
	}

	sess.markGone()
	m.remove(sess.ID)
	m.logger.Info("session closed", "connectionId", sess.ID, "state", int(state))
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Push writes body as a text frame to the named session and records
// activity. Returns false if the session is unknown or already closed.
func (m *Manager) Push(id string, body []byte) bool {
	sess, ok := m.get(id)
	if !ok || sess.State() != StateActive {
		return false
	}
	if err := sess.writeText(body); err != nil {
		return false
	}
	sess.touch()
	return true
}

// Info returns the externally visible info for a session.
func (m *Manager) Info(id string) (Info, bool) {
	sess, ok := m.get(id)
	if !ok {
		return Info{}, false
	}
	return Info{
		ConnectionID: sess.ID,
		ConnectedAt:  sess.ConnectedAt,
		LastActiveAt: sess.LastActivity(),
		SourceIP:     sess.SourceIP,
	}, true
}

// Delete closes the named session via the management API path (code 1000).
// Returns false if the session is unknown or already closed.
func (m *Manager) Delete(id string) bool {
	sess, ok := m.get(id)
	if !ok {
		return false
	}
	if !sess.transition(StateClosingAdmin) {
		return false
	}
	sess.writeClose(websocket.CloseNormalClosure, "Closed by management API")
	_ = sess.Conn.Close()
	m.disconnectAlreadyTransitioned(sess, websocket.CloseNormalClosure, "Closed by management API", StateClosingAdmin)
	return true
}

func (m *Manager) get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Uptime returns how long the manager has been running.
func (m *Manager) Uptime() time.Duration {
	return time.Since(m.startedAt)
}

// List returns info for every live session, for the dashboard and the
// additive GET /@connections listing endpoint.
func (m *Manager) List() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Info, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, Info{
			ConnectionID: sess.ID,
			ConnectedAt:  sess.ConnectedAt,
			LastActiveAt: sess.LastActivity(),
			SourceIP:     sess.SourceIP,
		})
	}
	return out
}

// Shutdown closes every live session with code 1001 and cancels its
// timers, per the declared graceful-shutdown sequence. It does not
// dispatch $disconnect for any of them.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.Unlock()

	for _, sess := range sessions {
		if !sess.transition(StateClosingShutdown) {
			continue
		}
		sess.writeClose(websocket.CloseGoingAway, "Server shutting down")
		_ = sess.Conn.Close()
		m.disconnectAlreadyTransitioned(sess, websocket.CloseGoingAway, "Server shutting down", StateClosingShutdown)
	}
}

func sourceIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4.String()
		}
	}
	return host
}
