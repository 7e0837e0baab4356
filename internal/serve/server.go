// Package serve exposes agents over WebSocket. Each connection drives one
// in-memory session; a dropped client can reconnect and replay the events
// it missed.
package serve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/floatchat/floatchat/internal/agent"
	"github.com/floatchat/floatchat/internal/session"
)

const (
	gcInterval  = 5 * time.Minute
	idleTimeout = 30 * time.Minute
	writeWait   = 10 * time.Second
)

// AgentFactory creates the agent backing a new session.
type AgentFactory func(id string) (*agent.Agent, error)

// Options configures a SessionManager.
type Options struct {
	Token  string
	Logger *slog.Logger
}

// RemoteSession tracks a remote WebSocket chat session.
type RemoteSession struct {
	ID           string
	Agent        *agent.Agent
	EventBuf     []WireEvent
	NextSeq      int64
	LastActiveAt time.Time
	mu           sync.Mutex
	conn         *websocket.Conn
	streaming    bool
	cancelStream context.CancelFunc

	// gorilla allows one concurrent writer per connection
	writeMu sync.Mutex
}

// SessionManager manages active remote chat sessions.
type SessionManager struct {
	sessions map[string]*RemoteSession
	mu       sync.RWMutex
	factory  AgentFactory
	token    string
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewSessionManager creates a session manager that builds agents with
// factory.
func NewSessionManager(factory AgentFactory, opts Options) *SessionManager {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &SessionManager{
		sessions: make(map[string]*RemoteSession),
		factory:  factory,
		token:    strings.TrimSpace(opts.Token),
		log:      log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HTTPHandler returns an http.Handler for the session endpoints.
func (m *SessionManager) HTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sessions", m.auth(m.handleListSessions))
	mux.HandleFunc("/sessions/new", m.auth(m.handleNewSession))
	mux.HandleFunc("/sessions/", m.auth(m.handleResumeSession))
	return mux
}

// Serve listens on addr until ctx is cancelled, then shuts down and
// cancels every running turn.
func (m *SessionManager) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return m.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (m *SessionManager) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           m.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	gcCtx, stopGC := context.WithCancel(ctx)
	defer stopGC()
	go m.StartGC(gcCtx)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	m.log.Info("serving", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	m.Close()
	return err
}

// Close cancels running turns and disconnects every client.
func (m *SessionManager) Close() {
	m.mu.RLock()
	sessions := make([]*RemoteSession, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.RUnlock()

	for _, sess := range sessions {
		sess.mu.Lock()
		cancel := sess.cancelStream
		conn := sess.conn
		sess.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		if conn != nil {
			_ = conn.Close()
		}
	}
}

// StartGC starts background GC for inactive sessions.
func (m *SessionManager) StartGC(ctx context.Context) {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.gcSessions(time.Now().Add(-idleTimeout))
		case <-ctx.Done():
			return
		}
	}
}

func (m *SessionManager) gcSessions(cutoff time.Time) {
	var stale []*RemoteSession

	m.mu.Lock()
	for id, sess := range m.sessions {
		sess.mu.Lock()
		inactive := sess.LastActiveAt.Before(cutoff)
		busy := sess.streaming
		connected := sess.conn != nil
		sess.mu.Unlock()
		if inactive && !busy && !connected {
			delete(m.sessions, id)
			stale = append(stale, sess)
		}
	}
	m.mu.Unlock()

	for _, sess := range stale {
		if err := sess.Agent.Delete(); err != nil {
			m.log.Debug("gc delete", "session", sess.ID, "error", err)
		}
	}
	if len(stale) > 0 {
		m.log.Info("collected idle sessions", "count", len(stale))
	}
}

// SessionInfo is one entry of the session listing.
type SessionInfo struct {
	ID         string    `json:"id"`
	Backend    string    `json:"backend"`
	Status     string    `json:"status"`
	Messages   int       `json:"messages"`
	Connected  bool      `json:"connected"`
	LastActive time.Time `json:"last_active"`
}

// Sessions lists sessions, most recently active first.
func (m *SessionManager) Sessions() []SessionInfo {
	m.mu.RLock()
	items := make([]SessionInfo, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sess.mu.Lock()
		info := SessionInfo{
			ID:         sess.ID,
			Backend:    sess.Agent.Backend(),
			Status:     sess.Agent.Status().String(),
			Messages:   len(sess.Agent.History()),
			Connected:  sess.conn != nil,
			LastActive: sess.LastActiveAt,
		}
		sess.mu.Unlock()
		items = append(items, info)
	}
	m.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].LastActive.After(items[j].LastActive) })
	return items
}

func (m *SessionManager) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": m.Sessions()})
}

func (m *SessionManager) handleNewSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sess, err := m.newSession()
	if err != nil {
		m.log.Error("create session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.removeSession(sess.ID)
		return
	}

	m.attachConn(sess, conn)
	m.sendSessionReady(sess, 0)
	m.runSessionLoop(sess, conn)
}

func (m *SessionManager) handleResumeSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/sessions/"), "/")
	if !session.ValidID(id) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": fmt.Sprintf("invalid session id %q", id)})
		return
	}

	m.mu.RLock()
	sess := m.sessions[id]
	m.mu.RUnlock()
	if sess == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	since := int64(0)
	if s := r.URL.Query().Get("since"); s != "" {
		if parsed, err := strconv.ParseInt(s, 10, 64); err == nil {
			since = parsed
		}
	}

	m.attachConn(sess, conn)
	m.sendSessionReady(sess, since)
	m.runSessionLoop(sess, conn)
}

func (m *SessionManager) newSession() (*RemoteSession, error) {
	id := session.NewID()
	a, err := m.factory(id)
	if err != nil {
		return nil, err
	}

	sess := &RemoteSession{
		ID:           id,
		Agent:        a,
		NextSeq:      1,
		LastActiveAt: time.Now(),
	}

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()
	m.log.Info("session created", "session", id, "backend", a.Backend())
	return sess, nil
}

func (m *SessionManager) removeSession(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

func (m *SessionManager) runSessionLoop(sess *RemoteSession, conn *websocket.Conn) {
	defer m.detachConn(sess, conn)

	for {
		var ev ClientEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return
		}

		sess.mu.Lock()
		sess.LastActiveAt = time.Now()
		sess.mu.Unlock()

		switch ev.Type {
		case ClientMessage:
			if strings.TrimSpace(ev.Text) == "" {
				continue
			}
			go m.startStream(sess, ev.Text)
		case ClientInterrupt:
			sess.Agent.Cancel()
		case ClientReset:
			m.resetSession(sess)
		default:
			m.writeStreamEvent(sess, WireEvent{Type: EventError, Message: "unknown event type: " + ev.Type, Code: CodeInvalid})
		}
	}
}

func (m *SessionManager) resetSession(sess *RemoteSession) {
	if err := sess.Agent.ClearHistory(); err != nil {
		m.writeStreamEvent(sess, errorEvent(err))
		return
	}
	sess.mu.Lock()
	sess.EventBuf = nil
	sess.mu.Unlock()
	m.writeStreamEvent(sess, WireEvent{Type: EventReset})
}

// startStream runs one turn and relays the live view to the client. The
// turn keeps running if the client disconnects so a resumed client can
// catch up.
func (m *SessionManager) startStream(sess *RemoteSession, text string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	view, err := sess.Agent.Chat(ctx, text)
	if err != nil {
		m.writeStreamEvent(sess, errorEvent(err))
		return
	}

	sess.mu.Lock()
	sess.streaming = true
	sess.cancelStream = cancel
	sess.mu.Unlock()
	defer func() {
		sess.mu.Lock()
		sess.streaming = false
		sess.cancelStream = nil
		sess.mu.Unlock()
	}()

	for {
		fragment, err := view.Wait(ctx)
		switch {
		case errors.Is(err, agent.ErrCancelled):
			m.writeStreamEvent(sess, WireEvent{Type: EventCancelled})
			return
		case err != nil:
			m.writeStreamEvent(sess, errorEvent(err))
			return
		case fragment == "":
			m.writeStreamEvent(sess, WireEvent{Type: EventMessageDone})
			return
		}
		m.writeStreamEvent(sess, WireEvent{Type: EventTextDelta, Text: fragment})
	}
}

func (m *SessionManager) attachConn(sess *RemoteSession, conn *websocket.Conn) {
	sess.mu.Lock()
	old := sess.conn
	sess.conn = conn
	sess.LastActiveAt = time.Now()
	sess.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
}

func (m *SessionManager) detachConn(sess *RemoteSession, conn *websocket.Conn) {
	sess.mu.Lock()
	if sess.conn == conn {
		sess.conn = nil
	}
	sess.mu.Unlock()
	_ = conn.Close()
}

func (m *SessionManager) sendSessionReady(sess *RemoteSession, since int64) {
	ready := WireEvent{
		Type:      EventSessionReady,
		SessionID: sess.ID,
		Backend:   sess.Agent.Backend(),
		History:   historyItems(sess.Agent.History()),
	}

	sess.mu.Lock()
	var missed []WireEvent
	if since > 0 {
		for _, evt := range sess.EventBuf {
			if evt.Seq > since {
				missed = append(missed, evt)
			}
		}
	}
	conn := sess.conn
	sess.mu.Unlock()

	m.writeTo(sess, conn, ready)
	if len(missed) > 0 {
		m.writeTo(sess, conn, WireEvent{Type: EventCatchup, Events: missed})
	}
}

func (m *SessionManager) writeStreamEvent(sess *RemoteSession, ev WireEvent) {
	sess.mu.Lock()
	ev.Seq = sess.NextSeq
	sess.NextSeq++
	sess.EventBuf = append(sess.EventBuf, ev)
	conn := sess.conn
	sess.mu.Unlock()

	m.writeTo(sess, conn, ev)
}

func (m *SessionManager) writeTo(sess *RemoteSession, conn *websocket.Conn, ev WireEvent) {
	if conn == nil {
		return
	}
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	if err := writeEvent(conn, ev); err != nil {
		m.log.Debug("write event", "session", sess.ID, "type", ev.Type, "error", err)
	}
}

func (m *SessionManager) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (m *SessionManager) authorized(r *http.Request) bool {
	if m.token == "" {
		return true
	}
	value := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(value, prefix) {
		return false
	}
	return strings.TrimSpace(strings.TrimPrefix(value, prefix)) == m.token
}

func writeEvent(conn *websocket.Conn, e WireEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
