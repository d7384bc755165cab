package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fishchat/chatlink/internal/wire"
)

// Manager maintains one logical chat connection. It owns the lifecycle
// state machine, the authorization gate, the pending-send queue, the
// heartbeat and the reconnect schedule; the transport underneath is
// dialed fresh per attempt and discarded on close.
//
// All methods are safe for concurrent use.
type Manager struct {
	cfg    ManagerConfig
	logger *slog.Logger
	tokens TokenSource

	dial dialFunc

	mu            sync.Mutex
	state         ConnectionState
	sess          SessionContext
	connected     target
	transport     Transport
	cancelConn    context.CancelFunc
	dialSeq       uint64
	authorized    bool
	explicitClose bool
	queue         *sendQueue
	dropped       int64
	attempts      int
	reconnect     *time.Timer
	authWaiter    chan bool

	handlerMu sync.RWMutex
	handler   EventHandler
}

// NewManager creates a manager. Zero config fields fall back to
// DefaultManagerConfig values. tokens must not be nil; logger may be.
func NewManager(cfg ManagerConfig, tokens TokenSource, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultManagerConfig()
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = def.QueueCapacity
	}
	if cfg.MessageBuffer <= 0 {
		cfg.MessageBuffer = def.MessageBuffer
	}
	if cfg.ReconnectBaseDelay <= 0 {
		cfg.ReconnectBaseDelay = def.ReconnectBaseDelay
	}
	if cfg.ReconnectMaxDelay <= 0 {
		cfg.ReconnectMaxDelay = def.ReconnectMaxDelay
	}
	if cfg.ReconnectMaxExponent <= 0 {
		cfg.ReconnectMaxExponent = def.ReconnectMaxExponent
	}

	return &Manager{
		cfg:    cfg,
		logger: logger,
		tokens: tokens,
		dial:   dialTransport,
		queue:  newSendQueue(cfg.QueueCapacity),
	}
}

// SetHandler replaces the active event handler. A nil handler drops
// events.
func (m *Manager) SetHandler(h EventHandler) {
	m.handlerMu.Lock()
	m.handler = h
	m.handlerMu.Unlock()
}

// UpdateSessionContext records the target the caller wants connected.
// When the connection is open and any field changed, the old transport
// is closed so the next Connect dials the new target.
func (m *Manager) UpdateSessionContext(sess SessionContext) {
	m.mu.Lock()
	changed := m.sess != sess
	wasOpen := m.state == StateOpen
	m.sess = sess
	// A context update, like Connect, lifts the retry suppression from a
	// previous explicit Close. The Close below re-arms it until the next
	// Connect.
	m.explicitClose = false
	m.mu.Unlock()

	m.logger.Info("session context updated",
		"endpoint", sess.Endpoint,
		"session", sess.SessionID,
		"mode", sess.Mode,
	)

	if changed && wasOpen {
		m.Close()
	}
}

// Connect idempotently ensures a transport exists for the current
// session context. It returns immediately; the dial runs in the
// background and outcomes surface through the event handler and the
// retry schedule. With no session context set it is a no-op.
func (m *Manager) Connect() {
	m.connect(false)
}

// connect is the shared dial path. Caller connects clear the
// explicit-close suppression; retry connects honor it, so a Close that
// lands while the reconnect timer fires still wins.
func (m *Manager) connect(retry bool) {
	m.mu.Lock()

	if retry && m.explicitClose {
		m.mu.Unlock()
		return
	}

	if !m.sess.complete() {
		m.mu.Unlock()
		m.logger.Debug("connect skipped, no session context")
		return
	}

	if m.state == StateOpen {
		cur := target{endpoint: m.sess.Endpoint, sessionID: m.sess.SessionID}
		if m.connected == cur || retry {
			m.mu.Unlock()
			return
		}
		// Open against a stale target: drop it, then dial fresh.
		m.mu.Unlock()
		m.Close()
		m.mu.Lock()
	}

	if m.state == StateConnecting {
		m.mu.Unlock()
		return
	}

	if !retry {
		m.explicitClose = false
	}
	m.connected = target{endpoint: m.sess.Endpoint, sessionID: m.sess.SessionID}
	m.state = StateConnecting
	m.dialSeq++
	seq := m.dialSeq

	if m.cancelConn != nil {
		m.cancelConn()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelConn = cancel

	url := m.sess.dialURL()
	endpoint := m.sess.Endpoint
	m.mu.Unlock()

	m.logger.Info("connecting", "url", url)
	go m.establish(ctx, seq, url, endpoint)
}

// establish dials and, if this attempt is still the current one, wires
// the transport up: heartbeat, read loop, open event, authorization.
func (m *Manager) establish(ctx context.Context, seq uint64, url, endpoint string) {
	token, err := m.tokens.Token(endpoint)
	if err != nil {
		m.logger.Warn("no token for endpoint", "endpoint", endpoint, "error", err)
	}

	t, err := m.dial(ctx, url, m.cfg)
	if err != nil {
		m.mu.Lock()
		if m.dialSeq != seq {
			m.mu.Unlock()
			return
		}
		m.state = StateClosed
		if m.cancelConn != nil {
			m.cancelConn()
			m.cancelConn = nil
		}
		m.mu.Unlock()

		m.logger.Warn("connect failed", "url", url, "error", err)
		m.scheduleReconnect()
		return
	}

	m.mu.Lock()
	if m.dialSeq != seq {
		m.mu.Unlock()
		t.Close()
		return
	}
	m.state = StateOpen
	m.transport = t
	m.authorized = false
	m.attempts = 0
	m.mu.Unlock()

	m.logger.Info("connected", "url", url)

	go m.heartbeatLoop(ctx, t)
	go m.readLoop(ctx, t)

	m.emitOpen()

	frame, _ := json.Marshal(wire.NewAuthorization(token))
	if err := t.Send(frame); err != nil {
		m.logger.Warn("authorization send failed", "error", err)
	}
}

// Close tears the connection down and suppresses reconnection until the
// next Connect. The pending queue is cleared. Idempotent.
func (m *Manager) Close() {
	m.mu.Lock()
	m.explicitClose = true
	m.dialSeq++ // invalidates any in-flight dial
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	if m.cancelConn != nil {
		m.cancelConn()
		m.cancelConn = nil
	}
	m.queue.clear()
	m.authorized = false

	t := m.transport
	m.transport = nil

	hadConn := t != nil || m.state == StateConnecting
	switch m.state {
	case StateOpen:
		m.state = StateClosing
	case StateConnecting, StateIdle:
		m.state = StateClosed
	}
	m.mu.Unlock()

	if t != nil {
		t.Close()
	}

	m.mu.Lock()
	// Only finalize our own Closing; a concurrent Connect may already
	// have moved on.
	if m.state == StateClosing {
		m.state = StateClosed
	}
	m.mu.Unlock()

	if hadConn {
		m.logger.Info("connection closed")
		m.emitClose(nil)
	}
}

// Send delivers a payload: strings and raw bytes pass through
// untouched, anything else is JSON-marshalled. Delivery is best-effort
// queue semantics; the only error returned is a marshal failure. When
// the connection is not open and authorized the payload is queued
// (evicting the oldest beyond capacity) and Connect runs as a side
// effect.
func (m *Manager) Send(payload any) error {
	data, err := encodePayload(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	m.mu.Lock()
	if m.state == StateOpen && m.authorized && m.transport != nil {
		sendErr := m.transport.Send(data)
		if sendErr == nil {
			m.mu.Unlock()
			return nil
		}
		// The read loop will see the transport failure; keep the
		// payload for the next flush.
		m.logger.Warn("send failed, queueing payload", "error", sendErr)
		m.enqueueLocked(data)
		m.mu.Unlock()
		return nil
	}

	m.enqueueLocked(data)
	m.mu.Unlock()

	m.Connect()
	return nil
}

// EnsureAuthorized reports whether the connection is authorized,
// waiting up to timeout for the gate to open and triggering Connect if
// needed. Only the most recent concurrent caller gets resolved by the
// gate; a displaced waiter runs out its own timeout and returns false.
func (m *Manager) EnsureAuthorized(ctx context.Context, timeout time.Duration) bool {
	m.mu.Lock()
	if m.state == StateOpen && m.authorized {
		m.mu.Unlock()
		return true
	}
	m.mu.Unlock()

	m.Connect()

	m.mu.Lock()
	if m.state == StateOpen && m.authorized {
		m.mu.Unlock()
		return true
	}
	waiter := make(chan bool, 1)
	m.authWaiter = waiter
	m.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ok := <-waiter:
		return ok
	case <-timer.C:
	case <-ctx.Done():
	}

	m.mu.Lock()
	if m.authWaiter == waiter {
		m.authWaiter = nil
	}
	m.mu.Unlock()
	return false
}

// State returns the current lifecycle state.
func (m *Manager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats returns a snapshot of the manager's counters.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ManagerStats{
		State:             m.state,
		Authorized:        m.authorized,
		QueueDepth:        m.queue.depth(),
		Dropped:           m.dropped,
		ReconnectAttempts: m.attempts,
	}
}

// readLoop pumps one transport's frames through the gate until the
// transport dies or the connection context is cancelled.
func (m *Manager) readLoop(ctx context.Context, t Transport) {
	for {
		select {
		case <-ctx.Done():
			return

		case err, ok := <-t.Errors():
			if !ok {
				return
			}
			// Frames that arrived ahead of the disconnect may still sit
			// in the buffer; deliver them before tearing down.
			m.drainFrames(t)
			m.handleTransportError(t, err)
			return

		case data, ok := <-t.Messages():
			if !ok {
				return
			}
			m.handleFrame(t, data)
		}
	}
}

// drainFrames delivers whatever the transport already buffered without
// blocking.
func (m *Manager) drainFrames(t Transport) {
	for {
		select {
		case data, ok := <-t.Messages():
			if !ok {
				return
			}
			m.handleFrame(t, data)
		default:
			return
		}
	}
}

// handleFrame runs the authorization gate over one inbound frame.
func (m *Manager) handleFrame(t Transport, data []byte) {
	f := wire.Decode(data)

	m.mu.Lock()
	if m.transport != t {
		m.mu.Unlock()
		return
	}

	var (
		newlyAuthorized bool
		forward         bool
		waiter          chan bool
	)

	switch f.(type) {
	case wire.AuthSuccess:
		// Swallowed. Waiters resolve even when already authorized.
		if !m.authorized {
			m.authorized = true
			newlyAuthorized = true
		}
		if m.authWaiter != nil {
			waiter = m.authWaiter
			m.authWaiter = nil
		}

	case wire.Pong:
		// Swallowed.

	case wire.History, wire.Message, wire.Reference, wire.Audio, wire.Done:
		// Business traffic only flows to authorized clients, so the
		// first such frame authorizes implicitly.
		if !m.authorized {
			m.authorized = true
			newlyAuthorized = true
			if m.authWaiter != nil {
				waiter = m.authWaiter
				m.authWaiter = nil
			}
		}
		forward = true

	default:
		forward = true
	}
	m.mu.Unlock()

	if newlyAuthorized {
		m.logger.Info("authorized")
		// Flush before the callback: a send issued from inside
		// HandleAuthSuccess takes the direct path and must not overtake
		// payloads queued before authorization.
		m.flush(t)
		m.emitAuthSuccess()
	}
	if waiter != nil {
		waiter <- true
	}
	if forward {
		m.emitFrame(f)
	}
}

// flush drains the pending queue in order. On a send failure the
// payload goes back to the front and the drain stops; the rest waits
// for the next authorization.
func (m *Manager) flush(t Transport) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.transport != t || !m.authorized {
		return
	}

	for {
		data, ok := m.queue.pop()
		if !ok {
			return
		}
		if err := t.Send(data); err != nil {
			m.queue.pushFront(data)
			m.logger.Warn("flush interrupted",
				"pending", m.queue.depth(),
				"error", err,
			)
			return
		}
	}
}

// handleTransportError tears down after an unexpected transport
// failure and schedules a retry.
func (m *Manager) handleTransportError(t Transport, err error) {
	m.mu.Lock()
	if m.transport != t {
		// A newer connection already replaced this one.
		m.mu.Unlock()
		return
	}
	if m.cancelConn != nil {
		m.cancelConn()
		m.cancelConn = nil
	}
	m.transport = nil
	m.authorized = false
	m.state = StateClosed
	m.mu.Unlock()

	t.Close()
	m.logger.Warn("connection lost", "error", err)

	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		m.emitError(err)
	}
	m.emitClose(err)

	m.scheduleReconnect()
}

// scheduleReconnect arms the retry timer unless retries are suppressed
// or one is already pending.
func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.explicitClose || !m.sess.complete() {
		return
	}
	if m.reconnect != nil {
		return
	}

	m.attempts++
	delay := reconnectDelay(
		m.cfg.ReconnectBaseDelay,
		m.cfg.ReconnectMaxDelay,
		m.cfg.ReconnectJitter,
		m.cfg.ReconnectMaxExponent,
		m.attempts,
	)

	m.logger.Info("reconnect scheduled", "attempt", m.attempts, "delay", delay)

	m.reconnect = time.AfterFunc(delay, func() {
		m.mu.Lock()
		m.reconnect = nil
		m.mu.Unlock()
		m.connect(true)
	})
}

// heartbeatLoop sends application-level pings while the connection is
// up. Pings bypass the queue; a failed ping is left for the read loop
// to diagnose.
func (m *Manager) heartbeatLoop(ctx context.Context, t Transport) {
	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			data, _ := json.Marshal(wire.NewPing(time.Now()))
			if err := t.Send(data); err != nil {
				m.logger.Debug("ping failed", "error", err)
			}
		}
	}
}

// enqueueLocked appends to the pending queue. Caller holds m.mu.
func (m *Manager) enqueueLocked(data []byte) {
	if m.queue.push(data) {
		m.dropped++
		m.logger.Warn("queue full, dropped oldest payload",
			"capacity", m.queue.capacity(),
			"dropped_total", m.dropped,
		)
	}
}

// encodePayload turns a caller payload into frame bytes. Strings and
// byte slices pass through verbatim.
func encodePayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case string:
		return []byte(p), nil
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	default:
		return json.Marshal(payload)
	}
}

func (m *Manager) currentHandler() EventHandler {
	m.handlerMu.RLock()
	defer m.handlerMu.RUnlock()
	return m.handler
}

func (m *Manager) emitOpen() {
	if h := m.currentHandler(); h != nil {
		h.HandleOpen()
	}
}

func (m *Manager) emitAuthSuccess() {
	if h := m.currentHandler(); h != nil {
		h.HandleAuthSuccess()
	}
}

func (m *Manager) emitFrame(f wire.Frame) {
	if h := m.currentHandler(); h != nil {
		h.HandleFrame(f)
	}
}

func (m *Manager) emitClose(err error) {
	if h := m.currentHandler(); h != nil {
		h.HandleClose(err)
	}
}

func (m *Manager) emitError(err error) {
	if h := m.currentHandler(); h != nil {
		h.HandleError(err)
	}
}
